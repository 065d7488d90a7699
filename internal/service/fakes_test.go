package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/repo"
)

var errStoreDown = errors.New("store down")

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
	err    error
	// skipLookup makes FindByEmail miss so Create has to detect the duplicate.
	skipLookup bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]*model.User{}}
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.skipLookup {
		return nil, appErr.ErrNotFound
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

type fakeTodoStore struct {
	nextID  int64
	todos   map[int64]*model.Todo
	lastOpt repo.TodoListOptions
}

func newFakeTodoStore() *fakeTodoStore {
	return &fakeTodoStore{todos: map[int64]*model.Todo{}}
}

func (f *fakeTodoStore) Create(ctx context.Context, todo *model.Todo) error {
	f.nextID++
	todo.ID = f.nextID
	cp := *todo
	f.todos[todo.ID] = &cp
	return nil
}

func (f *fakeTodoStore) GetByID(ctx context.Context, userID, todoID int64) (*model.Todo, error) {
	t, ok := f.todos[todoID]
	if !ok || t.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTodoStore) List(ctx context.Context, userID int64, opts repo.TodoListOptions) ([]model.Todo, error) {
	f.lastOpt = opts
	out := make([]model.Todo, 0)
	for _, t := range f.todos {
		if t.UserID != userID {
			continue
		}
		if opts.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(opts.Search)) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTodoStore) Update(ctx context.Context, todo *model.Todo) error {
	t, ok := f.todos[todo.ID]
	if !ok || t.UserID != todo.UserID {
		return appErr.ErrNotFound
	}
	cp := *todo
	f.todos[todo.ID] = &cp
	return nil
}

func (f *fakeTodoStore) Delete(ctx context.Context, userID, todoID int64) error {
	t, ok := f.todos[todoID]
	if !ok || t.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(f.todos, todoID)
	return nil
}
