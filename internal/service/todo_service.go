package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/repo"
)

const (
	TodoStatusAll     = "all"
	TodoStatusDone    = "done"
	TodoStatusNotDone = "not_done"

	TodoSortAsc  = "asc"
	TodoSortDesc = "desc"

	DefaultTodoLimit = 50
	MaxTodoLimit     = 200
	maxTitleLength   = 255
)

// TodoQuery holds raw list parameters; zero values select the defaults.
type TodoQuery struct {
	Search  string
	Status  string
	Limit   int
	Offset  int
	OrderBy string
	Order   string
}

type TodoCreateInput struct {
	Title    string
	Deadline *int64
}

// TodoPatch applies only the fields that are set.
type TodoPatch struct {
	Title    *string
	Deadline *int64
	Done     *bool
}

type TodoService struct {
	todos TodoStore
	now   func() time.Time
}

func NewTodoService(todos TodoStore) *TodoService {
	return &TodoService{todos: todos, now: time.Now}
}

func (s *TodoService) List(ctx context.Context, userID int64, query TodoQuery) ([]model.Todo, error) {
	opts, err := query.options()
	if err != nil {
		return nil, err
	}
	return s.todos.List(ctx, userID, opts)
}

func (s *TodoService) Create(ctx context.Context, userID int64, input TodoCreateInput) (*model.Todo, error) {
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	todo := &model.Todo{
		UserID:    userID,
		Title:     title,
		Deadline:  input.Deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, userID, todoID int64, patch TodoPatch) (*model.Todo, error) {
	todo, err := s.todos.GetByID(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		todo.Title = title
	}
	if patch.Deadline != nil {
		todo.Deadline = patch.Deadline
	}
	if patch.Done != nil {
		todo.Done = *patch.Done
	}
	todo.UpdatedAt = s.now().Unix()
	if err := s.todos.Update(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, todoID int64) error {
	return s.todos.Delete(ctx, userID, todoID)
}

func (q TodoQuery) options() (repo.TodoListOptions, error) {
	opts := repo.TodoListOptions{Search: strings.TrimSpace(q.Search)}
	switch q.Status {
	case "", TodoStatusAll:
	case TodoStatusDone:
		done := true
		opts.Done = &done
	case TodoStatusNotDone:
		done := false
		opts.Done = &done
	default:
		return opts, appErr.Invalid("status must be all, done or not_done")
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultTodoLimit
	}
	if limit < 1 || limit > MaxTodoLimit {
		return opts, appErr.Invalid("limit must be between 1 and 200")
	}
	if q.Offset < 0 {
		return opts, appErr.Invalid("offset must not be negative")
	}
	opts.Limit = uint(limit)
	opts.Offset = uint(q.Offset)
	switch q.OrderBy {
	case "", repo.TodoOrderDeadline:
		opts.OrderBy = repo.TodoOrderDeadline
	case repo.TodoOrderCreatedAt:
		opts.OrderBy = repo.TodoOrderCreatedAt
	default:
		return opts, appErr.Invalid("order_by must be deadline or created_at")
	}
	switch q.Order {
	case "", TodoSortAsc:
	case TodoSortDesc:
		opts.Desc = true
	default:
		return opts, appErr.Invalid("order must be asc or desc")
	}
	return opts, nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n == 0 || n > maxTitleLength {
		return "", appErr.Invalid("title must be 1 to 255 characters")
	}
	return title, nil
}
