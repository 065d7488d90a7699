package service

import (
	"context"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/repo"
)

// UserStore is the credential store the auth services depend on.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

type TodoStore interface {
	Create(ctx context.Context, todo *model.Todo) error
	GetByID(ctx context.Context, userID, todoID int64) (*model.Todo, error)
	List(ctx context.Context, userID int64, opts repo.TodoListOptions) ([]model.Todo, error)
	Update(ctx context.Context, todo *model.Todo) error
	Delete(ctx context.Context, userID, todoID int64) error
}

var (
	_ UserStore = (*repo.UserRepo)(nil)
	_ TodoStore = (*repo.TodoRepo)(nil)
)
