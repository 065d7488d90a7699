package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

const (
	TodoOrderDeadline  = "deadline"
	TodoOrderCreatedAt = "created_at"
)

var todoColumns = []string{"id", "user_id", "title", "deadline", "done", "created_at", "updated_at"}

type TodoListOptions struct {
	Search  string
	Done    *bool
	OrderBy string
	Desc    bool
	Limit   uint
	Offset  uint
}

type TodoRepo struct {
	db *db.DB
}

func NewTodoRepo(db *db.DB) *TodoRepo {
	return &TodoRepo{db: db}
}

func (r *TodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	data := map[string]interface{}{
		"user_id":    todo.UserID,
		"title":      todo.Title,
		"deadline":   nullInt64(todo.Deadline),
		"done":       todo.Done,
		"created_at": todo.CreatedAt,
		"updated_at": todo.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("todos", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr+" RETURNING id", args)
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&todo.ID); err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *TodoRepo) GetByID(ctx context.Context, userID, todoID int64) (*model.Todo, error) {
	where := map[string]interface{}{
		"id":      todoID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("todos", where, todoColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanTodo(rows)
}

func (r *TodoRepo) List(ctx context.Context, userID int64, opts TodoListOptions) ([]model.Todo, error) {
	where := map[string]interface{}{
		"user_id": userID,
	}
	if opts.Search != "" {
		pattern := "%" + dbutil.EscapeLike(opts.Search) + "%"
		where["_custom_search"] = builder.Custom(`LOWER(title) LIKE LOWER(?) ESCAPE '\'`, pattern)
	}
	if opts.Done != nil {
		where["done"] = *opts.Done
	}
	where["_orderby"] = todoOrderBy(opts.OrderBy, opts.Desc)
	if opts.Limit > 0 {
		where["_limit"] = []uint{opts.Offset, opts.Limit}
	}
	sqlStr, args, err := builder.BuildSelect("todos", where, todoColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	todos := make([]model.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

func (r *TodoRepo) Update(ctx context.Context, todo *model.Todo) error {
	where := map[string]interface{}{
		"id":      todo.ID,
		"user_id": todo.UserID,
	}
	update := map[string]interface{}{
		"title":      todo.Title,
		"deadline":   nullInt64(todo.Deadline),
		"done":       todo.Done,
		"updated_at": todo.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildUpdate("todos", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *TodoRepo) Delete(ctx context.Context, userID, todoID int64) error {
	where := map[string]interface{}{
		"id":      todoID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("todos", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// todoOrderBy keeps rows without a deadline last in both directions, which
// postgres and sqlite disagree on by default.
func todoOrderBy(column string, desc bool) string {
	if column != TodoOrderCreatedAt {
		column = TodoOrderDeadline
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if column == TodoOrderDeadline {
		return fmt.Sprintf("deadline IS NULL, deadline %s, id %s", dir, dir)
	}
	return fmt.Sprintf("created_at %s, id %s", dir, dir)
}

func scanTodo(rows *sql.Rows) (*model.Todo, error) {
	var (
		todo     model.Todo
		deadline sql.NullInt64
	)
	if err := rows.Scan(&todo.ID, &todo.UserID, &todo.Title, &deadline, &todo.Done, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	if deadline.Valid {
		todo.Deadline = &deadline.Int64
	}
	return &todo, nil
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

