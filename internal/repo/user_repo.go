package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

var userColumns = []string{"id", "email", "name", "password_hash", "created_at", "updated_at"}

// UserRepo is the credential store. The unique index on email decides
// concurrent registrations; the loser gets ErrConflict.
type UserRepo struct {
	db *db.DB
}

func NewUserRepo(db *db.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	if user.PasswordHash == "" {
		return fmt.Errorf("create user: empty password hash")
	}
	data := map[string]interface{}{
		"email":         user.Email,
		"name":          nullString(user.Name),
		"password_hash": user.PasswordHash,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("users", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr+" RETURNING id", args)
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&user.ID); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, map[string]interface{}{"email": email})
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, map[string]interface{}{"id": id})
}

// Delete removes the user; owned todos go with it through the foreign key.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	sqlStr, args, err := builder.BuildDelete("users", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
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

func (r *UserRepo) findOne(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	sqlStr, args, err := builder.BuildSelect("users", where, userColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db.Driver(), sqlStr, args)
	var (
		user model.User
		name sql.NullString
	)
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&user.ID, &user.Email, &name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	if name.Valid {
		user.Name = &name.String
	}
	return &user, nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
