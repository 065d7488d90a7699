package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/testutil"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	return testutil.OpenTestDB(t)
}

func createUser(t *testing.T, users *UserRepo, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "hash", CreatedAt: 100, UpdatedAt: 100}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}
