package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/config"
	"github.com/xxxsen/mtodo/internal/db"
)

// OpenTestDB returns a migrated, empty database. It is an in-memory SQLite
// database unless TEST_DATABASE_DSN points at a Postgres instance, which is
// then truncated before use.
func OpenTestDB(t *testing.T) *db.DB {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"}
	if dsn := os.Getenv("TEST_DATABASE_DSN"); dsn != "" {
		cfg = config.DatabaseConfig{Driver: config.DriverPgx, DSN: dsn}
	}
	conn, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	require.NoError(t, db.ApplyMigrations(ctx, conn))
	if conn.Driver() != config.DriverSQLite {
		_, err := conn.ExecContext(ctx, "TRUNCATE users, todos RESTART IDENTITY CASCADE")
		require.NoError(t, err)
	}
	return conn
}
