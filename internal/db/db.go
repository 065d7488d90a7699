package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/mtodo/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// DB is a connection pool together with the database/sql driver name it
// was opened with, which repos need to pick a placeholder style.
type DB struct {
	*sql.DB
	driver string
}

// Wrap adopts an already opened pool.
func Wrap(conn *sql.DB, driver string) *DB {
	return &DB{DB: conn, driver: driver}
}

func (d *DB) Driver() string {
	return d.driver
}

func Open(cfg config.DatabaseConfig) (*DB, error) {
	driver, dsn, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == config.DriverSQLite {
		// one writer at a time, and ":memory:" must stay on a single connection
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return Wrap(conn, driver), nil
}

func resolve(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		dsn := strings.TrimPrefix(cfg.DSN, "sqlite://")
		if !strings.Contains(dsn, "foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)"
		}
		return config.DriverSQLite, dsn, nil
	case config.DriverPostgres, config.DriverPgx:
		dsn := cfg.DSN
		if dsn == "" {
			sslmode := cfg.SSLMode
			if sslmode == "" {
				sslmode = "disable"
			}
			port := cfg.Port
			if port == 0 {
				port = 5432
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslmode)
		}
		return cfg.Driver, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func ApplyMigrations(ctx context.Context, d *DB) error {
	dialect, dir := "postgres", "migrations/postgres"
	if d.driver == config.DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logutil.GetLogger(ctx).Sugar()})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, d.DB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatalf(strings.TrimSpace(format), v...)
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Infof(strings.TrimSpace(format), v...)
}
