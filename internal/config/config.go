package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

type Config struct {
	AppName   string           `json:"app_name"`
	APIPrefix string           `json:"api_prefix"`
	Port      int              `json:"port"`
	Database  DatabaseConfig   `json:"database"`
	JWT       JWTConfig        `json:"jwt"`
	CORS      []string         `json:"cors_origins"`
	LogConfig logger.LogConfig `json:"log_config"`
	Jobs      JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type JWTConfig struct {
	Secret                string `json:"secret"`
	Algorithm             string `json:"algorithm"`
	AccessExpiresSeconds  int64  `json:"access_expires_seconds"`
	RefreshExpiresSeconds int64  `json:"refresh_expires_seconds"`
}

type JobsConfig struct {
	// DBHealthSpec is a 5-field cron spec; empty disables the job.
	DBHealthSpec *string `json:"db_health_spec"`
}

func Default() *Config {
	healthSpec := "*/5 * * * *"
	return &Config{
		AppName:   "TodoApp",
		APIPrefix: "/api",
		Port:      8000,
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "./todos.db",
		},
		JWT: JWTConfig{
			Algorithm:             "HS256",
			AccessExpiresSeconds:  3600,
			RefreshExpiresSeconds: 60 * 60 * 24 * 30,
		},
		CORS: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		LogConfig: logger.LogConfig{
			Level:   "info",
			Console: true,
		},
		Jobs: JobsConfig{DBHealthSpec: &healthSpec},
	}
}

// Load reads the JSON file at path (optional) on top of the defaults, then
// applies environment overrides. A .env file in the working directory is
// loaded first if present.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	_ = godotenv.Load()
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("APP_NAME"); ok && v != "" {
		cfg.AppName = v
	}
	if v, ok := lookup("API_PREFIX"); ok {
		cfg.APIPrefix = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}
	if v, ok := lookup("DATABASE_DRIVER"); ok && v != "" {
		cfg.Database.Driver = v
	}
	if v, ok := lookup("DATABASE_DSN"); ok && v != "" {
		cfg.Database.DSN = v
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		cfg.JWT.Secret = v
	}
	if v, ok := lookup("JWT_ALGORITHM"); ok && v != "" {
		cfg.JWT.Algorithm = v
	}
	if v, ok := lookup("ACCESS_TOKEN_EXPIRES_SECONDS"); ok && v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ACCESS_TOKEN_EXPIRES_SECONDS: %w", err)
		}
		cfg.JWT.AccessExpiresSeconds = secs
	}
	if v, ok := lookup("REFRESH_TOKEN_EXPIRES_SECONDS"); ok && v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid REFRESH_TOKEN_EXPIRES_SECONDS: %w", err)
		}
		cfg.JWT.RefreshExpiresSeconds = secs
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.CORS = SplitOrigins(v)
	}
	return nil
}

// SplitOrigins parses a comma separated origin list, dropping blanks.
func SplitOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port is required")
	}
	if c.JWT.AccessExpiresSeconds <= 0 || c.JWT.RefreshExpiresSeconds <= 0 {
		return fmt.Errorf("jwt token lifetimes must be positive")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for sqlite")
		}
	case DriverPostgres, DriverPgx:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or pgx")
	}
	return nil
}

func (c *Config) HealthSpec() string {
	if c.Jobs.DBHealthSpec == nil {
		return ""
	}
	return *c.Jobs.DBHealthSpec
}
