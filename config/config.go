package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// Example ENV:
//
//	SERVER_PORT=8080
//	STORE_DRIVER=postgres
//	POSTGRES_HOST=localhost
//	POSTGRES_PORT=5432
//	POSTGRES_USER=postgres
//	POSTGRES_PASSWORD=postgres
//	POSTGRES_DB=transactions
//	POSTGRES_SSLMODE=disable
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Ingest   IngestConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // TCP port the HTTP server listens on (e.g., "8080")
	RequestTimeout time.Duration // context deadline applied to every request
	RateLimit      int           // requests per minute per client IP; 0 disables limiting
}

// UploadConfig limits what POST /upload accepts.
type UploadConfig struct {
	MaxBytes int64
}

// StoreConfig selects the storage engine backing the transaction store.
type StoreConfig struct {
	Driver string // memory | postgres | sqlite
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host, Port, User, Password, DBName, SSLMode: DSN parts.
//   - Migrate: run the embedded schema migrations on startup.
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
	URL      string
}

// SQLiteConfig defines the embedded sqlite engine settings.
type SQLiteConfig struct {
	Path        string
	InsertChunk int // rows per multi-row INSERT statement
}

// IngestConfig tunes the CLI ingestion mode.
type IngestConfig struct {
	Parallel int // files ingested concurrently; 0 = auto
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string
	Pretty bool
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and read by cmd and internal/app.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Fatal exit:
//   - If required variables are missing or invalid, validateConfig() terminates the app
//     with a descriptive log message.
func LoadConfig() {
	AppConfig = load(viper.New())
	validateConfig()
}

func load(v *viper.Viper) Config {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_REQUEST_TIMEOUT", "60s")
	v.SetDefault("SERVER_RATE_LIMIT", 120)
	v.SetDefault("UPLOAD_MAX_BYTES", int64(512<<20))

	v.SetDefault("STORE_DRIVER", DriverMemory)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "transactions")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MIGRATE", true)

	v.SetDefault("SQLITE_PATH", "./data/transactions.db")
	v.SetDefault("SQLITE_INSERT_CHUNK", 500)

	v.SetDefault("INGEST_PARALLEL", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	// Optionally read from .env if present (common in local dev)
	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // ignore error if no .env

	v.AutomaticEnv()

	cfg := Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			RequestTimeout: v.GetDuration("SERVER_REQUEST_TIMEOUT"),
			RateLimit:      v.GetInt("SERVER_RATE_LIMIT"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
			Migrate:  v.GetBool("POSTGRES_MIGRATE"),
		},
		SQLite: SQLiteConfig{
			Path:        v.GetString("SQLITE_PATH"),
			InsertChunk: v.GetInt("SQLITE_INSERT_CHUNK"),
		},
		Ingest: IngestConfig{
			Parallel: v.GetInt("INGEST_PARALLEL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
	}

	cfg.Postgres.URL = cfg.Postgres.DSN()
	return cfg
}

// DSN builds the PostgreSQL connection string from the individual parts.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.DBName,
		p.SSLMode,
	)
}

// validateConfig terminates the application when problems() reports anything.
func validateConfig() {
	if missing := problems(AppConfig); len(missing) > 0 {
		log.Fatalf("❌ Missing or invalid environment variables: %v\n", missing)
	}
}

// problems lists every required variable that is missing or invalid.
// Postgres and sqlite settings are only checked when that driver is selected.
func problems(cfg Config) []string {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if cfg.Server.RequestTimeout <= 0 {
		missing = append(missing, "SERVER_REQUEST_TIMEOUT")
	}
	if cfg.Server.RateLimit < 0 {
		missing = append(missing, "SERVER_RATE_LIMIT")
	}
	if cfg.Upload.MaxBytes <= 0 {
		missing = append(missing, "UPLOAD_MAX_BYTES")
	}

	switch cfg.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.Postgres.Host == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
		if cfg.Postgres.Port == 0 {
			missing = append(missing, "POSTGRES_PORT")
		}
		if cfg.Postgres.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if cfg.Postgres.Password == "" {
			missing = append(missing, "POSTGRES_PASSWORD")
		}
		if cfg.Postgres.DBName == "" {
			missing = append(missing, "POSTGRES_DB")
		}
	case DriverSQLite:
		if cfg.SQLite.Path == "" {
			missing = append(missing, "SQLITE_PATH")
		}
		if cfg.SQLite.InsertChunk <= 0 {
			missing = append(missing, "SQLITE_INSERT_CHUNK")
		}
	default:
		missing = append(missing, "STORE_DRIVER")
	}

	return missing
}
