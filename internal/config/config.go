// Package config provides centralized configuration for the SQURIL engine.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration values.
type Config struct {
	PrimaryDBPath string // Path to the embedded SQLite database file
	DataDir       string // Directory for storing database files

	AuditSeparator string // Separator between a table name and its audit suffix
	AuditSuffix    string // Audit table suffix, e.g. "audit"

	BackupRetentionDays int  // Audit retention window once a source table is dropped (0 disables the cutoff)
	UpdateAllView       bool // Whether mutations maintain the cross-schema "all" view

	AllViewSchemaPrefix string // Schema-name prefix the "all" view's union scans for matching tables

	PostgresDSN        string // Connection string for the server backend
	PostgresMaxOpenConns int  // Pool max open connections
	PostgresMaxIdleConns int  // Pool max idle connections
}

// Cfg is the global configuration instance, loaded at startup.
var Cfg Config

func init() {
	// Load .env file before reading config (ignore error if file doesn't exist).
	godotenv.Load()
	Cfg = Load()
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	backupRetentionDays := 0
	if val := os.Getenv("SQURIL_BACKUP_RETENTION_DAYS"); val != "" {
		if d, err := strconv.Atoi(val); err == nil && d >= 0 {
			backupRetentionDays = d
		}
	}

	maxOpenConns := 10
	if val := os.Getenv("SQURIL_PG_MAX_OPEN_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxOpenConns = n
		}
	}

	maxIdleConns := 2
	if val := os.Getenv("SQURIL_PG_MAX_IDLE_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxIdleConns = n
		}
	}

	return Config{
		PrimaryDBPath:        getEnv("SQURIL_DB_PATH", "squrildata/primary.db"),
		DataDir:              getEnv("SQURIL_DATA_DIR", "squrildata"),
		AuditSeparator:       getEnv("SQURIL_AUDIT_SEPARATOR", "_"),
		AuditSuffix:          getEnv("SQURIL_AUDIT_SUFFIX", "audit"),
		BackupRetentionDays:  backupRetentionDays,
		UpdateAllView:        os.Getenv("SQURIL_UPDATE_ALL_VIEW") == "true",
		AllViewSchemaPrefix:  getEnv("SQURIL_ALL_VIEW_SCHEMA_PREFIX", "p"),
		PostgresDSN:          os.Getenv("SQURIL_PG_DSN"),
		PostgresMaxOpenConns: maxOpenConns,
		PostgresMaxIdleConns: maxIdleConns,
	}
}

// getEnv returns the environment variable value or a default if not set.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
