// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"

	"redirclean/internal/models"
)

// Job store backends.
const (
	JobStoreValkey   = "valkey"
	JobStorePostgres = "postgres"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	ValkeyDB       int

	// PageCachePrefix is the key prefix of the site's rendered page cache.
	PageCachePrefix string

	// URL cleanup jobs
	JobStore     string // "valkey" or "postgres"
	JobRetention int
	BatchSize    int

	// S3-compatible report archive (optional)
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string

	// SessionSecure marks the session cookie Secure.
	SessionSecure bool
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a numeric setting is malformed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "redirclean"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "redirclean"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		PageCachePrefix: envOrDefault("PAGE_CACHE_PREFIX", "page:"),

		JobStore: envOrDefault("JOB_STORE", JobStoreValkey),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "redirclean-reports"),
		S3Prefix:    envOrDefault("S3_PREFIX", "jobs/"),
	}

	var err error
	if cfg.ValkeyDB, err = envInt("VALKEY_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JobRetention, err = envInt("JOB_RETENTION", 50); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = envInt("REWRITE_BATCH_SIZE", models.DefaultBatchSize); err != nil {
		return nil, err
	}
	if cfg.SessionSecure, err = envBool("SESSION_SECURE", cfg.Env == "production"); err != nil {
		return nil, err
	}

	if cfg.BatchSize < models.MinBatchSize || cfg.BatchSize > models.MaxBatchSize {
		return nil, fmt.Errorf("REWRITE_BATCH_SIZE must be between %d and %d, got %d",
			models.MinBatchSize, models.MaxBatchSize, cfg.BatchSize)
	}
	if cfg.JobRetention <= 0 {
		return nil, fmt.Errorf("JOB_RETENTION must be positive, got %d", cfg.JobRetention)
	}
	switch cfg.JobStore {
	case JobStoreValkey, JobStorePostgres:
	default:
		return nil, fmt.Errorf("JOB_STORE must be %q or %q, got %q", JobStoreValkey, JobStorePostgres, cfg.JobStore)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ArchiveEnabled reports whether job reports should be uploaded to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}
