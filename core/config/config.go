package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Converter ConverterConfig
	Fetcher   FetcherConfig
}

type AppConfig struct {
	Version  string
	Port     string
	Debug    bool
	BasePath string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB name for Postgres
	// URI takes precedence over the discrete fields when set.
	URI string
}

// CacheConfig controls the reserve/wait/complete protocol around the
// conversion cache.
type CacheConfig struct {
	// StaleAfter is how old an uncompleted reservation must be before a
	// later request may take it over.
	StaleAfter time.Duration
	// MaxWait bounds how long a request polls for someone else's in-flight
	// conversion before giving up with a retryable timeout.
	MaxWait time.Duration
	// PollInterval is the initial wait-loop sleep; it doubles up to
	// PollMaxInterval.
	PollInterval    time.Duration
	PollMaxInterval time.Duration
}

type ConverterConfig struct {
	// Timeout bounds a single converter invocation, independent of any
	// waiter's deadline.
	Timeout         time.Duration
	Workers         int
	QueueSize       int
	MaxDocumentSize int64
}

type FetcherConfig struct {
	Timeout time.Duration
	// AuthHeader is sent verbatim as the Authorization header when fetching
	// source documents.
	AuthHeader string
}

// Load builds the configuration from environment variables (a .env file in
// the working directory is honored).
func Load() (*Config, error) {
	initEnv()

	cfg := &Config{
		App: AppConfig{
			Version:  "v1.2.0",
			Port:     getEnvString("app_port", "3000"),
			Debug:    getEnvBool("app_debug", false),
			BasePath: getEnvString("app_base_path", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnvString("db_driver", "sqlite"),
			Host:     getEnvString("db_host", "localhost"),
			Port:     getEnvInt("db_port", 5432),
			User:     getEnvString("db_user", "postgres"),
			Password: getEnvString("db_password", ""),
			Name:     getEnvString("db_name", "storages/planconv.db"),
			URI:      getEnvString("db_uri", ""),
		},
		Cache: CacheConfig{
			StaleAfter:      getEnvDuration("cache_stale_after", 2*time.Minute),
			MaxWait:         getEnvDuration("cache_max_wait", 30*time.Second),
			PollInterval:    getEnvDuration("cache_poll_interval", 100*time.Millisecond),
			PollMaxInterval: getEnvDuration("cache_poll_max_interval", 2*time.Second),
		},
		Converter: ConverterConfig{
			Timeout:         getEnvDuration("converter_timeout", 60*time.Second),
			Workers:         getEnvInt("converter_workers", 4),
			QueueSize:       getEnvInt("converter_queue_size", 64),
			MaxDocumentSize: getEnvInt64("converter_max_document_size", 20*1024*1024),
		},
		Fetcher: FetcherConfig{
			Timeout:    getEnvDuration("fetcher_timeout", 20*time.Second),
			AuthHeader: getEnvString("fetcher_auth_header", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Cache.PollInterval <= 0 {
		return fmt.Errorf("cache poll interval must be positive, got %s", c.Cache.PollInterval)
	}
	if c.Cache.PollMaxInterval < c.Cache.PollInterval {
		return fmt.Errorf("cache poll max interval %s is below the poll interval %s", c.Cache.PollMaxInterval, c.Cache.PollInterval)
	}
	if c.Cache.StaleAfter <= 0 {
		return fmt.Errorf("cache stale-after must be positive, got %s", c.Cache.StaleAfter)
	}
	if c.Cache.MaxWait <= 0 {
		return fmt.Errorf("cache max wait must be positive, got %s", c.Cache.MaxWait)
	}
	if c.Converter.Timeout <= 0 {
		return fmt.Errorf("converter timeout must be positive, got %s", c.Converter.Timeout)
	}
	if c.Converter.Workers <= 0 {
		return fmt.Errorf("converter workers must be positive, got %d", c.Converter.Workers)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}
