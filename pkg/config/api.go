package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// IndexConfig configures the SQL index of raw samples.
type IndexConfig struct {
	// Enabled syncs the index after every persist during a sweep.
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Interval is how often the API server rescans the results directory.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

func setIndexDefaults(v *viper.Viper) {
	v.SetDefault("index.enabled", false)
	v.SetDefault("index.interval", "1m")
	v.SetDefault("index.database.driver", "sqlite")
	v.SetDefault("index.database.sqlite.path", "./toolchainbench.db")
	v.SetDefault("index.database.postgres.host", "localhost")
	v.SetDefault("index.database.postgres.port", 5432)
	v.SetDefault("index.database.postgres.user", "")
	v.SetDefault("index.database.postgres.password", "")
	v.SetDefault("index.database.postgres.database", "toolchainbench")
	v.SetDefault("index.database.postgres.ssl_mode", "disable")
}

func setAPIDefaults(v *viper.Viper) {
	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests_per_minute", 120)
}

// Validate checks the database settings.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case "postgres":
		if d.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required")
		}

		if d.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported driver %q (use sqlite or postgres)", d.Driver)
	}

	return nil
}

// Validate checks the index settings.
func (i *IndexConfig) Validate() error {
	if i.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	if err := i.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	return nil
}

// Validate checks the API server settings.
func (a *APIConfig) Validate() error {
	if a.Listen == "" {
		return fmt.Errorf("listen is required")
	}

	if a.RateLimit.Enabled && a.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate_limit.requests_per_minute must be at least 1")
	}

	return nil
}
