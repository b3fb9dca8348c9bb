package store

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds connection settings for a single Postgres role (reader
// or writer). Adapted from the teacher's relationaldb.Config, trimmed
// to Postgres-only since BeanCounter has no embedded-store path.
type Config struct {
	ConnectionString string        `mapstructure:"connection_string"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Database         string        `mapstructure:"database"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	SSLMode          string        `mapstructure:"ssl_mode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
}

// NewConfig returns a Config with sensible defaults, mirroring
// relationaldb.NewConfig's defaulting style.
func NewConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "beancounter",
		Username:        "beancounter",
		SSLMode:         "prefer",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
		DefaultTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration for common errors, following the
// teacher's Config.Validate style.
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		if c.Host == "" {
			return fmt.Errorf("store: host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("store: invalid port %d", c.Port)
		}
		if c.Database == "" {
			return fmt.Errorf("store: database name is required")
		}
		if c.Username == "" {
			return fmt.Errorf("store: username is required")
		}
		switch c.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("store: invalid ssl mode %q", c.SSLMode)
		}
	}

	if c.MaxOpenConns < 0 {
		return fmt.Errorf("store: max_open_conns must be >= 0")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("store: max_idle_conns must be >= 0")
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return fmt.Errorf("store: max_idle_conns cannot exceed max_open_conns")
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("store: default_timeout must be positive")
	}
	return nil
}

// BuildConnectionString returns the driver DSN, preferring an
// explicit ConnectionString override.
func (c *Config) BuildConnectionString() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}

	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	params.Set("connect_timeout", "30")
	params.Set("application_name", "beancounter")

	dsn := fmt.Sprintf("postgres://%s", c.Host)
	if c.Port != 0 && c.Port != 5432 {
		dsn += fmt.Sprintf(":%d", c.Port)
	}
	dsn += "/" + c.Database

	if c.Username != "" {
		userInfo := c.Username
		if c.Password != "" {
			userInfo += ":" + c.Password
		}
		dsn = fmt.Sprintf("postgres://%s@%s", userInfo, dsn[len("postgres://"):])
	}

	if len(params) > 0 {
		dsn += "?" + params.Encode()
	}
	return dsn, nil
}

// String redacts the password for logging, following the teacher's
// redacted-String() convention for connection configs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{host=%s port=%d database=%s username=%s password=REDACTED sslmode=%s}",
		c.Host, c.Port, c.Database, c.Username, c.SSLMode)
}
