package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Default connection settings for a SproutLearn deployment, where
// PostgreSQL is reached through an in-cluster service.
const (
	// DefaultHost is the in-cluster DNS name of the PostgreSQL service.
	DefaultHost = "postgres.data.svc.cluster.local"

	// DefaultPort is the standard PostgreSQL port.
	DefaultPort = 5432

	// DefaultDatabase is the platform database name.
	DefaultDatabase = "sproutlearn"

	// DefaultUser is the default PostgreSQL user.
	DefaultUser = "sproutlearn"

	// DefaultMaxConns is the maximum number of pooled connections.
	DefaultMaxConns int32 = 25

	// DefaultMinConns is the minimum number of idle pooled connections.
	DefaultMinConns int32 = 2

	// DefaultMaxConnLifetime bounds connection age so stale connections
	// are replaced after DNS or failover changes.
	DefaultMaxConnLifetime = time.Hour
)

// Secret is a string type that redacts its value in String, GoString, and
// MarshalText to keep the database password out of logs and serialized
// configuration. Use [Secret.Value] where the raw value is required.
type Secret string

// redacted is the placeholder returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]".
func (s Secret) String() string { return redacted }

// GoString returns "[REDACTED]" for %#v formatting.
func (s Secret) GoString() string { return redacted }

// Value returns the actual secret string.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]".
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the PostgreSQL connection configuration. When URI is set it
// takes precedence over the structured fields.
type Config struct {
	// URI is a full PostgreSQL connection string. When set, Host, Port,
	// Database, User, and Password are ignored.
	URI string `yaml:"uri,omitempty" env:"POSTGRES_URI"`

	// Host is the PostgreSQL server hostname.
	Host string `yaml:"host,omitempty" env:"POSTGRES_HOST"`

	// Port is the PostgreSQL server port.
	Port int `yaml:"port,omitempty" env:"POSTGRES_PORT"`

	// Database is the database name.
	Database string `yaml:"database" env:"POSTGRES_DATABASE"`

	// User is the PostgreSQL user.
	User string `yaml:"user" env:"POSTGRES_USER"`

	// Password is the PostgreSQL password, redacted in logs via [Secret].
	Password Secret `yaml:"-" env:"POSTGRES_PASSWORD"`

	// SSLMode is the PostgreSQL sslmode parameter (e.g. "require").
	SSLMode string `yaml:"ssl_mode,omitempty" env:"POSTGRES_SSLMODE"`

	// MaxConns is the maximum number of pooled connections.
	MaxConns int32 `yaml:"max_conns,omitempty" env:"POSTGRES_MAX_CONNS"`

	// MinConns is the minimum number of idle pooled connections.
	MinConns int32 `yaml:"min_conns,omitempty" env:"POSTGRES_MIN_CONNS"`

	// MaxConnLifetime is the maximum lifetime of a pooled connection.
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime,omitempty" env:"POSTGRES_MAX_CONN_LIFETIME"`
}

// DefaultConfig returns a Config with platform defaults applied. Callers
// override fields as needed before passing the config to [NewClient].
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		Database:        DefaultDatabase,
		User:            DefaultUser,
		SSLMode:         "require",
		MaxConns:        DefaultMaxConns,
		MinConns:        DefaultMinConns,
		MaxConnLifetime: DefaultMaxConnLifetime,
	}
}

// Validate checks the configuration and applies defaults for zero-valued
// fields. Returns the first validation error encountered.
func (c *Config) Validate() error {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = DefaultMaxConnLifetime
	}

	if c.URI != "" {
		if _, err := url.Parse(c.URI); err != nil {
			return fmt.Errorf("postgres: config URI is invalid: %w", err)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("postgres: config database must not be empty")
	}
	if c.User == "" {
		return errors.New("postgres: config user must not be empty")
	}
	if c.SSLMode == "" {
		c.SSLMode = "require"
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: config max_conns (%d) must be >= min_conns (%d)",
			c.MaxConns, c.MinConns)
	}
	return nil
}

// ConnectionString builds the pgx connection string. The returned value
// contains the password in cleartext; never log it.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
