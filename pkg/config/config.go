// Package config loads the service configuration for the SproutLearn
// trust boundary. Values resolve in layers, highest priority last:
//
//	built-in defaults
//	YAML config file (optional)
//	environment variables
//
// The layering mirrors Kubernetes deployments: defaults live in code,
// config files carry environment-specific overrides, and env vars from
// ConfigMaps or Secrets take final precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	"github.com/SproutLearn/sprout-core/pkg/consent"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
	"github.com/SproutLearn/sprout-core/pkg/trial"
)

// Config is the full service configuration.
type Config struct {
	// Auth configures token verification.
	Auth AuthConfig `yaml:"auth"`

	// Trial configures trial provisioning.
	Trial TrialConfig `yaml:"trial"`

	// Consent configures the consent gate and service.
	Consent ConsentConfig `yaml:"consent"`

	// Postgres configures the relational store.
	Postgres postgres.Config `yaml:"postgres"`

	// Redis configures the session activity store.
	Redis RedisConfig `yaml:"redis"`
}

// AuthConfig configures the key-set cache and verifier.
type AuthConfig struct {
	// JWKSURL is the identity provider's key-set endpoint.
	// Environment variable: SPROUT_AUTH_JWKS_URL
	JWKSURL string `yaml:"jwks_url"`

	// KeySetTTL is how long a fetched key set stays fresh.
	// Environment variable: SPROUT_AUTH_KEYSET_TTL
	KeySetTTL time.Duration `yaml:"keyset_ttl"`
}

// TrialConfig configures trial provisioning for new accounts.
type TrialConfig struct {
	// Days is the trial length granted at account creation.
	// Environment variable: SPROUT_TRIAL_DAYS
	Days int `yaml:"days"`
}

// ConsentConfig configures the consent gate and service.
type ConsentConfig struct {
	// RestoreGraceWindow bounds how long after a withdrawal consent may
	// be restored without a fresh request.
	// Environment variable: SPROUT_CONSENT_RESTORE_GRACE_WINDOW
	RestoreGraceWindow time.Duration `yaml:"restore_grace_window"`

	// ExemptPathPrefixes override the built-in gate allow-list.
	// Environment variable: SPROUT_CONSENT_EXEMPT_PATHS (comma-separated)
	ExemptPathPrefixes []string `yaml:"exempt_path_prefixes"`
}

// RedisConfig configures the session activity store connection.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	// Environment variable: SPROUT_REDIS_ADDR
	Addr string `yaml:"addr"`

	// DB is the Redis database index.
	// Environment variable: SPROUT_REDIS_DB
	DB int `yaml:"db"`

	// Password is the Redis password.
	// Environment variable: SPROUT_REDIS_PASSWORD
	Password postgres.Secret `yaml:"-"`
}

// Default returns a Config with built-in defaults applied. JWKSURL has no
// default; it must come from the file or the environment.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			KeySetTTL: 10 * time.Minute,
		},
		Trial: TrialConfig{
			Days: trial.FullAccessDays,
		},
		Consent: ConsentConfig{
			RestoreGraceWindow: consent.DefaultRestoreGraceWindow,
			ExemptPathPrefixes: consent.DefaultExemptPathPrefixes,
		},
		Postgres: postgres.DefaultConfig(),
		Redis: RedisConfig{
			Addr: "redis.data.svc.cluster.local:6379",
		},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (a missing file is not an error; pass "" to skip), then environment
// variables. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, sserr.Wrapf(err, sserr.CodeConfiguration,
					"config: failed to parse %q", path)
			}
		case os.IsNotExist(err):
			// File-based configuration is optional.
		default:
			return nil, sserr.Wrapf(err, sserr.CodeConfiguration,
				"config: failed to read %q", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() error {
	if v := os.Getenv("SPROUT_AUTH_JWKS_URL"); v != "" {
		c.Auth.JWKSURL = v
	}
	if v := os.Getenv("SPROUT_AUTH_KEYSET_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeConfiguration,
				"config: SPROUT_AUTH_KEYSET_TTL is not a duration")
		}
		c.Auth.KeySetTTL = d
	}
	if v := os.Getenv("SPROUT_TRIAL_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeConfiguration,
				"config: SPROUT_TRIAL_DAYS is not an integer")
		}
		c.Trial.Days = n
	}
	if v := os.Getenv("SPROUT_CONSENT_RESTORE_GRACE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeConfiguration,
				"config: SPROUT_CONSENT_RESTORE_GRACE_WINDOW is not a duration")
		}
		c.Consent.RestoreGraceWindow = d
	}
	if v := os.Getenv("SPROUT_CONSENT_EXEMPT_PATHS"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		c.Consent.ExemptPathPrefixes = parts
	}
	if v := os.Getenv("SPROUT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SPROUT_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeConfiguration,
				"config: SPROUT_REDIS_DB is not an integer")
		}
		c.Redis.DB = n
	}
	if v := os.Getenv("SPROUT_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = postgres.Secret(v)
	}
	if v := os.Getenv("SPROUT_POSTGRES_URI"); v != "" {
		c.Postgres.URI = v
	}
	if v := os.Getenv("SPROUT_POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = postgres.Secret(v)
	}
	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if c.Auth.JWKSURL == "" {
		return sserr.New(sserr.CodeValidationRequired,
			"config: auth.jwks_url is required")
	}
	if c.Auth.KeySetTTL <= 0 {
		return sserr.New(sserr.CodeValidation,
			"config: auth.keyset_ttl must be positive")
	}
	if c.Trial.Days <= 0 {
		return sserr.New(sserr.CodeValidation,
			"config: trial.days must be positive")
	}
	if c.Consent.RestoreGraceWindow <= 0 {
		return sserr.New(sserr.CodeValidation,
			"config: consent.restore_grace_window must be positive")
	}
	if c.Redis.Addr == "" {
		return sserr.New(sserr.CodeValidationRequired,
			"config: redis.addr is required")
	}
	return c.Postgres.Validate()
}
