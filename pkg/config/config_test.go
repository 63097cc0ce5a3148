package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SproutLearn/sprout-core/internal/testutil"
	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	"github.com/SproutLearn/sprout-core/pkg/consent"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
	"github.com/SproutLearn/sprout-core/pkg/trial"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Empty(t, cfg.Auth.JWKSURL, "the key-set URL has no safe default")
	assert.Equal(t, 10*time.Minute, cfg.Auth.KeySetTTL)
	assert.Equal(t, trial.FullAccessDays, cfg.Trial.Days)
	assert.Equal(t, consent.DefaultRestoreGraceWindow, cfg.Consent.RestoreGraceWindow)
	assert.Equal(t, consent.DefaultExemptPathPrefixes, cfg.Consent.ExemptPathPrefixes)
	assert.Equal(t, postgres.DefaultDatabase, cfg.Postgres.Database)
	assert.Equal(t, "redis.data.svc.cluster.local:6379", cfg.Redis.Addr)
}

// writeConfigFile writes a YAML config into a temp dir and returns its path.
func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  jwks_url: https://idp.example.com/.well-known/jwks.json
  keyset_ttl: 5m
trial:
  days: 7
consent:
  restore_grace_window: 720h
redis:
  addr: localhost:6379
  db: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://idp.example.com/.well-known/jwks.json", cfg.Auth.JWKSURL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.KeySetTTL)
	assert.Equal(t, 7, cfg.Trial.Days)
	assert.Equal(t, 720*time.Hour, cfg.Consent.RestoreGraceWindow)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)

	// Untouched sections keep their defaults.
	assert.Equal(t, postgres.DefaultHost, cfg.Postgres.Host)
	assert.Equal(t, consent.DefaultExemptPathPrefixes, cfg.Consent.ExemptPathPrefixes)
}

func TestLoad_MissingFileIsOptional(t *testing.T) {
	testutil.SetEnv(t, "SPROUT_AUTH_JWKS_URL", "https://idp.example.com/jwks")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com/jwks", cfg.Auth.JWKSURL)
}

func TestLoad_MalformedFileRejected(t *testing.T) {
	path := writeConfigFile(t, "auth: [not a mapping")

	_, err := Load(path)
	testutil.RequireErrorCode(t, err, sserr.CodeConfiguration)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  jwks_url: https://file.example.com/jwks
  keyset_ttl: 5m
`)
	testutil.SetEnv(t, "SPROUT_AUTH_JWKS_URL", "https://env.example.com/jwks")
	testutil.SetEnv(t, "SPROUT_AUTH_KEYSET_TTL", "90s")
	testutil.SetEnv(t, "SPROUT_TRIAL_DAYS", "21")
	testutil.SetEnv(t, "SPROUT_CONSENT_EXEMPT_PATHS", "/health, /api/consent")
	testutil.SetEnv(t, "SPROUT_REDIS_ADDR", "redis-env:6379")
	testutil.SetEnv(t, "SPROUT_REDIS_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/jwks", cfg.Auth.JWKSURL)
	assert.Equal(t, 90*time.Second, cfg.Auth.KeySetTTL)
	assert.Equal(t, 21, cfg.Trial.Days)
	assert.Equal(t, []string{"/health", "/api/consent"}, cfg.Consent.ExemptPathPrefixes)
	assert.Equal(t, "redis-env:6379", cfg.Redis.Addr)
	assert.Equal(t, "hunter2", cfg.Redis.Password.Value())
}

func TestLoad_BadEnvValueRejected(t *testing.T) {
	testutil.SetEnv(t, "SPROUT_AUTH_JWKS_URL", "https://idp.example.com/jwks")
	testutil.SetEnv(t, "SPROUT_TRIAL_DAYS", "two weeks")

	_, err := Load("")
	testutil.RequireErrorCode(t, err, sserr.CodeConfiguration)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := Default()
		cfg.Auth.JWKSURL = "https://idp.example.com/jwks"
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode sserr.Code
	}{
		{
			name:   "valid config passes",
			mutate: func(*Config) {},
		},
		{
			name:     "missing jwks url",
			mutate:   func(c *Config) { c.Auth.JWKSURL = "" },
			wantCode: sserr.CodeValidationRequired,
		},
		{
			name:     "non-positive keyset ttl",
			mutate:   func(c *Config) { c.Auth.KeySetTTL = 0 },
			wantCode: sserr.CodeValidation,
		},
		{
			name:     "non-positive trial days",
			mutate:   func(c *Config) { c.Trial.Days = -1 },
			wantCode: sserr.CodeValidation,
		},
		{
			name:     "non-positive grace window",
			mutate:   func(c *Config) { c.Consent.RestoreGraceWindow = 0 },
			wantCode: sserr.CodeValidation,
		},
		{
			name:     "missing redis addr",
			mutate:   func(c *Config) { c.Redis.Addr = "" },
			wantCode: sserr.CodeValidationRequired,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			testutil.AssertErrorCode(t, err, tc.wantCode)
		})
	}
}
