package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodal/kodal/pkg/apierr"
)

const validKey = "configKEY1234567890abcd=="

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, int64(50*1024*1024), cfg.Cache.MaxBytes)
	assert.Equal(t, "https://apis.data.go.kr", cfg.Upstream.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout())
	assert.Equal(t, time.Second, cfg.Upstream.RetryDelay())
	assert.Equal(t, 90.0, cfg.Health.CacheMemoryPercent)
	assert.False(t, cfg.Production())
}

func TestLoadMissingDefaultFileIsFine(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeConfiguration))
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kodal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
upstream:
  timeout_seconds: 5
  max_retries: 2
health:
  block_rate_percent: 75
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout())
	assert.Equal(t, 2, cfg.Upstream.MaxRetries)
	assert.Equal(t, 75.0, cfg.Health.BlockRatePercent)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kodal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeConfiguration))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PUBLIC_DATA_API_KEY", validKey)
	t.Setenv("API_KEY_EXPIRY", "2027-06-30")
	t.Setenv("PUBLIC_DATA_ADDRESS_API_KEY", "addressKEY1234567890ab==")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("STRICT_KOREA_BOUNDS", "true")
	t.Setenv("PORT", "4000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, validKey, cfg.Keys.Primary)
	assert.Equal(t, time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC), cfg.Keys.PrimaryExpiry)
	assert.Equal(t, "addressKEY1234567890ab==", cfg.Keys.Services["address"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Production())
	assert.True(t, cfg.Coordinate.StrictKoreaBounds)
	assert.Equal(t, ":4000", cfg.Server.Addr)
}

func TestStrictKoreaBounds(t *testing.T) {
	// Korean-extent warnings default on and survive anything but an
	// explicit "false".
	assert.True(t, Default().Coordinate.StrictKoreaBounds)

	t.Run("off", func(t *testing.T) {
		t.Setenv("STRICT_KOREA_BOUNDS", "false")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.False(t, cfg.Coordinate.StrictKoreaBounds)
	})

	t.Run("non-canonical value stays on", func(t *testing.T) {
		t.Setenv("STRICT_KOREA_BOUNDS", "yes")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.True(t, cfg.Coordinate.StrictKoreaBounds)
	})
}

func TestExpiryAcceptsRFC3339(t *testing.T) {
	t.Setenv("API_KEY_EXPIRY", "2027-06-30T09:00:00Z")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2027, cfg.Keys.PrimaryExpiry.Year())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"zero cache bytes", func(c *Config) { c.Cache.MaxBytes = 0 }},
		{"zero timeout", func(c *Config) { c.Upstream.TimeoutSeconds = 0 }},
		{"zero retries", func(c *Config) { c.Upstream.MaxRetries = 0 }},
		{"threshold over 100", func(c *Config) { c.Health.BlockRatePercent = 150 }},
		{"negative threshold", func(c *Config) { c.Health.SuccessRatePercent = -1 }},
		{"malformed key", func(c *Config) { c.Keys.Primary = "too short" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apierr.IsCode(err, apierr.CodeConfiguration))
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}
