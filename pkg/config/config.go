package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kodal/kodal/pkg/apierr"
	"github.com/kodal/kodal/pkg/keyring"
)

// Environment names. Production elides internal error details on the
// wire.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the resolved service configuration. Secrets only ever enter
// through the environment; everything else may come from the YAML file.
type Config struct {
	Env        string           `yaml:"env"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Keys       KeysConfig       `yaml:"-"`
	Cache      CacheConfig      `yaml:"cache"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Health     HealthConfig     `yaml:"health"`
	Coordinate CoordinateConfig `yaml:"coordinate"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// ShutdownSeconds bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownSeconds int `yaml:"shutdown_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Console switches from JSON to human-readable output.
	Console bool `yaml:"console"`
}

// KeysConfig holds the portal credentials. Environment-only: secrets do
// not belong in config files.
type KeysConfig struct {
	Primary       string
	PrimaryExpiry time.Time
	Services      map[string]string
}

// CacheConfig bounds the response cache.
type CacheConfig struct {
	MaxEntries int   `yaml:"max_entries"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// UpstreamConfig tunes the portal client.
type UpstreamConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	RetryDelayMs    int    `yaml:"retry_delay_ms"`
	EnableCache     bool   `yaml:"enable_cache"`
	EnableRateLimit bool   `yaml:"enable_rate_limit"`
	EnableBreaker   bool   `yaml:"enable_breaker"`
}

// Timeout returns the per-request timeout as a duration.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (u UpstreamConfig) RetryDelay() time.Duration {
	return time.Duration(u.RetryDelayMs) * time.Millisecond
}

// HealthConfig holds the health-check tipping points, in percent.
type HealthConfig struct {
	CacheMemoryPercent float64 `yaml:"cache_memory_percent"`
	BlockRatePercent   float64 `yaml:"block_rate_percent"`
	SuccessRatePercent float64 `yaml:"success_rate_percent"`
}

// CoordinateConfig tunes the coordinate engine.
type CoordinateConfig struct {
	// StrictKoreaBounds warns on WGS84 input outside the Korean
	// peninsula. On unless explicitly turned off.
	StrictKoreaBounds bool `yaml:"strict_korea_bounds"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Env: EnvDevelopment,
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownSeconds: 15,
		},
		Log: LogConfig{
			Level: "info",
		},
		Keys: KeysConfig{
			Services: make(map[string]string),
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
			MaxBytes:   50 * 1024 * 1024,
		},
		Upstream: UpstreamConfig{
			BaseURL:         "https://apis.data.go.kr",
			TimeoutSeconds:  30,
			MaxRetries:      3,
			RetryDelayMs:    1000,
			EnableCache:     true,
			EnableRateLimit: true,
			EnableBreaker:   true,
		},
		Health: HealthConfig{
			CacheMemoryPercent: 90,
			BlockRatePercent:   50,
			SuccessRatePercent: 70,
		},
		Coordinate: CoordinateConfig{
			StrictKoreaBounds: true,
		},
	}
}

// Load resolves configuration in three layers: compiled defaults, then
// the optional YAML file at path, then environment variables. Every run
// follows the same path whether or not the file exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = "kodal.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return apierr.Wrap(apierr.CodeConfiguration,
			fmt.Sprintf("cannot read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return apierr.Wrap(apierr.CodeConfiguration,
			fmt.Sprintf("cannot parse config file %s", path), err)
	}
	return nil
}

// expiryFormats are the accepted shapes of API_KEY_EXPIRY.
var expiryFormats = []string{"2006-01-02", time.RFC3339}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PUBLIC_DATA_API_KEY"); v != "" {
		cfg.Keys.Primary = v
	}
	if v := os.Getenv("API_KEY_EXPIRY"); v != "" {
		for _, layout := range expiryFormats {
			if ts, err := time.Parse(layout, v); err == nil {
				cfg.Keys.PrimaryExpiry = ts
				break
			}
		}
	}
	for _, service := range keyring.ServiceProviders {
		env := "PUBLIC_DATA_" + strings.ToUpper(service) + "_API_KEY"
		if v := os.Getenv(env); v != "" {
			cfg.Keys.Services[service] = v
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.Env = v
	}
	// Any value other than "false" keeps the Korean-extent warnings on.
	if v := os.Getenv("STRICT_KOREA_BOUNDS"); v != "" {
		cfg.Coordinate.StrictKoreaBounds = !strings.EqualFold(v, "false")
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate enforces the startup invariants. It does not require a
// primary key; the keyring rejects a missing key with its own message
// so that key problems and config problems read differently.
func (c *Config) Validate() error {
	if !logLevels[c.Log.Level] {
		return apierr.Newf(apierr.CodeConfiguration,
			"invalid log level %q: must be debug, info, warn, or error", c.Log.Level)
	}
	if c.Server.Addr == "" {
		return apierr.New(apierr.CodeConfiguration, "server address is required")
	}
	if c.Cache.MaxEntries <= 0 || c.Cache.MaxBytes <= 0 {
		return apierr.New(apierr.CodeConfiguration, "cache bounds must be positive")
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return apierr.New(apierr.CodeConfiguration, "upstream timeout must be positive")
	}
	if c.Upstream.MaxRetries <= 0 {
		return apierr.New(apierr.CodeConfiguration, "upstream retry count must be positive")
	}
	for name, pct := range map[string]float64{
		"cache_memory_percent": c.Health.CacheMemoryPercent,
		"block_rate_percent":   c.Health.BlockRatePercent,
		"success_rate_percent": c.Health.SuccessRatePercent,
	} {
		if pct <= 0 || pct > 100 {
			return apierr.Newf(apierr.CodeConfiguration,
				"health threshold %s must be in (0, 100]", name)
		}
	}
	if c.Keys.Primary != "" && !keyring.ValidFormat(c.Keys.Primary) {
		return apierr.New(apierr.CodeConfiguration,
			"PUBLIC_DATA_API_KEY does not match the expected key format")
	}
	return nil
}

// Production reports whether the service runs with production error
// shaping.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}
