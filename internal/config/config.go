// Package config loads the application configuration: a YAML file, then
// MODCHECK_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/modcheck/internal/logging"
	"github.com/sydlexius/modcheck/internal/provider"
)

// ErrConfigLoad marks a config file that could not be used. Load still
// returns a usable Config alongside it.
var ErrConfigLoad = errors.New("config load failure")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MODCHECK_"

// Config holds all application configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Scan       ScanConfig       `yaml:"scan"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    logging.Config   `yaml:"logging"`
}

// CacheConfig holds lookup cache settings.
type CacheConfig struct {
	Path     string        `yaml:"path"`
	TTL      time.Duration `yaml:"ttl"`
	Disabled bool          `yaml:"disabled"`
}

// ProvidersConfig holds upstream API settings.
type ProvidersConfig struct {
	ModrinthURL      string  `yaml:"modrinth_url"`
	CurseForgeURL    string  `yaml:"curseforge_url"`
	CurseForgeAPIKey string  `yaml:"curseforge_api_key"`
	ModrinthRate     float64 `yaml:"modrinth_rate"`
	CurseForgeRate   float64 `yaml:"curseforge_rate"`

	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// ScanConfig holds batch scan settings.
type ScanConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// EncryptionConfig locates the key that seals stored API keys.
type EncryptionConfig struct {
	KeyFile string `yaml:"key_file"`
}

// Dir returns the modcheck config directory.
func Dir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "modcheck")
	}
	return ".modcheck"
}

// DefaultPath returns the config file path, honoring MODCHECK_CONFIG_PATH.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "CONFIG_PATH"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

func defaultCachePath() string {
	if d, err := os.UserCacheDir(); err == nil {
		return filepath.Join(d, "modcheck", "cache.db")
	}
	return filepath.Join(Dir(), "cache.db")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	policy := provider.DefaultRetryPolicy()
	return &Config{
		Cache: CacheConfig{
			Path: defaultCachePath(),
			TTL:  7 * 24 * time.Hour,
		},
		Providers: ProvidersConfig{
			ModrinthURL:   "https://api.modrinth.com",
			CurseForgeURL: "https://api.curseforge.com",
			Timeout:       policy.Timeout,
			Retries:       policy.Attempts,
			BaseDelay:     policy.BaseDelay,
			MaxDelay:      policy.MaxDelay,
		},
		Scan: ScanConfig{
			Workers: 4,
		},
		Encryption: EncryptionConfig{
			KeyFile: filepath.Join(Dir(), "secret.key"),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
//
// A file that cannot be read or parsed, or values that fail validation, do
// not abort startup: the returned Config falls back to defaults for what was
// unusable and the error wraps ErrConfigLoad so the caller can warn.
func Load(path string) (*Config, error) {
	cfg := Default()
	var problems []error

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			cfg = Default()
			problems = append(problems, fmt.Errorf("config file %s: %w", path, err))
		}
	}

	problems = append(problems, cfg.loadFromEnv()...)
	problems = append(problems, cfg.validate()...)

	if len(problems) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrConfigLoad, errors.Join(problems...))
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's own config file
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() []error {
	var problems []error
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("CACHE_PATH", &c.Cache.Path)
	dur("CACHE_TTL", &c.Cache.TTL)
	if v := os.Getenv(EnvPrefix + "NO_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Errorf("%sNO_CACHE: %w", EnvPrefix, err))
		} else {
			c.Cache.Disabled = b
		}
	}
	str("MODRINTH_URL", &c.Providers.ModrinthURL)
	str("CURSEFORGE_URL", &c.Providers.CurseForgeURL)
	str("CF_API_KEY", &c.Providers.CurseForgeAPIKey)
	dur("TIMEOUT", &c.Providers.Timeout)
	num("RETRIES", &c.Providers.Retries)
	num("WORKERS", &c.Scan.Workers)
	dur("SCAN_TIMEOUT", &c.Scan.Timeout)
	str("KEY_FILE", &c.Encryption.KeyFile)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.FilePath)
	return problems
}

// validate resets invalid values to their defaults and reports each one.
func (c *Config) validate() []error {
	def := Default()
	var problems []error
	reset := func(msg string) {
		problems = append(problems, errors.New(msg))
	}

	if c.Scan.Workers < 1 || c.Scan.Workers > 64 {
		reset(fmt.Sprintf("scan.workers must be between 1 and 64, got %d", c.Scan.Workers))
		c.Scan.Workers = def.Scan.Workers
	}
	if c.Scan.Timeout < 0 {
		reset("scan.timeout must not be negative")
		c.Scan.Timeout = 0
	}
	if c.Providers.Retries < 1 || c.Providers.Retries > 10 {
		reset(fmt.Sprintf("providers.retries must be between 1 and 10, got %d", c.Providers.Retries))
		c.Providers.Retries = def.Providers.Retries
	}
	if c.Providers.Timeout <= 0 {
		reset("providers.timeout must be positive")
		c.Providers.Timeout = def.Providers.Timeout
	}
	if c.Cache.TTL < 0 {
		reset("cache.ttl must not be negative")
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.Path == "" {
		c.Cache.Path = def.Cache.Path
	}
	if c.Encryption.KeyFile == "" {
		c.Encryption.KeyFile = def.Encryption.KeyFile
	}
	if !logging.ValidLevel(c.Logging.Level) {
		reset(fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
		c.Logging.Level = def.Logging.Level
	}
	if !logging.ValidFormat(c.Logging.Format) {
		reset(fmt.Sprintf("logging.format %q is not one of auto, text, json", c.Logging.Format))
		c.Logging.Format = def.Logging.Format
	}
	c.Providers.ModrinthURL = strings.TrimRight(c.Providers.ModrinthURL, "/")
	c.Providers.CurseForgeURL = strings.TrimRight(c.Providers.CurseForgeURL, "/")
	return problems
}

// RetryPolicy builds the provider retry policy from the config.
func (c *Config) RetryPolicy() provider.RetryPolicy {
	return provider.RetryPolicy{
		Attempts:  c.Providers.Retries,
		Timeout:   c.Providers.Timeout,
		BaseDelay: c.Providers.BaseDelay,
		MaxDelay:  c.Providers.MaxDelay,
	}
}

// RateLimits returns per-provider overrides for configured rates.
func (c *Config) RateLimits() map[provider.ProviderName]float64 {
	limits := map[provider.ProviderName]float64{}
	if c.Providers.ModrinthRate > 0 {
		limits[provider.NameModrinth] = c.Providers.ModrinthRate
	}
	if c.Providers.CurseForgeRate > 0 {
		limits[provider.NameCurseForge] = c.Providers.CurseForgeRate
	}
	return limits
}
