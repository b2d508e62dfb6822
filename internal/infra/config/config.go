// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080" validate:"required"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// StoreConfig selects where player state is persisted.
type StoreConfig struct {
	Driver string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite file memory"`
	Path   string `yaml:"path" default:"data/podbox.db" validate:"required_unless=Driver memory"`
}

// CatalogConfig represents the remote podcast catalog.
type CatalogConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://podcast-api.netlify.app" validate:"required,url"`
	TimeoutMs int    `yaml:"timeout_ms" default:"10000" validate:"gte=100,lte=60000"`
	CacheSize int    `yaml:"cache_size" default:"128" validate:"gte=1"`
	CacheTTL  int    `yaml:"cache_ttl_sec" default:"600" validate:"gte=0"`
}

// PlaybackConfig represents playback and progress tracking configuration.
type PlaybackConfig struct {
	Backend             string  `yaml:"backend" default:"clock" validate:"oneof=clock speaker"`
	DefaultVolume       int     `yaml:"default_volume" default:"70" validate:"gte=0,lte=100"`
	SkipSeconds         float64 `yaml:"skip_seconds" default:"15" validate:"gt=0"`
	RepeatDelayMs       int     `yaml:"repeat_delay_ms" default:"500" validate:"gte=0,lte=10000"`
	SaveIntervalSec     float64 `yaml:"save_interval_sec" default:"1" validate:"gt=0"`
	CompletionThreshold float64 `yaml:"completion_threshold" default:"0.9" validate:"gt=0,lte=1"`
	RecentCapacity      int     `yaml:"recent_capacity" default:"50" validate:"gte=1"`
	TickMs              int     `yaml:"tick_ms" default:"250" validate:"gte=10,lte=5000"`
}

// LoggingConfig represents logger configuration. Command-line flags take precedence.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
	JSON   bool   `yaml:"json"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies env overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PODBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PODBOX_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("PODBOX_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("PODBOX_CATALOG_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("PODBOX_PLAYBACK_BACKEND"); v != "" {
		c.Playback.Backend = v
	}
	if v := os.Getenv("PODBOX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PODBOX_DEFAULT_VOLUME"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Playback.DefaultVolume = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// CatalogTimeout returns the catalog request timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutMs) * time.Millisecond
}

// CatalogCacheTTL returns how long catalog responses are cached.
func (c *Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTL) * time.Second
}

// RepeatDelay returns the delay before a repeated episode restarts.
func (c *Config) RepeatDelay() time.Duration {
	return time.Duration(c.Playback.RepeatDelayMs) * time.Millisecond
}

// TickInterval returns how often the clock backend reports playback time.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickMs) * time.Millisecond
}
