package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "https://podcast-api.netlify.app", cfg.Catalog.BaseURL)
	assert.Equal(t, 70, cfg.Playback.DefaultVolume)
	assert.Equal(t, 15.0, cfg.Playback.SkipSeconds)
	assert.Equal(t, 0.9, cfg.Playback.CompletionThreshold)
	assert.Equal(t, 50, cfg.Playback.RecentCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.RepeatDelay())
	assert.Equal(t, 10*time.Second, cfg.CatalogTimeout())
	assert.Equal(t, 10*time.Minute, cfg.CatalogCacheTTL())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  addr: ":9090"
store:
  driver: file
  path: /tmp/podbox.json
playback:
  default_volume: 40
  repeat_delay_ms: 250
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "/tmp/podbox.json", cfg.Store.Path)
	assert.Equal(t, 40, cfg.Playback.DefaultVolume)
	assert.Equal(t, 250*time.Millisecond, cfg.RepeatDelay())
	assert.Equal(t, "clock", cfg.Playback.Backend)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: true,
			errMsg:  "Level",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "redis" },
			wantErr: true,
			errMsg:  "Driver",
		},
		{
			name:    "volume above range",
			mutate:  func(c *Config) { c.Playback.DefaultVolume = 150 },
			wantErr: true,
			errMsg:  "DefaultVolume",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Playback.CompletionThreshold = 1.5 },
			wantErr: true,
			errMsg:  "CompletionThreshold",
		},
		{
			name:    "invalid catalog url",
			mutate:  func(c *Config) { c.Catalog.BaseURL = "not a url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name: "memory store needs no path",
			mutate: func(c *Config) {
				c.Store.Driver = "memory"
				c.Store.Path = ""
			},
		},
		{
			name:    "sqlite store needs a path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: true,
			errMsg:  "Path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":8081\"\n"), 0o644))

	t.Setenv("PODBOX_ADDR", ":7070")
	t.Setenv("PODBOX_STORE_DRIVER", "memory")
	t.Setenv("PODBOX_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
