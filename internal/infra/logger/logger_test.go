package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podbox.log")
	require.NoError(t, Init(Config{Output: path, File: path, Level: "info"}))

	zlog.Info().Msg("player started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"player started"`)
}

func TestConfig_IsConsole(t *testing.T) {
	assert.True(t, Config{}.IsConsole())
	assert.True(t, Config{Output: "STDERR"}.IsConsole())
	assert.False(t, Config{Output: "/var/log/podbox.log"}.IsConsole())
}

func TestConfig_Merge(t *testing.T) {
	base := Config{Output: "stdout", Level: "info"}

	tests := []struct {
		name     string
		override Config
		want     Config
	}{
		{name: "empty keeps base", override: Config{}, want: base},
		{name: "level only", override: Config{Level: "debug"}, want: Config{Output: "stdout", Level: "debug"}},
		{
			name:     "file output",
			override: Config{Output: "/tmp/p.log", File: "/tmp/p.log"},
			want:     Config{Output: "/tmp/p.log", File: "/tmp/p.log", Level: "info"},
		},
		{name: "json", override: Config{JSON: true}, want: Config{Output: "stdout", Level: "info", JSON: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Merge(tt.override))
		})
	}
}

func TestBuild_JSON(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	l := build(&buf, zerolog.InfoLevel, false)
	l.Info().Msg("episode loaded")
	assert.Contains(t, buf.String(), `"message":"episode loaded"`)
	assert.NotContains(t, buf.String(), `"caller"`)
}

func TestInit_CreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "podbox.log")
	require.NoError(t, Init(Config{Output: path, Level: "warn"}))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("internal", "app", "player", "player.go")
	assert.Equal(t, filepath.Join("player", "player.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}
