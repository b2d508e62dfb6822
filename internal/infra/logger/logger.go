// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or file path
	Level  string // "debug", "info", "warn", "error"
	File   string // log file path (used when Output is not stdout/stderr)
	JSON   bool   // JSON lines even on a console stream
}

// IsConsole reports whether the output goes to a terminal stream rather than a file.
func (c Config) IsConsole() bool {
	switch strings.ToLower(c.Output) {
	case "stdout", "stderr", "":
		return true
	default:
		return false
	}
}

// Merge returns c with every non-empty field of override applied.
func (c Config) Merge(override Config) Config {
	if override.Output != "" {
		c.Output = override.Output
		c.File = override.File
	}
	if override.File != "" {
		c.File = override.File
	}
	if override.Level != "" {
		c.Level = override.Level
	}
	if override.JSON {
		c.JSON = true
	}
	return c
}

// Init initializes the global zerolog logger with the given configuration.
func Init(cfg Config) error {
	writer, err := openWriter(cfg)
	if err != nil {
		return err
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	logger := build(writer, level, cfg.IsConsole() && !cfg.JSON)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return nil
}

func openWriter(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	path := cfg.File
	if path == "" {
		path = cfg.Output
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create log directory %s", dir)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", path)
	}
	return f, nil
}

// build creates a console or JSON logger. Caller info is only added at debug level.
func build(writer io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	debug := level == zerolog.DebugLevel

	if console {
		cw := zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.TimeOnly,
		}
		if debug {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i interface{}) string {
				s, _ := i.(string)
				return "(" + s + ")"
			}
			return zerolog.New(cw).With().Timestamp().Caller().Logger()
		}
		return zerolog.New(cw).With().Timestamp().Logger()
	}

	ctx := zerolog.New(writer).With().Timestamp()
	if debug {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// shortCaller keeps the last directory and the file name.
func shortCaller(pc uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel maps a level name to zerolog; unknown names fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
