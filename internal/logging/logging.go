// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options controls handler construction
type Options struct {
	Level   string
	NoColor bool
	Writer  io.Writer
}

// ParseLevel maps a config level name onto a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a tint-backed logger
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(opts.Level),
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	}))
}

// Setup installs the logger as slog's default and returns it
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// Component returns the default logger tagged with a component name
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}
