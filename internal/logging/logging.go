// Package logging builds the structured slog loggers used by the crudgrid
// server and CLI.
//
// Logs go to stderr by default so command output on stdout stays clean:
//
//	logger := logging.New(logging.Config{Level: "debug", Service: "server"})
//	logger.Info("listening", "addr", addr)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures New. The zero value logs info and above to stderr in
// text format.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Service is attached to every record as the "service" attribute when set.
	Service string

	// JSON selects the JSON handler instead of text.
	JSON bool

	// Output overrides the destination. Nil means os.Stderr.
	Output io.Writer
}

// ParseLevel maps a level name to slog.Level. Matching is case-insensitive;
// "warning" is accepted for warn.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger for cfg. An unknown level falls back to info.
func New(cfg Config) *slog.Logger {
	level, err := ParseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	if err != nil {
		logger.Warn("falling back to info level", "error", err)
	}
	return logger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
