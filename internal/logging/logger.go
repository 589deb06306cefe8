// Package logging provides structured logging configuration using log/slog.
//
// The terminal belongs to the UI, so log output goes to a file (or nowhere)
// rather than stdout.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string, w io.Writer) {
	if w == nil {
		w = io.Discard
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// OpenFile opens path for appending, creating parent directories as needed.
// An empty path yields io.Discard and a no-op closer.
func OpenFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithFields returns the default logger with additional structured fields.
//
// Usage:
//
//	runLogger := logging.WithFields("input", in, "output", out)
//	runLogger.Info("conversion started")
func WithFields(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}
