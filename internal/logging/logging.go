// Package logging builds the slog loggers used across pinger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Levels and formats accepted by NewLogger.
var (
	Levels  = []string{"debug", "info", "warn", "error"}
	Formats = []string{"text", "json"}
)

// NewLogger creates a logger writing to stderr, so that probe output on
// stdout stays machine readable.
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger with a custom writer.
// Unknown levels fall back to info and unknown formats to text.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

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

// ValidLevel reports whether level is one NewLogger understands.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// ValidFormat reports whether format is one NewLogger understands.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component returns logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = NopLogger()
	}
	return logger.With(slog.String(KeyComponent, name))
}

// Common attribute keys.
const (
	KeyHandle     = "handle"
	KeyHost       = "host"
	KeySequence   = "seq"
	KeyOutcome    = "outcome"
	KeyElapsed    = "elapsed_ms"
	KeySession    = "session"
	KeyComponent  = "component"
	KeyError      = "error"
	KeyAddress    = "address"
	KeyRemoteAddr = "remote_addr"
	KeyCount      = "count"
	KeyDuration   = "duration"
)
