// Package logging provides structured logging using Go's slog package.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Format represents a log output format.
type Format int

const (
	// FormatText outputs logs in human-readable text format.
	FormatText Format = iota
	// FormatJSON outputs logs in JSON format.
	FormatJSON
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	InitLogger("info", FormatText)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level string, format Format) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	defaultLogger.Store(slog.New(handler))
}

// Logger returns the global logger.
func Logger() *slog.Logger {
	return defaultLogger.Load()
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an informational message with optional key-value pairs.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
