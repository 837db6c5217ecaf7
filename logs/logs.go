// Package logs builds the slog loggers shared by every binary.
package logs

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString parses a case-insensitive level name and builds a logger.
// Unknown names fall back to info.
func GetLoggerFromString(level string) *slog.Logger {
	return GetLoggerFromLevel(ParseLevel(level))
}

// GetLoggerFromLevel builds a text logger writing to stderr.
func GetLoggerFromLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a level name to its slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
