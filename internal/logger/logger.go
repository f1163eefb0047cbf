// Package logger provides structured logging configuration using log/slog.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Format string // "text", "json" or "pretty"
}

// NewLogger creates a configured slog.Logger.
func NewLogger(cfg Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		// Add a source location for debug and error levels
		AddSource: cfg.Level <= slog.LevelDebug,
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "pretty":
		handler = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			ReportCaller:    cfg.Level <= slog.LevelDebug,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "tunelib",
			Level:           charmlog.Level(cfg.Level),
		})
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps DEBUG, INFO, WARN, WARNING and ERROR (any case) to a slog level.
// Unknown values return fallback.
func ParseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return fallback
	}
}

// DefaultConfig returns the default logger configuration.
// TUNELIB_LOG_LEVEL (DEBUG, INFO, WARN, WARNING, ERROR) and
// TUNELIB_LOG_FORMAT (text, json, pretty) override the defaults of INFO and text.
func DefaultConfig() Config {
	format := "text"
	if envFormat := os.Getenv("TUNELIB_LOG_FORMAT"); envFormat != "" {
		format = strings.ToLower(envFormat)
	}

	return Config{
		Level:  ParseLevel(os.Getenv("TUNELIB_LOG_LEVEL"), slog.LevelInfo),
		Format: format,
	}
}
