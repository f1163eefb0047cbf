package logger

import (
	"log/slog"
	"os"
	"strings"
)

// TestingConfig returns the logger configuration used in tests. It stays at WARN
// unless TEST_DEBUG is set, and follows TUNELIB_LOG_FORMAT like the binary.
func TestingConfig() Config {
	cfg := Config{Level: slog.LevelWarn, Format: "text"}
	if os.Getenv("TEST_DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if format := os.Getenv("TUNELIB_LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	return cfg
}

// NewTestLogger creates a quiet logger for tests, writing to stderr.
func NewTestLogger() *slog.Logger {
	return NewLogger(TestingConfig())
}
