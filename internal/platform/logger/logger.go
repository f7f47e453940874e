package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger injected throughout the service.
// Level defaults to info; FIREGATE_LOG_LEVEL=debug turns on debug logs.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("FIREGATE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
