package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. The level comes from
// CHATVAULT_LOG_LEVEL (debug, info, warn, error) and defaults to info.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelFromEnv(),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch os.Getenv("CHATVAULT_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
