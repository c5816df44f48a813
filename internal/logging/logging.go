package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a text logger on stdout and installs it as the slog default so
// package-level slog calls share the level.
func New(level string) *slog.Logger {
	logger := NewWithWriter(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler)
}

// Discard is used by tests and by components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
