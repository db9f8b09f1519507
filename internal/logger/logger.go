package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the supervisor's own structured logging.
type Config struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	Color bool   `mapstructure:"color"`
}

// New builds a slog.Logger writing to w according to cfg.
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Color {
		return slog.New(NewColorTextHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Default returns a colored stderr logger at info level.
func Default() *slog.Logger {
	return New(os.Stderr, Config{Level: "info", Color: true})
}

func parseLevel(s string) slog.Level {
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
