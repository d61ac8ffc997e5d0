package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects level ("debug", "info", "warn", "error") and format ("json" or "text").
type Config struct {
	Level     string
	Format    string
	AddSource bool
}

// ParseLevel maps a config string to a slog level. Unknown values fall back to info.
func ParseLevel(v string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// InitLogger builds the process logger and installs it as the slog default.
func InitLogger(cfg Config) *slog.Logger {
	return initLogger(os.Stdout, cfg)
}

func initLogger(w io.Writer, cfg Config) *slog.Logger {
	level, ok := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var handler slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if !ok {
		logger.Warn("invalid log level specified, defaulting to INFO", "specified_level", cfg.Level)
	}
	if format != "" && format != "json" && format != "text" {
		logger.Warn("invalid log format specified, defaulting to text", "specified_format", cfg.Format)
	}
	return logger
}

// NewComponentLogger creates a component-specific logger.
func NewComponentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(slog.String("component", component))
}
