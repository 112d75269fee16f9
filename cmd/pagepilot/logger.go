package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/elee1766/pagepilot/src/config"
	"github.com/lmittmann/tint"
)

// createLogger builds the process logger. Text output goes through tint;
// json output uses the standard handler.
func createLogger(w io.Writer, cfg config.LoggingConfig, override string) *slog.Logger {
	level := cfg.Level
	if override != "" {
		level = override
	}
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: "15:04:05",
	}))
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
