package toolsutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/elee1766/pagepilot/src/pagebridge"
)

// Package-level logger for tools
var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

// SetLogger allows setting a custom logger for the tools package
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger
func GetLogger() *slog.Logger {
	return logger
}

// MaxContentRunes caps page text handed back to the model.
const MaxContentRunes = 20000

// ErrNoPage is returned by page tools when no page is attached.
var ErrNoPage = errors.New("no page is attached")

// Truncate shortens s to limit runes and marks the cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + fmt.Sprintf("\n[content truncated, %d more characters]", len(runes)-limit)
}

// Describe turns a bridge failure into text the model can act on.
func Describe(op string, err error) error {
	switch {
	case errors.Is(err, pagebridge.ErrElementNotFound):
		return fmt.Errorf("%s failed: element not found; call getInteractiveElements for fresh xpaths", op)
	case errors.Is(err, pagebridge.ErrTimeout):
		return fmt.Errorf("%s failed: the page did not respond in time", op)
	case errors.Is(err, pagebridge.ErrNoActivePage):
		return fmt.Errorf("%s failed: no browser tab is connected", op)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
