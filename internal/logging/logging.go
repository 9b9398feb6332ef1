// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Init installs a text logger on w (stderr when nil) as the slog default and
// routes the standard log package through it. verbose forces debug level.
func Init(w io.Writer, level string, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl := ParseLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(handler, lvl).Writer())

	return logger
}

// ParseLevel maps a level name to a slog level. Unknown names mean warn.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
