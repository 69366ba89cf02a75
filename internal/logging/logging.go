// Package logging provides structured logging configuration for cron-sentry.
//
// Logging Strategy:
// - JSON format on stderr; stdout carries the wrapped command's output
// - Default level is warn, so a healthy run logs nothing
// - Optional systemd journal target for hosts where cron mail is discarded
// - Default logger set globally for convenience, also returned for explicit passing
//
// Usage:
//
//	logger := logging.SetupLogger(os.Stderr, "warn", "stderr")
//	logger.Warn("failed to submit report", "error", err)
package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// Target names accepted by SetupLogger.
const (
	TargetStderr  = "stderr"
	TargetJournal = "journal"
)

// SetupLogger creates and configures a structured logger.
// The level parameter accepts: "debug", "info", "warn", "error" (case-insensitive).
// Invalid levels default to "warn".
//
// With target "journal" records go to the systemd journal when it is
// reachable; otherwise, and for any other target, JSON is written to w.
//
// The logger is also set as the default via slog.SetDefault.
func SetupLogger(w io.Writer, level, target string) *slog.Logger {
	slogLevel := parseLevel(level)

	var handler slog.Handler
	if target == TargetJournal && journalEnabled() {
		handler = newJournalHandler(slogLevel)
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slogLevel,
			AddSource:   slogLevel == slog.LevelDebug,
			ReplaceAttr: shortenSource,
		})
	}

	logger := slog.New(handler)

	// Set as default for global access via slog.Info(), slog.Error(), etc.
	slog.SetDefault(logger)

	return logger
}

// shortenSource trims source paths to internal/... or the base name.
func shortenSource(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if source, ok := a.Value.Any().(*slog.Source); ok {
		if idx := strings.Index(source.File, "internal/"); idx != -1 {
			source.File = source.File[idx:]
		} else {
			source.File = filepath.Base(source.File)
		}
		if idx := strings.Index(source.Function, "internal/"); idx != -1 {
			source.Function = source.Function[idx:]
		}
	}
	return a
}

// parseLevel converts a string log level to slog.Level.
// Accepts: "debug", "info", "warn", "error" (case-insensitive).
// Returns slog.LevelWarn for unrecognized values.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithComponent returns a logger with a pre-set component attribute.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}
