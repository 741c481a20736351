// Package logging builds the slog.Logger every command and component
// logs through, configured from the environment the way internal/config
// reads its own settings.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Default returns a logger tagged with component, reading its level
// from CTIX_LOG_LEVEL (debug, info, warn, error; default info) and its
// format from CTIX_LOG_FORMAT (text or json; default text).
func Default(component string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("CTIX_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler).With("component", component)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("CTIX_LOG_LEVEL")) {
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
