// Package config loads ctix's process-wide settings from the
// environment, following the Default*Config()/Load*ConfigFromEnv()
// pattern used throughout this codebase.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds everything the CLI needs to open a store and run a
// pass: where the database lives, how to log, and the defaults used
// when no flag overrides them.
type Config struct {
	// DBPath is the SQLite database file (default "./.ct.sqlite", in
	// the working directory).
	DBPath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is text or json.
	LogFormat string

	// Exclude is the default set of path prefixes a full index run
	// records as the exclude option, when no -exclude flag is given.
	Exclude []string

	// IgnoreFile is the gitignore-style file, read from the run's root
	// directory, whose patterns the cursor visitor uses to skip files
	// (default .ctignore).
	IgnoreFile string

	// WatchDebounceMs is how long, in milliseconds, the watch
	// subcommand waits after the last filesystem event before
	// triggering an update pass.
	WatchDebounceMs int
}

const (
	defaultDBPath          = "./.ct.sqlite"
	defaultIgnoreFile      = ".ctignore"
	defaultWatchDebounceMs = 300
)

// DefaultConfig returns ctix's baseline configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:          defaultDBPath,
		LogLevel:        "info",
		LogFormat:       "text",
		Exclude:         nil,
		IgnoreFile:      defaultIgnoreFile,
		WatchDebounceMs: defaultWatchDebounceMs,
	}
}

// LoadFromEnv loads configuration from environment variables, falling
// back to DefaultConfig for anything unset. Only
// CTIX_WATCH_DEBOUNCE_MS is validated: a value that is not a positive
// integer keeps the default. Other values are taken as given:
//
//   - CTIX_DB_PATH: database file path
//   - CTIX_LOG_LEVEL: debug, info, warn, error
//   - CTIX_LOG_FORMAT: text, json
//   - CTIX_EXCLUDE: comma-separated path prefixes
//   - CTIX_IGNORE_FILE: gitignore-style exclude file name
//   - CTIX_WATCH_DEBOUNCE_MS: watch debounce in milliseconds
func LoadFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("CTIX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CTIX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CTIX_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CTIX_EXCLUDE"); v != "" {
		cfg.Exclude = splitNonEmpty(v, ",")
	}
	if v := os.Getenv("CTIX_IGNORE_FILE"); v != "" {
		cfg.IgnoreFile = v
	}
	if v := os.Getenv("CTIX_WATCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WatchDebounceMs = n
		}
	}

	return cfg
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
