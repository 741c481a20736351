package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Config configures how the on-disk tag database is opened.
type Config struct {
	// Path is the filesystem location of the sqlite database file,
	// e.g. "<repo>/.ct.sqlite". ":memory:" is accepted for tests.
	Path string

	// EnableWAL turns on write-ahead logging. Open applies no default
	// of its own: WAL is used only when this is true, whatever Path is.
	EnableWAL bool
}

// Open creates (or reuses) the sqlite database at cfg.Path, creating
// its parent directory if necessary, and applies the pragmas the
// single-writer model in spec §5 depends on.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single sqlite connection per process keeps the "single writer"
	// assumption in spec §5 literal rather than advisory.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if cfg.EnableWAL {
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return sqlDB, nil
}

// execQueryer is satisfied by both *sql.DB and *sql.Tx, letting
// Store's operations run unmodified whether or not they are inside a
// transaction opened by BeginTransaction.
type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
