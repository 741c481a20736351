package db

import "context"

// schemaStatements creates the five tables and two indexes described
// in spec §6, in the original tool's own statement order. Every
// statement is idempotent (IF NOT EXISTS), so applying the schema to
// an already-initialized database is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id      INTEGER PRIMARY KEY,
		name    TEXT UNIQUE,
		indexed INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS commands (
		fileId    INTEGER REFERENCES files(id),
		directory TEXT,
		args      TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS includes (
		sourceId   INTEGER REFERENCES files(id),
		includedId INTEGER REFERENCES files(id)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		fileId   INTEGER REFERENCES files(id),
		usr      TEXT,
		kind     TEXT,
		spelling TEXT,
		line1    INTEGER,
		col1     INTEGER,
		offset1  INTEGER,
		line2    INTEGER,
		col2     INTEGER,
		offset2  INTEGER,
		isDecl   BOOLEAN,
		isDefn   BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		name  TEXT,
		value TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_spelling ON tags (spelling)`,
	`CREATE INDEX IF NOT EXISTS idx_tags_usr ON tags (usr)`,
}

// CreateSchema applies schemaStatements to db. Safe to call on every
// startup; adding the schema to an existing database is a no-op.
func CreateSchema(ctx context.Context, db execQueryer) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
