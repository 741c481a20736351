package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Store is the sole persistence authority described in spec §4.1. All
// mutation happens through the execQueryer it was built with — either
// the top-level *sql.DB for ad-hoc reads, or a transaction's *sql.Tx
// for a write pass opened via BeginTransaction.
type Store struct {
	db *sql.DB // non-nil only on the top-level Store; nil on tx-scoped ones
	q  execQueryer
}

// New wraps an already-opened database. Call CreateSchema once before
// first use.
func New(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB, q: sqlDB}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Transaction is a scoped acquisition of the database's single write
// transaction, per spec §4.1/§9. Release is guaranteed on every exit
// path via RunInTransaction; callers driving it manually must call
// exactly one of Commit or Rollback.
type Transaction struct {
	*Store
	tx     *sql.Tx
	closed bool
}

// BeginTransaction opens an exclusive write transaction. Only the
// top-level Store (not one already scoped to a transaction) can open
// one, matching the single-writer model in spec §5.
func (s *Store) BeginTransaction(ctx context.Context) (*Transaction, error) {
	if s.db == nil {
		return nil, fmt.Errorf("ctix/db: nested transactions are not supported")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Transaction{Store: &Store{q: tx}, tx: tx}, nil
}

// Commit finalizes the transaction, making its writes durable.
func (t *Transaction) Commit() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.tx.Commit()
}

// Rollback discards every write made under the transaction. Calling
// it after Commit is a no-op.
func (t *Transaction) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.tx.Rollback()
}

// RunInTransaction opens a transaction, runs fn against it, and
// releases it on every exit path: commit if fn returns nil, rollback
// otherwise (including on panic, which it re-raises after rolling
// back). This is the scoped-transaction value described in spec §9.
func (s *Store) RunInTransaction(ctx context.Context, fn func(*Transaction) error) (err error) {
	txn, err := s.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			txn.Rollback()
			panic(p)
		}
	}()

	if err = fn(txn); err != nil {
		txn.Rollback()
		return err
	}
	return txn.Commit()
}

// fileID returns the surrogate id for name, or -1 if it is not
// registered.
func (s *Store) fileID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `SELECT id FROM files WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("looking up file %q: %w", name, err)
	}
	return id, nil
}

// addFile returns name's id, registering it with indexed=0 if this is
// the first time it has been seen.
func (s *Store) addFile(ctx context.Context, name string) (int64, error) {
	id, err := s.fileID(ctx, name)
	if err != nil {
		return -1, err
	}
	if id != -1 {
		return id, nil
	}

	res, err := s.q.ExecContext(ctx, `INSERT INTO files (name, indexed) VALUES (?, 0)`, name)
	if err != nil {
		return -1, fmt.Errorf("registering file %q: %w", name, err)
	}
	return res.LastInsertId()
}

// SetCompileCommand registers fileName as a translation unit, records
// its compile command (overwriting any prior one), and ensures its
// self include edge exists. Returns the file's id.
func (s *Store) SetCompileCommand(ctx context.Context, fileName, directory string, args []string) (int64, error) {
	fileID, err := s.addFile(ctx, fileName)
	if err != nil {
		return -1, err
	}
	if err := s.addIncludeByID(ctx, fileID, fileID); err != nil {
		return -1, err
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM commands WHERE fileId = ?`, fileID); err != nil {
		return -1, fmt.Errorf("clearing prior compile command: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, `INSERT INTO commands (fileId, directory, args) VALUES (?, ?, ?)`,
		fileID, directory, encodeOptionArray(args)); err != nil {
		return -1, fmt.Errorf("storing compile command: %w", err)
	}
	return fileID, nil
}

// GetCompileCommand resolves fileName's compile command via the
// include graph: any translation unit that (directly or transitively,
// by way of recorded edges) includes fileName. Per spec §9, ties
// resolve to whichever row the join returns first.
func (s *Store) GetCompileCommand(ctx context.Context, fileName string) (directory string, args []string, err error) {
	fileID, err := s.fileID(ctx, fileName)
	if err != nil {
		return "", nil, err
	}
	if fileID == -1 {
		return "", nil, &NoCompileCommandError{File: fileName}
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT commands.directory, commands.args
		FROM includes
		INNER JOIN commands ON includes.sourceId = commands.fileId
		WHERE includes.includedId = ?`, fileID)

	var serializedArgs string
	if err := row.Scan(&directory, &serializedArgs); err != nil {
		if err == sql.ErrNoRows {
			return "", nil, &NoCompileCommandError{File: fileName}
		}
		return "", nil, fmt.Errorf("resolving compile command for %q: %w", fileName, err)
	}
	return directory, decodeOptionArray(serializedArgs), nil
}

// nextFileCandidate is one row of the included-file/in-degree scan
// NextFile performs.
type nextFileCandidate struct {
	includedName string
	indexed      int64
	sourceName   string
}

// NextFile returns the name of one translation unit that needs
// reparsing, or "", false when the pass is complete. See spec §4.1
// for the eligibility rule and tie-break order.
func (s *Store) NextFile(ctx context.Context) (string, bool, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT included.name, included.indexed, source.name, count(source.name) AS sourceCount
		FROM includes
		INNER JOIN files AS source ON source.id = includes.sourceId
		INNER JOIN files AS included ON included.id = includes.includedId
		GROUP BY included.id
		ORDER BY sourceCount`)
	if err != nil {
		return "", false, fmt.Errorf("scanning reindex candidates: %w", err)
	}

	var candidates []nextFileCandidate
	for rows.Next() {
		var c nextFileCandidate
		var sourceCount int
		if err := rows.Scan(&c.includedName, &c.indexed, &c.sourceName, &sourceCount); err != nil {
			rows.Close()
			return "", false, fmt.Errorf("reading reindex candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return "", false, err
	}
	rows.Close()

	for _, c := range candidates {
		info, statErr := os.Stat(c.includedName)
		if statErr != nil {
			if err := s.RemoveFile(ctx, c.includedName); err != nil {
				return "", false, fmt.Errorf("removing unstatable file %q: %w", c.includedName, err)
			}
			continue
		}

		if info.ModTime().Unix() > c.indexed {
			return c.sourceName, true, nil
		}
	}

	return "", false, nil
}

// CleanIndex deletes every Tag and resets every File's indexed
// timestamp to 0. Compile commands and include edges survive.
func (s *Store) CleanIndex(ctx context.Context) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, `UPDATE files SET indexed = 0`); err != nil {
		return fmt.Errorf("resetting indexed timestamps: %w", err)
	}
	return nil
}

// BeginFile registers fileName if new, and if its on-disk
// modification time exceeds its last_indexed timestamp, clears its
// tags and outgoing include edges, advances last_indexed, and returns
// true (emit tags for this file during the current parse). Otherwise
// it returns false without touching the file's rows.
func (s *Store) BeginFile(ctx context.Context, fileName string) (bool, error) {
	fileID, err := s.addFile(ctx, fileName)
	if err != nil {
		return false, err
	}

	var indexed int64
	row := s.q.QueryRowContext(ctx, `SELECT indexed FROM files WHERE id = ?`, fileID)
	if err := row.Scan(&indexed); err != nil {
		return false, fmt.Errorf("reading indexed timestamp for %q: %w", fileName, err)
	}

	info, err := os.Stat(fileName)
	if err != nil {
		return false, &StatFailedError{File: fileName, Err: err}
	}
	modified := info.ModTime().Unix()

	if modified <= indexed {
		return false, nil
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM tags WHERE fileId = ?`, fileID); err != nil {
		return false, fmt.Errorf("clearing tags for %q: %w", fileName, err)
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM includes WHERE sourceId = ?`, fileID); err != nil {
		return false, fmt.Errorf("clearing outgoing includes for %q: %w", fileName, err)
	}
	if _, err := s.q.ExecContext(ctx, `UPDATE files SET indexed = ? WHERE id = ?`, modified, fileID); err != nil {
		return false, fmt.Errorf("advancing indexed timestamp for %q: %w", fileName, err)
	}
	return true, nil
}

func (s *Store) addIncludeByID(ctx context.Context, includedID, sourceID int64) error {
	var exists int
	row := s.q.QueryRowContext(ctx, `SELECT 1 FROM includes WHERE sourceId = ? AND includedId = ?`, sourceID, includedID)
	switch err := row.Scan(&exists); err {
	case nil:
		return nil // edge already present
	case sql.ErrNoRows:
		// fall through to insert
	default:
		return fmt.Errorf("checking include edge: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, `INSERT INTO includes (sourceId, includedId) VALUES (?, ?)`, sourceID, includedID); err != nil {
		return fmt.Errorf("inserting include edge: %w", err)
	}
	return nil
}

// AddInclude inserts the (sourceFile -> includedFile) edge if absent.
// Both files must already be registered.
func (s *Store) AddInclude(ctx context.Context, includedFile, sourceFile string) error {
	includedID, err := s.fileID(ctx, includedFile)
	if err != nil {
		return err
	}
	sourceID, err := s.fileID(ctx, sourceFile)
	if err != nil {
		return err
	}
	if includedID == -1 {
		return &UnknownFileError{File: includedFile}
	}
	if sourceID == -1 {
		return &UnknownFileError{File: sourceFile}
	}
	return s.addIncludeByID(ctx, includedID, sourceID)
}

// RemoveFile deletes fileName and cascades to its compile command,
// tags, and include edges in both directions.
func (s *Store) RemoveFile(ctx context.Context, fileName string) error {
	fileID, err := s.fileID(ctx, fileName)
	if err != nil {
		return err
	}
	if fileID == -1 {
		return nil
	}

	stmts := []string{
		`DELETE FROM commands WHERE fileId = ?`,
		`DELETE FROM includes WHERE sourceId = ?`,
		`DELETE FROM includes WHERE includedId = ?`,
		`DELETE FROM tags WHERE fileId = ?`,
		`DELETE FROM files WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt, fileID); err != nil {
			return fmt.Errorf("removing file %q: %w", fileName, err)
		}
	}
	return nil
}

// AddTag inserts the tag if no row already matches
// (file_id, usr, offset_begin, offset_end). It silently no-ops if
// fileName is not registered, per spec §7.
func (s *Store) AddTag(ctx context.Context, usr, kind, spelling, fileName string,
	beginLine, beginCol, beginOffset, endLine, endCol, endOffset int,
	isDeclaration, isDefinition bool) error {

	fileID, err := s.fileID(ctx, fileName)
	if err != nil {
		return err
	}
	if fileID == -1 {
		return nil
	}

	var exists int
	row := s.q.QueryRowContext(ctx, `
		SELECT 1 FROM tags WHERE fileId = ? AND usr = ? AND offset1 = ? AND offset2 = ?`,
		fileID, usr, beginOffset, endOffset)
	switch err := row.Scan(&exists); err {
	case nil:
		return nil // matching row already present
	case sql.ErrNoRows:
		// fall through to insert
	default:
		return fmt.Errorf("checking existing tag: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO tags (fileId, usr, kind, spelling, line1, col1, offset1, line2, col2, offset2, isDecl, isDefn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, usr, kind, spelling,
		beginLine, beginCol, beginOffset,
		endLine, endCol, endOffset,
		isDeclaration, isDefinition)
	if err != nil {
		return fmt.Errorf("inserting tag: %w", err)
	}
	return nil
}

// SetOption replaces name's value.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name); err != nil {
		return fmt.Errorf("clearing option %q: %w", name, err)
	}
	if _, err := s.q.ExecContext(ctx, `INSERT INTO options (name, value) VALUES (?, ?)`, name, value); err != nil {
		return fmt.Errorf("setting option %q: %w", name, err)
	}
	return nil
}

// SetOptionArray replaces name's value with a JSON-encoded string array.
func (s *Store) SetOptionArray(ctx context.Context, name string, values []string) error {
	return s.SetOption(ctx, name, encodeOptionArray(values))
}

// GetOption returns name's raw string value, or "" if unset.
func (s *Store) GetOption(ctx context.Context, name string) (string, error) {
	var value string
	row := s.q.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("reading option %q: %w", name, err)
	}
	return value, nil
}

// GetOptionArray returns name's value decoded as a string array. A
// missing or malformed value yields an empty array.
func (s *Store) GetOptionArray(ctx context.Context, name string) ([]string, error) {
	value, err := s.GetOption(ctx, name)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return []string{}, nil
	}
	return decodeOptionArray(value), nil
}
