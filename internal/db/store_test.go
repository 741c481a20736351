package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqlDB, err := Open(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := CreateSchema(context.Background(), sqlDB); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}
	return New(sqlDB)
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("// test\n"), 0o644); err != nil {
		t.Fatalf("writing %q: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

func TestSetAndGetCompileCommand(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	hdr := filepath.Join(dir, "a.h")
	touch(t, src, time.Unix(100, 0))
	touch(t, hdr, time.Unix(100, 0))

	if _, err := store.SetCompileCommand(ctx, src, dir, []string{"clang++", "a.cpp"}); err != nil {
		t.Fatalf("SetCompileCommand() error = %v", err)
	}
	if _, err := store.addFile(ctx, hdr); err != nil {
		t.Fatal(err)
	}
	if err := store.AddInclude(ctx, hdr, src); err != nil {
		t.Fatalf("AddInclude() error = %v", err)
	}

	gotDir, gotArgs, err := store.GetCompileCommand(ctx, hdr)
	if err != nil {
		t.Fatalf("GetCompileCommand(header) error = %v", err)
	}
	if gotDir != dir {
		t.Errorf("directory = %q, want %q", gotDir, dir)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "clang++" || gotArgs[1] != "a.cpp" {
		t.Errorf("args = %v, want [clang++ a.cpp]", gotArgs)
	}
}

func TestGetCompileCommandNoSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.GetCompileCommand(ctx, "/nowhere.h")
	var ncc *NoCompileCommandError
	if err == nil {
		t.Fatal("expected NoCompileCommandError, got nil")
	}
	if !asNoCompileCommand(err, &ncc) {
		t.Errorf("error = %v, want *NoCompileCommandError", err)
	}
}

func asNoCompileCommand(err error, target **NoCompileCommandError) bool {
	e, ok := err.(*NoCompileCommandError)
	if ok {
		*target = e
	}
	return ok
}

func TestAddIncludeUnknownFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.AddInclude(ctx, "/missing.h", "/missing.cpp")
	if _, ok := err.(*UnknownFileError); !ok {
		t.Errorf("error = %v (%T), want *UnknownFileError", err, err)
	}
}

func TestAddIncludeIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	hdr := filepath.Join(dir, "a.h")
	touch(t, src, time.Unix(1, 0))
	touch(t, hdr, time.Unix(1, 0))

	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.addFile(ctx, hdr); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AddInclude(ctx, hdr, src); err != nil {
			t.Fatalf("AddInclude() iteration %d error = %v", i, err)
		}
	}

	var count int
	row := store.q.QueryRowContext(ctx, `SELECT count(*) FROM includes WHERE sourceId = (SELECT id FROM files WHERE name = ?) AND includedId = (SELECT id FROM files WHERE name = ?)`, src, hdr)
	if err := row.Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("include edge count = %d, want 1", count)
	}
}

func TestAddTagUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src, time.Unix(1, 0))
	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := store.AddTag(ctx, "usr1", "function-decl", "foo", src, 1, 1, 10, 1, 4, 13, true, false); err != nil {
			t.Fatalf("AddTag() iteration %d error = %v", i, err)
		}
	}

	var count int
	row := store.q.QueryRowContext(ctx, `SELECT count(*) FROM tags`)
	if err := row.Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("tag count = %d, want 1", count)
	}
}

func TestAddTagUnknownFileNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddTag(ctx, "usr1", "k", "s", "/nowhere.cpp", 1, 1, 0, 1, 1, 1, false, false); err != nil {
		t.Fatalf("AddTag() on unknown file should no-op, got error = %v", err)
	}
}

func TestOptionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetOption(ctx, "name", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetOption(ctx, "name", "v2"); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetOption(ctx, "name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v2" {
		t.Errorf("GetOption() = %q, want %q", got, "v2")
	}
}

func TestOptionArrayRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := []string{"/usr/include/", "/opt/vendor/"}
	if err := store.SetOptionArray(ctx, "exclude", want); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetOptionArray(ctx, "exclude")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("GetOptionArray() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetOptionArray()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetOptionArrayMalformedYieldsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetOption(ctx, "exclude", "not json"); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetOptionArray(ctx, "exclude")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("GetOptionArray() = %v, want empty", got)
	}
}

func TestCleanIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src, time.Unix(100, 0))

	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.BeginFile(ctx, src); err != nil {
		t.Fatal(err)
	}
	if err := store.AddTag(ctx, "usr1", "k", "s", src, 1, 1, 0, 1, 1, 1, true, false); err != nil {
		t.Fatal(err)
	}

	if err := store.CleanIndex(ctx); err != nil {
		t.Fatalf("CleanIndex() error = %v", err)
	}

	var tagCount int
	if err := store.q.QueryRowContext(ctx, `SELECT count(*) FROM tags`).Scan(&tagCount); err != nil {
		t.Fatal(err)
	}
	if tagCount != 0 {
		t.Errorf("tags after CleanIndex = %d, want 0", tagCount)
	}

	var indexed int64
	if err := store.q.QueryRowContext(ctx, `SELECT indexed FROM files WHERE name = ?`, src).Scan(&indexed); err != nil {
		t.Fatal(err)
	}
	if indexed != 0 {
		t.Errorf("indexed after CleanIndex = %d, want 0", indexed)
	}

	var commandCount int
	if err := store.q.QueryRowContext(ctx, `SELECT count(*) FROM commands`).Scan(&commandCount); err != nil {
		t.Fatal(err)
	}
	if commandCount != 1 {
		t.Errorf("commands after CleanIndex = %d, want 1 (preserved)", commandCount)
	}
}

func TestBeginFileFreshAndUpToDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src, time.Unix(100, 0))

	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}

	needsUpdate, err := store.BeginFile(ctx, src)
	if err != nil {
		t.Fatalf("BeginFile() error = %v", err)
	}
	if !needsUpdate {
		t.Error("BeginFile() on a fresh file should return true")
	}

	needsUpdate, err = store.BeginFile(ctx, src)
	if err != nil {
		t.Fatalf("BeginFile() second call error = %v", err)
	}
	if needsUpdate {
		t.Error("BeginFile() on an up-to-date file should return false")
	}
}

func TestNextFileOrdersByInDegreeAndRemovesMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cpp")
	b := filepath.Join(dir, "b.cpp")
	shared := filepath.Join(dir, "shared.h")
	onlyA := filepath.Join(dir, "only_a.h")

	for _, f := range []string{a, b, shared, onlyA} {
		touch(t, f, time.Unix(100, 0))
	}

	for _, src := range []string{a, b} {
		if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := store.BeginFile(ctx, src); err != nil {
			t.Fatal(err)
		}
	}
	// Register both headers and mark them indexed at their current mtime,
	// as the visitor does on first sighting.
	for _, hdr := range []string{shared, onlyA} {
		if _, err := store.BeginFile(ctx, hdr); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.AddInclude(ctx, shared, a); err != nil {
		t.Fatal(err)
	}
	if err := store.AddInclude(ctx, shared, b); err != nil {
		t.Fatal(err)
	}
	if err := store.AddInclude(ctx, onlyA, a); err != nil {
		t.Fatal(err)
	}

	// Everything is up to date: no candidates.
	name, ok, err := store.NextFile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("NextFile() = %q, true; want none while up to date", name)
	}

	// Touch onlyA into the future; only a.cpp includes it (in-degree 1),
	// so it sorts before shared.h (in-degree 2) and should be returned.
	if err := os.Chtimes(onlyA, time.Unix(500, 0), time.Unix(500, 0)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(shared, time.Unix(500, 0), time.Unix(500, 0)); err != nil {
		t.Fatal(err)
	}

	name, ok, err = store.NextFile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || name != a {
		t.Errorf("NextFile() = (%q, %v), want (%q, true)", name, ok, a)
	}

	// Remove the missing-header file from disk; NextFile must drop it
	// from the index rather than erroring.
	if err := os.Remove(onlyA); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.NextFile(ctx); err != nil {
		t.Fatalf("NextFile() with a missing header returned error = %v", err)
	}
	id, err := store.fileID(ctx, onlyA)
	if err != nil {
		t.Fatal(err)
	}
	if id != -1 {
		t.Errorf("onlyA should have been removed from the index, still has id %d", id)
	}
}

func TestRemoveFileCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	hdr := filepath.Join(dir, "a.h")
	touch(t, src, time.Unix(1, 0))
	touch(t, hdr, time.Unix(1, 0))

	if _, err := store.SetCompileCommand(ctx, src, dir, []string{"clang++"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.addFile(ctx, hdr); err != nil {
		t.Fatal(err)
	}
	if err := store.AddInclude(ctx, hdr, src); err != nil {
		t.Fatal(err)
	}
	if err := store.AddTag(ctx, "usr1", "k", "s", src, 1, 1, 0, 1, 1, 1, true, false); err != nil {
		t.Fatal(err)
	}

	if err := store.RemoveFile(ctx, src); err != nil {
		t.Fatalf("RemoveFile() error = %v", err)
	}

	id, err := store.fileID(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if id != -1 {
		t.Error("file row should be gone after RemoveFile")
	}

	var tagCount, cmdCount, includeCount int
	store.q.QueryRowContext(ctx, `SELECT count(*) FROM tags`).Scan(&tagCount)
	store.q.QueryRowContext(ctx, `SELECT count(*) FROM commands`).Scan(&cmdCount)
	store.q.QueryRowContext(ctx, `SELECT count(*) FROM includes`).Scan(&includeCount)
	if tagCount != 0 || cmdCount != 0 || includeCount != 0 {
		t.Errorf("cascade left rows: tags=%d commands=%d includes=%d", tagCount, cmdCount, includeCount)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src, time.Unix(1, 0))

	wantErr := os.ErrInvalid
	err := store.RunInTransaction(ctx, func(txn *Transaction) error {
		if _, err := txn.SetCompileCommand(ctx, src, dir, nil); err != nil {
			t.Fatal(err)
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("RunInTransaction() error = %v, want %v", err, wantErr)
	}

	id, err := store.fileID(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if id != -1 {
		t.Error("writes made before the error should have rolled back")
	}
}
