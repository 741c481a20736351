package indexer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"ctix/internal/cparse/cparsetest"
	"ctix/internal/db"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	sqlDB, err := db.Open(db.Config{Path: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.CreateSchema(context.Background(), sqlDB); err != nil {
		t.Fatal(err)
	}
	return db.New(sqlDB)
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("// test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFullIndexRunsEligibleFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src)
	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}

	decl := &cparsetest.Cursor{Usr: "usr-foo", Decl: true}
	ref := &cparsetest.Cursor{
		ReferencedCursor: decl,
		Begin:            cparsetest.Loc{File: src, Line: 1, Column: 1, Offset: 0},
		EndLoc:           cparsetest.Loc{File: src, Line: 1, Column: 4, Offset: 3},
	}
	parser := cparsetest.NewParser()
	parser.Units[src] = &cparsetest.TranslationUnit{Root: &cparsetest.Cursor{Kids: []*cparsetest.Cursor{ref}}}

	var out, errOut bytes.Buffer
	d := New(store, parser, &out, &errOut, false)
	if err := d.FullIndex(ctx, []string{"/usr/include/"}); err != nil {
		t.Fatalf("FullIndex() error = %v", err)
	}

	refs, err := store.Grep(ctx, "usr-foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("Grep(usr-foo) returned %d refs, want 1", len(refs))
	}

	got, err := store.GetOptionArray(ctx, excludeOption)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "/usr/include/" {
		t.Errorf("exclude option = %v, want [/usr/include/]", got)
	}
}

func TestUpdateNoOpWhenNothingStale(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src)
	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}

	parser := cparsetest.NewParser()
	parser.Units[src] = &cparsetest.TranslationUnit{Root: &cparsetest.Cursor{}}

	var out, errOut bytes.Buffer
	d := New(store, parser, &out, &errOut, false)
	if err := d.FullIndex(ctx, nil); err != nil {
		t.Fatalf("FullIndex() error = %v", err)
	}

	out.Reset()
	if err := d.Update(ctx, nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if bytes.Contains(out.Bytes(), []byte("parsing")) {
		t.Errorf("Update() reparsed an up-to-date file: %s", out.String())
	}
}

func TestUpdateWithExplicitFileListContinuesPastParseFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cpp")
	good := filepath.Join(dir, "good.cpp")
	touch(t, bad)
	touch(t, good)
	if _, err := store.SetCompileCommand(ctx, bad, dir, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SetCompileCommand(ctx, good, dir, nil); err != nil {
		t.Fatal(err)
	}

	parser := cparsetest.NewParser()
	parser.FailFiles[bad] = true
	parser.Units[good] = &cparsetest.TranslationUnit{Root: &cparsetest.Cursor{}}

	var out, errOut bytes.Buffer
	d := New(store, parser, &out, &errOut, false)
	if err := d.Update(ctx, []string{bad, good}); err != nil {
		t.Fatalf("Update() error = %v, want nil (per-file errors are swallowed for an explicit list)", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("good.cpp: parsing")) {
		t.Errorf("Update() did not continue to the next file after a failure: %s", out.String())
	}
	if !bytes.Contains(errOut.Bytes(), []byte("Error: "+bad)) {
		t.Errorf("Update() did not report the failure on errOut with an Error: prefix: %s", errOut.String())
	}
	if bytes.Contains(out.Bytes(), []byte("Error:")) {
		t.Errorf("Update() wrote an error message to the progress stream instead of errOut: %s", out.String())
	}
}

func TestUpdateNextFileDrivenPropagatesParseFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src)
	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}

	parser := cparsetest.NewParser()
	parser.FailFiles[src] = true

	var out, errOut bytes.Buffer
	d := New(store, parser, &out, &errOut, false)
	if err := d.Update(ctx, nil); err == nil {
		t.Fatal("Update() error = nil, want a propagated parse failure")
	}
}

func TestFullIndexResetsPriorTags(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.cpp")
	touch(t, src)
	if _, err := store.SetCompileCommand(ctx, src, dir, nil); err != nil {
		t.Fatal(err)
	}

	decl := &cparsetest.Cursor{Usr: "usr-foo", Decl: true}
	ref := &cparsetest.Cursor{
		ReferencedCursor: decl,
		Begin:            cparsetest.Loc{File: src, Line: 1, Column: 1, Offset: 0},
		EndLoc:           cparsetest.Loc{File: src, Line: 1, Column: 4, Offset: 3},
	}
	parser := cparsetest.NewParser()
	parser.Units[src] = &cparsetest.TranslationUnit{Root: &cparsetest.Cursor{Kids: []*cparsetest.Cursor{ref}}}

	var out, errOut bytes.Buffer
	d := New(store, parser, &out, &errOut, false)
	if err := d.FullIndex(ctx, nil); err != nil {
		t.Fatal(err)
	}

	// Second full index with no matching tag this time (the parser now
	// yields an empty tree); clean_index must have cleared the old tag.
	parser.Units[src] = &cparsetest.TranslationUnit{Root: &cparsetest.Cursor{}}
	touch(t, src) // advance mtime so the file is eligible again
	if err := d.FullIndex(ctx, nil); err != nil {
		t.Fatal(err)
	}

	refs, err := store.Grep(ctx, "usr-foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("Grep(usr-foo) after second full index returned %d refs, want 0", len(refs))
	}
}
