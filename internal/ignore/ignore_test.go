package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMatchesLocalPatterns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".ctignore"), []byte("# comment\nbuild/\n*.generated.h\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir, ".ctignore")
	if err != nil {
		t.Fatal(err)
	}

	if !m.Match("build/obj.o") {
		t.Error("Match(build/obj.o) = false, want true")
	}
	if !m.Match("foo.generated.h") {
		t.Error("Match(foo.generated.h) = false, want true")
	}
	if m.Match("main.cpp") {
		t.Error("Match(main.cpp) = true, want false")
	}
}

func TestLoadMissingFileExcludesNothing(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(dir, ".ctignore")
	if err != nil {
		t.Fatal(err)
	}
	if m.Match("anything.cpp") {
		t.Error("Match() = true with no ignore file present, want false")
	}
}

func TestNilMatcherMatchesNothing(t *testing.T) {
	var m *Matcher
	if m.Match("foo.cpp") {
		t.Error("nil Matcher.Match() = true, want false")
	}
	if m.MatchAbs("/anything/foo.cpp") {
		t.Error("nil Matcher.MatchAbs() = true, want false")
	}
}

func TestMatchAbsResolvesRelativeToRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".ctignore"), []byte("build/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir, ".ctignore")
	if err != nil {
		t.Fatal(err)
	}

	if !m.MatchAbs(filepath.Join(dir, "build", "obj.o")) {
		t.Error("MatchAbs(root/build/obj.o) = false, want true")
	}
	if m.MatchAbs(filepath.Join(dir, "main.cpp")) {
		t.Error("MatchAbs(root/main.cpp) = true, want false")
	}
	if m.MatchAbs("/elsewhere/build/obj.o") {
		t.Error("MatchAbs(outside root) = true, want false")
	}
}
