// Package ignore loads .ctignore-style (gitignore syntax) exclude
// patterns. The cursor visitor checks each cursor's expansion file
// against a Matcher in addition to the literal path-prefix excludes of
// the exclude option.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Matcher decides whether a file's tags should be skipped during
// indexing.
type Matcher struct {
	root string
	gi   *gitignore.GitIgnore
}

// Load reads ignoreFile (relative to rootPath) plus the user's global
// ~/.gitignore, and compiles them into a Matcher. A missing file is
// not an error; Load then returns a Matcher that excludes nothing.
func Load(rootPath, ignoreFile string) (*Matcher, error) {
	var patterns []string

	if homeDir, err := os.UserHomeDir(); err == nil {
		patterns = append(patterns, readPatterns(filepath.Join(homeDir, ".gitignore"))...)
	}
	patterns = append(patterns, readPatterns(filepath.Join(rootPath, ignoreFile))...)

	if len(patterns) == 0 {
		return &Matcher{root: rootPath}, nil
	}
	return &Matcher{root: rootPath, gi: gitignore.CompileIgnoreLines(patterns...)}, nil
}

// Match reports whether relPath (relative to the walk root) should be
// excluded.
func (m *Matcher) Match(relPath string) bool {
	if m == nil || m.gi == nil {
		return false
	}
	return m.gi.MatchesPath(relPath)
}

// MatchAbs reports whether absPath, an absolute file path, should be
// excluded. It resolves absPath relative to the root Load was given
// and delegates to Match; a path outside that root is never excluded.
func (m *Matcher) MatchAbs(absPath string) bool {
	if m == nil || m.gi == nil {
		return false
	}
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.Match(rel)
}

func readPatterns(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || isComment(line) {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

func isComment(line string) bool {
	for _, c := range line {
		if c == ' ' || c == '\t' {
			continue
		}
		return c == '#'
	}
	return false
}
