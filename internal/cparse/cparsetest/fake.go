// Package cparsetest provides a hand-written fake implementation of
// internal/cparse's interfaces, used by tests that exercise the
// visitor and indexing driver without invoking real libclang — the
// same boundary spec §1 draws around the real parser.
package cparsetest

import (
	"context"
	"fmt"

	"ctix/internal/cparse"
)

// Loc is a literal SourceLocation for building fake cursor trees.
type Loc struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (l Loc) ExpansionLocation() (string, int, int, int) {
	return l.File, l.Line, l.Column, l.Offset
}

// Cursor is a literal, fully in-memory cparse.Cursor for tests.
type Cursor struct {
	ReferencedCursor *Cursor
	Usr              string
	Begin            Loc
	EndLoc           Loc
	SpellingStr      string
	Kind             string
	Decl             bool
	Defn             bool
	Kids             []*Cursor
}

func (c *Cursor) Referenced() cparse.Cursor {
	if c.ReferencedCursor == nil {
		return &Cursor{}
	}
	return c.ReferencedCursor
}

func (c *Cursor) IsNull() bool                    { return c == nil || (c.ReferencedCursor == nil && c.Usr == "" && len(c.Kids) == 0 && c.SpellingStr == "" && c.Kind == "") }
func (c *Cursor) USR() string                     { return c.Usr }
func (c *Cursor) Location() cparse.SourceLocation { return c.Begin }
func (c *Cursor) End() cparse.SourceLocation      { return c.EndLoc }
func (c *Cursor) Spelling() string                { return c.SpellingStr }
func (c *Cursor) KindString() string              { return c.Kind }
func (c *Cursor) IsDeclaration() bool             { return c.Decl }
func (c *Cursor) IsDefinition() bool              { return c.Defn }
func (c *Cursor) Children() []cparse.Cursor {
	kids := make([]cparse.Cursor, len(c.Kids))
	for i, k := range c.Kids {
		kids[i] = k
	}
	return kids
}

// stringDiagnostic lets tests inject arbitrary diagnostic text.
type stringDiagnostic string

func (d stringDiagnostic) String() string { return string(d) }

// TranslationUnit is a fake cparse.TranslationUnit over a literal root Cursor.
type TranslationUnit struct {
	Root        *Cursor
	Diagnostics []string
	Disposed    bool
}

func (t *TranslationUnit) Cursor() cparse.Cursor { return t.Root }
func (t *TranslationUnit) NumDiagnostics() int   { return len(t.Diagnostics) }
func (t *TranslationUnit) Diagnostic(i int) cparse.Diagnostic {
	return stringDiagnostic(t.Diagnostics[i])
}
func (t *TranslationUnit) Dispose() { t.Disposed = true }

// Parser is a fake cparse.Parser keyed by file name, for tests that
// need the Translation-Unit Source component to "parse" canned trees.
type Parser struct {
	Units map[string]*TranslationUnit
	// FailFiles names files Parse should fail for, simulating ParseFailed.
	FailFiles map[string]bool
}

func NewParser() *Parser {
	return &Parser{Units: make(map[string]*TranslationUnit), FailFiles: make(map[string]bool)}
}

func (p *Parser) Parse(ctx context.Context, fileName, directory string, args []string) (cparse.TranslationUnit, error) {
	if p.FailFiles[fileName] {
		return nil, fmt.Errorf("fake parse failure for %q", fileName)
	}
	tu, ok := p.Units[fileName]
	if !ok {
		return nil, fmt.Errorf("no fake translation unit registered for %q", fileName)
	}
	return tu, nil
}
