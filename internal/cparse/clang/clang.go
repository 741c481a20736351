// Package clang adapts github.com/go-clang/clang-v14's cgo bindings
// to libclang onto the cparse.Parser contract. This is the one place
// in the module that talks to the real semantic parser; everything
// else depends on internal/cparse's interfaces so it can be exercised
// with internal/cparse/cparsetest's fake instead.
package clang

import (
	"context"
	"fmt"

	libclang "github.com/go-clang/clang-v14/clang"

	"ctix/internal/cparse"
)

// Parser parses translation units with libclang via a single shared
// index, matching the original tool's one-index-per-process model.
type Parser struct {
	index libclang.Index
}

// New creates a Parser backed by a fresh libclang index.
// excludeDeclarationsFromPCH and displayDiagnostics are both left off:
// the driver prints diagnostics itself when requested (spec §4.4).
func New() *Parser {
	return &Parser{index: libclang.NewIndex(0, 0)}
}

// Dispose releases the underlying libclang index.
func (p *Parser) Dispose() {
	p.index.Dispose()
}

// Parse invokes libclang for fileName with args. directory is not
// passed to libclang, so relative paths in args resolve against the
// process's working directory.
func (p *Parser) Parse(ctx context.Context, fileName, directory string, args []string) (cparse.TranslationUnit, error) {
	tu := p.index.ParseTranslationUnit(fileName, args, nil, libclang.TranslationUnit_DetailedPreprocessingRecord)
	if !tu.IsValid() {
		return nil, fmt.Errorf("clang: failed to parse %q", fileName)
	}
	return &translationUnit{tu: tu}, nil
}

type translationUnit struct {
	tu libclang.TranslationUnit
}

func (t *translationUnit) Cursor() cparse.Cursor {
	return &cursor{c: t.tu.TranslationUnitCursor()}
}

func (t *translationUnit) NumDiagnostics() int {
	return int(t.tu.NumDiagnostics())
}

func (t *translationUnit) Diagnostic(i int) cparse.Diagnostic {
	return diagnostic{d: t.tu.Diagnostic(uint32(i))}
}

func (t *translationUnit) Dispose() {
	t.tu.Dispose()
}

type diagnostic struct {
	d libclang.Diagnostic
}

func (d diagnostic) String() string {
	return d.d.Spelling()
}

type cursor struct {
	c libclang.Cursor
}

func (c *cursor) Referenced() cparse.Cursor {
	return &cursor{c: c.c.Referenced()}
}

func (c *cursor) IsNull() bool {
	return c.c.IsNull()
}

func (c *cursor) USR() string {
	return c.c.USR()
}

func (c *cursor) Location() cparse.SourceLocation {
	return location{l: c.c.Location()}
}

func (c *cursor) End() cparse.SourceLocation {
	extent := c.c.Extent()
	return location{l: extent.End()}
}

func (c *cursor) Spelling() string {
	return c.c.Spelling()
}

func (c *cursor) KindString() string {
	return libclang.CursorKindSpelling(c.c.Kind())
}

func (c *cursor) IsDeclaration() bool {
	return libclang.IsDeclaration(c.c.Kind())
}

func (c *cursor) IsDefinition() bool {
	return c.c.IsCursorDefinition()
}

func (c *cursor) Children() []cparse.Cursor {
	var children []cparse.Cursor
	c.c.Visit(func(child, _ libclang.Cursor) libclang.ChildVisitResult {
		children = append(children, &cursor{c: child})
		return libclang.ChildVisit_Continue
	})
	return children
}

type location struct {
	l libclang.SourceLocation
}

func (l location) ExpansionLocation() (file string, line, column, offset int) {
	f, ln, col, off := l.l.ExpansionLocation()
	return f.Name(), int(ln), int(col), int(off)
}
