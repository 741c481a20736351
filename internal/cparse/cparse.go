// Package cparse defines the Go-shaped contract of the external C/C++
// semantic parser spec §1 and §6 keep out of this module's core: a
// cursor tree with locations, kinds, spellings, and unique symbol
// identifiers. The cursor visitor and indexing driver depend only on
// these interfaces; a concrete binding lives in internal/cparse/clang,
// and a hand-written fake for tests lives in
// internal/cparse/cparsetest.
package cparse

import "context"

// SourceLocation resolves to the file/line/column/offset a macro
// expanded to, per spec §6 and the GLOSSARY's "expansion location".
type SourceLocation interface {
	ExpansionLocation() (file string, line, column, offset int)
}

// Cursor is the parser's handle to one node of the semantic tree.
type Cursor interface {
	// Referenced returns the cursor's referenced declaration, or a
	// null cursor (IsNull() == true) if it has none.
	Referenced() Cursor
	IsNull() bool
	USR() string
	Location() SourceLocation
	End() SourceLocation
	Spelling() string
	KindString() string
	IsDeclaration() bool
	IsDefinition() bool
	// Children returns this cursor's direct children, in source order.
	Children() []Cursor
}

// Diagnostic is anything the translation unit can format as text.
type Diagnostic interface {
	String() string
}

// TranslationUnit is the result of one parse of a source file with a
// specific compile command.
type TranslationUnit interface {
	// Cursor returns the translation unit's top-level cursor.
	Cursor() Cursor
	NumDiagnostics() int
	Diagnostic(i int) Diagnostic
	// Dispose releases resources the parser allocated for this unit.
	Dispose()
}

// Parser invokes the external C/C++ parser for one translation unit.
type Parser interface {
	Parse(ctx context.Context, fileName, directory string, args []string) (TranslationUnit, error)
}

// VisitResult is the per-cursor decision a VisitFunc returns, matching
// the parser's own child-visitor contract (spec §9): recurse into
// children, skip children and continue with siblings, or abort the
// whole walk.
type VisitResult int

const (
	VisitRecurse VisitResult = iota
	VisitContinue
	VisitBreak
)

// VisitFunc is called once per cursor during VisitChildren.
type VisitFunc func(cursor, parent Cursor) VisitResult

// VisitChildren walks root's subtree depth-first, pre-order, honoring
// each call's VisitResult. It does not call visit on root itself, only
// on its descendants — matching the parser's own visitChildren entry
// point, which visits a node's children, not the node.
func VisitChildren(root Cursor, visit VisitFunc) VisitResult {
	for _, child := range root.Children() {
		switch result := visit(child, root); result {
		case VisitBreak:
			return VisitBreak
		case VisitRecurse:
			if VisitChildren(child, visit) == VisitBreak {
				return VisitBreak
			}
		case VisitContinue:
			// skip this cursor's children, move to the next sibling
		}
	}
	return VisitRecurse
}
