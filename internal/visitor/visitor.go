// Package visitor implements spec §4.3: walk one translation unit's
// cursor tree and emit tags and include edges to storage.
package visitor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ctix/internal/cparse"
)

// Storage is the subset of *db.Store (or a transaction-scoped one)
// the visitor writes through.
type Storage interface {
	BeginFile(ctx context.Context, fileName string) (bool, error)
	AddInclude(ctx context.Context, includedFile, sourceFile string) error
	AddTag(ctx context.Context, usr, kind, spelling, fileName string,
		beginLine, beginCol, beginOffset, endLine, endCol, endOffset int,
		isDeclaration, isDefinition bool) error
}

// Excluder is a second exclusion mechanism a cursor's expansion file
// is checked against, alongside the literal exclude-prefix list. A
// gitignore-style matcher satisfies this with its MatchAbs method; a
// nil Excluder excludes nothing.
type Excluder interface {
	MatchAbs(absPath string) bool
}

// Visitor walks one translation unit's cursor tree. It is created
// anew per translation unit; its needsUpdate cache is never shared
// across units (spec §4.3/§9) — Storage's own BeginFile contract is
// what prevents redundant work across units in the same pass.
type Visitor struct {
	ctx        context.Context
	sourceFile string
	exclude    []string
	ignore     Excluder
	storage    Storage
	out        io.Writer

	needsUpdate map[string]bool
	err         error
}

// New creates a Visitor for sourceFile and immediately registers its
// self include edge, matching the original Indexer constructor.
// ignore may be nil; it composes with exclude so a cursor is skipped
// if either mechanism matches its expansion file.
func New(ctx context.Context, sourceFile string, exclude []string, ignore Excluder, storage Storage, out io.Writer) (*Visitor, error) {
	v := &Visitor{
		ctx:         ctx,
		sourceFile:  sourceFile,
		exclude:     exclude,
		ignore:      ignore,
		storage:     storage,
		out:         out,
		needsUpdate: make(map[string]bool),
	}

	needsUpdate, err := storage.BeginFile(ctx, sourceFile)
	if err != nil {
		return nil, fmt.Errorf("beginning source file %q: %w", sourceFile, err)
	}
	v.needsUpdate[sourceFile] = needsUpdate

	if err := storage.AddInclude(ctx, sourceFile, sourceFile); err != nil {
		return nil, fmt.Errorf("recording self include for %q: %w", sourceFile, err)
	}
	return v, nil
}

// Visit is a cparse.VisitFunc implementing the five-step decision
// procedure of spec §4.3.
func (v *Visitor) Visit(cursor, _ cparse.Cursor) cparse.VisitResult {
	referenced := cursor.Referenced()
	if referenced.IsNull() {
		return cparse.VisitRecurse
	}

	usr := referenced.USR()
	if usr == "" {
		return cparse.VisitRecurse
	}

	beginFile, beginLine, beginCol, beginOffset := cursor.Location().ExpansionLocation()
	if beginFile == "" {
		return cparse.VisitContinue
	}

	for _, prefix := range v.exclude {
		if strings.HasPrefix(beginFile, prefix) {
			return cparse.VisitContinue
		}
	}

	if v.ignore != nil && v.ignore.MatchAbs(beginFile) {
		return cparse.VisitContinue
	}

	if _, seen := v.needsUpdate[beginFile]; !seen {
		fmt.Fprintf(v.out, "    %s\n", beginFile)

		needsUpdate, err := v.storage.BeginFile(v.ctx, beginFile)
		if err != nil {
			v.err = fmt.Errorf("beginning file %q: %w", beginFile, err)
			return cparse.VisitBreak
		}
		v.needsUpdate[beginFile] = needsUpdate

		if err := v.storage.AddInclude(v.ctx, beginFile, v.sourceFile); err != nil {
			v.err = fmt.Errorf("recording include %q -> %q: %w", v.sourceFile, beginFile, err)
			return cparse.VisitBreak
		}
	}

	if v.needsUpdate[beginFile] {
		_, endLine, endCol, endOffset := cursor.End().ExpansionLocation()
		err := v.storage.AddTag(v.ctx, usr, cursor.KindString(), cursor.Spelling(), beginFile,
			beginLine, beginCol, beginOffset,
			endLine, endCol, endOffset,
			cursor.IsDeclaration(), cursor.IsDefinition())
		if err != nil {
			v.err = fmt.Errorf("adding tag for %q in %q: %w", cursor.Spelling(), beginFile, err)
			return cparse.VisitBreak
		}
	}

	return cparse.VisitRecurse
}

// Err returns the first error Visit encountered, or nil. Check it
// after VisitChildren returns.
func (v *Visitor) Err() error {
	return v.err
}

// Walk runs the visitor over top's subtree and returns the first
// storage error it encountered, if any.
func Walk(ctx context.Context, top cparse.Cursor, sourceFile string, exclude []string, ignore Excluder, storage Storage, out io.Writer) error {
	v, err := New(ctx, sourceFile, exclude, ignore, storage, out)
	if err != nil {
		return err
	}
	cparse.VisitChildren(top, v.Visit)
	return v.Err()
}
