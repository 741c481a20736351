// Package tusource implements spec §4.2: given a file name, resolve
// its compile command and hand it to the external parser.
package tusource

import (
	"context"
	"fmt"

	"ctix/internal/cparse"
	"ctix/internal/db"
)

// CommandResolver is the subset of *db.Store (or a transaction-scoped
// one) the source needs.
type CommandResolver interface {
	GetCompileCommand(ctx context.Context, fileName string) (directory string, args []string, err error)
}

// ParseFailedError wraps a parser invocation or command-lookup failure
// for one file, per spec §7. The driver catches this per-file when
// iterating a caller-supplied file list.
type ParseFailedError struct {
	File  string
	Cause error
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("parsing %q: %v", e.File, e.Cause)
}

func (e *ParseFailedError) Unwrap() error { return e.Cause }

// Source resolves a file's compile command and drives the external
// parser over it.
type Source struct {
	resolver CommandResolver
	parser   cparse.Parser
}

// New builds a Source over resolver (usually a *db.Store or
// *db.Transaction) and parser.
func New(resolver CommandResolver, parser cparse.Parser) *Source {
	return &Source{resolver: resolver, parser: parser}
}

// TranslationUnit resolves fileName's compile command and parses it,
// returning a ParseFailedError on either failure.
func (s *Source) TranslationUnit(ctx context.Context, fileName string) (cparse.TranslationUnit, error) {
	directory, args, err := s.resolver.GetCompileCommand(ctx, fileName)
	if err != nil {
		return nil, &ParseFailedError{File: fileName, Cause: err}
	}

	tu, err := s.parser.Parse(ctx, fileName, directory, args)
	if err != nil {
		return nil, &ParseFailedError{File: fileName, Cause: err}
	}
	return tu, nil
}

var _ CommandResolver = (*db.Store)(nil)
