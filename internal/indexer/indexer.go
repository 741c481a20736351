// Package indexer implements spec §4.4: the driver that orchestrates
// a full or targeted indexing pass over Storage, the Translation-Unit
// Source, and the Cursor Visitor.
package indexer

import (
	"context"
	"fmt"
	"io"
	"time"

	"ctix/internal/cparse"
	"ctix/internal/db"
	"ctix/internal/tusource"
	"ctix/internal/visitor"
)

const excludeOption = "exclude"

// Parser is the external parser (cparse.Parser) the driver hands to a
// Translation-Unit Source per transaction.
type Parser = cparse.Parser

// Driver orchestrates indexing passes against one open Store.
type Driver struct {
	store      *db.Store
	parser     Parser
	out        io.Writer
	errOut     io.Writer
	ignore     visitor.Excluder
	diagnostic bool
}

// New builds a Driver. out receives the human-readable progress
// stream described in spec §4.4; errOut receives warnings and errors,
// each prefixed "Warning: " or "Error: " per spec §7. Set
// printDiagnostics to true to have each translation unit's parser
// diagnostics printed as they're read.
func New(store *db.Store, parser Parser, out, errOut io.Writer, printDiagnostics bool) *Driver {
	return &Driver{store: store, parser: parser, out: out, errOut: errOut, diagnostic: printDiagnostics}
}

// SetIgnore installs a second exclusion mechanism (e.g. a .ctignore
// matcher) that composes with each pass's literal exclude-prefix
// option when the cursor visitor decides whether to skip a file.
func (d *Driver) SetIgnore(ignore visitor.Excluder) {
	d.ignore = ignore
}

// FullIndex sets the exclude option to the caller-supplied value,
// wipes the tag database via clean_index, then runs the update loop
// over every eligible translation unit.
func (d *Driver) FullIndex(ctx context.Context, exclude []string) error {
	return d.store.RunInTransaction(ctx, func(txn *db.Transaction) error {
		if err := txn.SetOptionArray(ctx, excludeOption, exclude); err != nil {
			return fmt.Errorf("setting exclude option: %w", err)
		}
		if err := txn.CleanIndex(ctx); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
		return d.updateLoop(ctx, txn, nil)
	})
}

// Update reads the exclude option (defaulting to empty on failure)
// and runs the update loop. If files is non-nil, those names are
// indexed in order instead of driving Storage.NextFile.
func (d *Driver) Update(ctx context.Context, files []string) error {
	return d.store.RunInTransaction(ctx, func(txn *db.Transaction) error {
		return d.updateLoop(ctx, txn, files)
	})
}

// updateLoop drives either the caller-supplied file list or
// Storage.NextFile, parsing and visiting each selected file in turn.
func (d *Driver) updateLoop(ctx context.Context, txn *db.Transaction, files []string) error {
	source := tusource.New(txn, d.parser)
	exclude, err := txn.GetOptionArray(ctx, excludeOption)
	if err != nil {
		fmt.Fprintf(d.errOut, "Warning: reading exclude option failed: %v\n", err)
		exclude = nil
	}

	passStart := time.Now()

	if files != nil {
		for _, file := range files {
			if err := d.indexOne(ctx, txn, source, file, exclude); err != nil {
				fmt.Fprintf(d.errOut, "Error: %s: %v\n", file, err)
				continue
			}
		}
	} else {
		for {
			file, ok, err := txn.NextFile(ctx)
			if err != nil {
				return fmt.Errorf("selecting next file: %w", err)
			}
			if !ok {
				break
			}
			if err := d.indexOne(ctx, txn, source, file, exclude); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(d.out, "total: %s\n", time.Since(passStart).Round(time.Millisecond))
	return nil
}

// indexOne parses and visits one translation unit.
func (d *Driver) indexOne(ctx context.Context, txn *db.Transaction, source *tusource.Source, file string, exclude []string) error {
	fmt.Fprintf(d.out, "%s: parsing...\n", file)
	start := time.Now()

	tu, err := source.TranslationUnit(ctx, file)
	if err != nil {
		return err
	}
	defer tu.Dispose()

	if d.diagnostic {
		for i := 0; i < tu.NumDiagnostics(); i++ {
			fmt.Fprintf(d.out, "  %s\n", tu.Diagnostic(i).String())
		}
	}

	fmt.Fprintf(d.out, "  indexing...\n")
	if err := visitor.Walk(ctx, tu.Cursor(), file, exclude, d.ignore, txn, d.out); err != nil {
		return fmt.Errorf("indexing %q: %w", file, err)
	}

	fmt.Fprintf(d.out, "  %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
