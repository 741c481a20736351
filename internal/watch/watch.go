// Package watch adds a live-reindexing mode on top of the Indexing
// Driver: it watches a directory tree for filesystem events and
// triggers an incremental update after a debounce window, instead of
// requiring a manual ctix update invocation per change.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"ctix/internal/contenthash"
)

// Updater is the subset of *indexer.Driver the watcher drives.
type Updater interface {
	Update(ctx context.Context, files []string) error
}

// Watcher debounces filesystem events under root and triggers an
// Update pass once events settle.
type Watcher struct {
	root     string
	updater  Updater
	debounce time.Duration
	out      io.Writer
	errOut   io.Writer
	tracker  *contenthash.Tracker
}

// New builds a Watcher over root. debounce is how long to wait after
// the last event before running an update. out receives progress
// lines; errOut receives warnings and errors, each prefixed
// "Warning: " or "Error: " per spec §7.
func New(root string, updater Updater, debounce time.Duration, out, errOut io.Writer) *Watcher {
	return &Watcher{root: root, updater: updater, debounce: debounce, out: out, errOut: errOut, tracker: contenthash.NewTracker()}
}

// Run watches root until ctx is canceled, triggering debounced update
// passes as files change. It returns the fsnotify setup error, if any;
// a canceled context is not reported as an error.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := addDirs(fsw, w.root); err != nil {
		return fmt.Errorf("watching %q: %w", w.root, err)
	}

	var timer *time.Timer
	pending := make(map[string]bool)

	fire := func() {
		if len(pending) == 0 {
			return
		}
		changed := make([]string, 0, len(pending))
		for path := range pending {
			if w.tracker.Changed(path) {
				changed = append(changed, path)
			}
		}
		pending = make(map[string]bool)
		if len(changed) == 0 {
			return
		}
		fmt.Fprintf(w.out, "watch: reindexing %d changed file(s)\n", len(changed))
		if err := w.updater.Update(ctx, changed); err != nil {
			fmt.Fprintf(w.errOut, "Error: update failed: %v\n", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w.errOut, "Error: watcher: %v\n", err)
		}
	}
}

func addDirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
