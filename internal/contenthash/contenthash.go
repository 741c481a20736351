// Package contenthash gives the file watcher a cheap SHA-256 check of
// whether a changed file's bytes actually changed, so a burst of
// fsnotify events that all settle on the same content triggers exactly
// one reindex.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// Sum returns the hex-encoded SHA-256 of path's current contents.
func Sum(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:]), nil
}

// Tracker remembers the last hash seen for each path, so a caller can
// ask whether a file's content actually changed since the last check.
type Tracker struct {
	seen map[string]string
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]string)}
}

// Changed reports whether path's content differs from the last Sum
// recorded for it (or has never been seen), and records the new hash.
// A read failure (e.g. the file was removed) counts as changed.
func (t *Tracker) Changed(path string) bool {
	sum, err := Sum(path)
	if err != nil {
		delete(t.seen, path)
		return true
	}
	if t.seen[path] == sum {
		return false
	}
	t.seen[path] = sum
	return true
}
