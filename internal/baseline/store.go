// Package baseline persists the last confirmed version signature per source
// between runs. The baseline is loaded once before any checks, candidate
// updates are committed in memory as outcomes arrive, and the whole map is
// durably rewritten once after all sources complete.
package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is the persisted baseline state for one source
type Entry struct {
	// Signature is the last confirmed version signature
	Signature string `json:"signature"`

	// ConfirmedAt is when the signature was last observed by a successful check
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// Baseline maps source identifiers to their last confirmed entries
type Baseline map[string]Entry

// Store defines the baseline persistence capability
type Store interface {
	// Load reads the persisted baseline. Called once per run, before any
	// source checks begin. A missing store yields an empty baseline (first
	// run); an unreadable one is a fatal configuration error.
	Load(ctx context.Context) (Baseline, error)

	// Commit records a candidate signature for a source. Idempotent,
	// last-write-wins, safe under concurrent calls from source tasks.
	Commit(sourceID, signature string)

	// Persist durably writes the updated baseline. Called once after all
	// sources complete; either the full update lands or the prior baseline
	// remains intact.
	Persist(ctx context.Context) error
}

// FileStore implements Store on a single JSON file
type FileStore struct {
	path string

	mu      sync.Mutex
	entries Baseline
	now     func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed baseline store
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:    path,
		entries: make(Baseline),
		now:     time.Now,
	}
}

// Load reads the baseline file, returning an empty baseline when the file
// does not exist yet
func (f *FileStore) Load(_ context.Context) (Baseline, error) {
	// #nosec G304 -- path comes from validated configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f.snapshot(), nil
		}
		return nil, fmt.Errorf("failed to read baseline file %s: %w", f.path, err)
	}

	var entries Baseline
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse baseline file %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()

	return f.snapshot(), nil
}

// Commit records a candidate signature for the source
func (f *FileStore) Commit(sourceID, signature string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[sourceID] = Entry{Signature: signature, ConfirmedAt: f.now().UTC()}
}

// Persist atomically rewrites the baseline file via a temporary file and
// rename, so a crash mid-write leaves the prior baseline in place
func (f *FileStore) Persist(_ context.Context) error {
	f.mu.Lock()
	data, err := json.MarshalIndent(f.entries, "", "  ")
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary baseline file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename baseline file: %w", err)
	}

	return nil
}

func (f *FileStore) snapshot() Baseline {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(Baseline, len(f.entries))
	for id, e := range f.entries {
		out[id] = e
	}
	return out
}
