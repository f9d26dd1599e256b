package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Builder collects per-source outcomes as tasks complete and finalizes the
// run report. Outcomes are placed by registration index, so the report order
// is stable regardless of completion order. Collect is safe for concurrent
// use; Build must only be called after every task has reached a terminal
// state.
type Builder struct {
	started time.Time

	mu       sync.Mutex
	outcomes []*Outcome
}

// NewBuilder creates a builder for the given number of registered sources
func NewBuilder(sourceCount int) *Builder {
	return &Builder{
		started:  time.Now().UTC(),
		outcomes: make([]*Outcome, sourceCount),
	}
}

// Collect records the outcome for the source at the given registration index
func (b *Builder) Collect(index int, outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.outcomes) {
		return
	}
	o := outcome
	b.outcomes[index] = &o
}

// Build finalizes the run report with summary counts
func (b *Builder) Build() *RunReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	rep := &RunReport{
		RunID:      uuid.NewString(),
		Timestamp:  b.started,
		DurationMs: time.Since(b.started).Milliseconds(),
		Sources:    make([]Outcome, 0, len(b.outcomes)),
	}

	for _, o := range b.outcomes {
		if o == nil {
			// The engine guarantees one outcome per source; a hole here
			// would mean a dropped task, which must still be visible.
			continue
		}
		rep.Sources = append(rep.Sources, *o)
		switch o.Status {
		case StatusUnchanged:
			rep.Summary.Unchanged++
		case StatusChanged:
			rep.Summary.Changed++
		case StatusUnreachable:
			rep.Summary.Unreachable++
		case StatusExtractionFailed:
			rep.Summary.ExtractionFailed++
		}
	}

	return rep
}

// WriteFile atomically writes the report as indented JSON. When compactPath
// is non-empty an unindented copy is written there as well, for consumers
// that prefer a minimal document.
func WriteFile(path, compactPath string, rep *RunReport) error {
	pretty, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := writeAtomic(path, pretty); err != nil {
		return err
	}

	if compactPath != "" {
		compact, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("failed to marshal compact report: %w", err)
		}
		if err := writeAtomic(compactPath, compact); err != nil {
			return err
		}
	}

	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary report file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	return nil
}
