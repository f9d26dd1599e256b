// Package report aggregates per-source check outcomes into the run-level
// report consumed by the release-process tooling.
package report

import "time"

// Status classifies the terminal outcome of one source check
type Status string

const (
	// StatusUnchanged means the current signature equals the baseline, or
	// this is the first observation of the source
	StatusUnchanged Status = "Unchanged"

	// StatusChanged means the current signature differs from the baseline
	StatusChanged Status = "Changed"

	// StatusUnreachable means the current upstream state could not be obtained
	StatusUnreachable Status = "Unreachable"

	// StatusExtractionFailed means the artifact was fetched but no signature
	// could be derived from it
	StatusExtractionFailed Status = "ExtractionFailed"
)

// Outcome is the immutable per-source result of one run
type Outcome struct {
	// SourceID identifies the registered source
	SourceID string `json:"sourceId"`

	// Status is the terminal classification
	Status Status `json:"status"`

	// PreviousSignature is the baseline signature; absent on first observation
	PreviousSignature string `json:"previousSignature,omitempty"`

	// CurrentSignature is the extracted signature; absent when Unreachable or
	// ExtractionFailed
	CurrentSignature string `json:"currentSignature,omitempty"`

	// ErrorDetail preserves the underlying cause on failure statuses
	ErrorDetail string `json:"errorDetail,omitempty"`

	// DurationMs is the wall time spent checking this source
	DurationMs int64 `json:"durationMs"`

	// Attempts is the number of fetch attempts made
	Attempts int `json:"attempts,omitempty"`

	// Files maps downloadable artifact names to their rendered URLs, with
	// the extracted signature substituted into any {version} placeholder
	Files map[string]string `json:"files,omitempty"`
}

// Summary holds the per-status outcome counts of a run
type Summary struct {
	Unchanged        int `json:"Unchanged"`
	Changed          int `json:"Changed"`
	Unreachable      int `json:"Unreachable"`
	ExtractionFailed int `json:"ExtractionFailed"`
}

// RunReport is the run-level artifact: every registered source exactly once,
// in registration order, plus summary counts. Not mutated after Build.
type RunReport struct {
	// RunID uniquely identifies this run
	RunID string `json:"runId"`

	// Timestamp is when the run started
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is the wall time of the whole run
	DurationMs int64 `json:"durationMs"`

	// Sources lists one outcome per registered source, in registration order
	Sources []Outcome `json:"sources"`

	// Summary counts outcomes per status
	Summary Summary `json:"summary"`
}

// Failed reports whether any source needs attention: anything other than
// all-Unchanged drives a non-zero exit status.
func (r *RunReport) Failed() bool {
	return r.Summary.Changed > 0 || r.Summary.Unreachable > 0 || r.Summary.ExtractionFailed > 0
}
