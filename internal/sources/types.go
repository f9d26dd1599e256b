// Package sources implements the extraction strategies that turn a raw
// fetched artifact into a normalized version signature. Every strategy is a
// pure function of the artifact and its extraction options, so strategies are
// unit-testable with recorded artifacts.
package sources

import (
	"fmt"

	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
)

// Extractor is the extraction capability: derive a version signature from a
// fetched artifact. Implementations must not perform network access or hold
// mutable state.
type Extractor interface {
	// Extract returns the version signature for the artifact. Failures are
	// always a *ExtractionError.
	Extract(art *fetch.Artifact, cfg *config.ExtractionConfig) (string, error)
}

// ExtractionError means a signature could not be derived from the artifact.
// Extraction failures are deterministic for a given artifact, so the engine
// never retries them.
type ExtractionError struct {
	Reason string
	Err    error
}

// Error returns the error message
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

// Unwrap returns the underlying cause, if any
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErrorf(format string, args ...any) error {
	return &ExtractionError{Reason: fmt.Sprintf(format, args...)}
}

// NewExtractor creates the extraction strategy for the given source kind
func NewExtractor(kind string) (Extractor, error) {
	switch kind {
	case config.KindPattern:
		return &PatternExtractor{}, nil
	case config.KindStructured:
		return &StructuredExtractor{}, nil
	case config.KindListing:
		return &ListingExtractor{}, nil
	case config.KindHeader:
		return &HeaderExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported source kind: %s", kind)
	}
}
