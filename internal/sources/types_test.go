package sources

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodwh/driftwatch/internal/config"
)

func TestNewExtractorSelectsStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind string
		want Extractor
	}{
		{config.KindPattern, &PatternExtractor{}},
		{config.KindStructured, &StructuredExtractor{}},
		{config.KindListing, &ListingExtractor{}},
		{config.KindHeader, &HeaderExtractor{}},
	}

	for _, tc := range tests {
		ex, err := NewExtractor(tc.kind)
		require.NoError(t, err, tc.kind)
		assert.IsType(t, tc.want, ex)
	}
}

func TestNewExtractorUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := NewExtractor("scrape")
	assert.Error(t, err)
}

func TestExtractionErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad syntax")
	err := &ExtractionError{Reason: "invalid pattern", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid pattern")

	bare := &ExtractionError{Reason: "empty listing"}
	assert.Contains(t, bare.Error(), "empty listing")
	assert.NoError(t, bare.Unwrap())
}
