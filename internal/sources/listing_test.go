package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodwh/driftwatch/internal/config"
)

const archiveListing = `Core_MEDRT_2025.03.01_XML.zip
Core_MEDRT_2026.07.01_XML.zip
Core_MEDRT_2024.11.01_XML.zip
README.txt`

func TestListingNewestLexical(t *testing.T) {
	t.Parallel()

	sig, err := (&ListingExtractor{}).Extract(artifactWithBody("v9\nv12\nv10"),
		&config.ExtractionConfig{})
	require.NoError(t, err)

	// Lexical ordering is exactly that; callers wanting numeric ordering use
	// the semver or date rules.
	assert.Equal(t, "v9", sig)
}

func TestListingNewestWithPatternCapture(t *testing.T) {
	t.Parallel()

	sig, err := (&ListingExtractor{}).Extract(artifactWithBody(archiveListing),
		&config.ExtractionConfig{
			ListingPattern: `Core_MEDRT_([0-9]{4}\.[0-9]{2}\.[0-9]{2})_XML\.zip`,
		})
	require.NoError(t, err)
	assert.Equal(t, "2026.07.01", sig)
}

func TestListingNewestByDate(t *testing.T) {
	t.Parallel()

	listing := "2026-01-15\n2026-08-01\n2025-12-31"
	sig, err := (&ListingExtractor{}).Extract(artifactWithBody(listing),
		&config.ExtractionConfig{
			Ordering:   config.OrderingDate,
			DateLayout: "2006-01-02",
		})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01", sig)
}

func TestListingNewestBySemver(t *testing.T) {
	t.Parallel()

	listing := "v9.0.0\nv12.1.0\nv10.0.0\nnot-a-version"
	sig, err := (&ListingExtractor{}).Extract(artifactWithBody(listing),
		&config.ExtractionConfig{Ordering: config.OrderingSemver})
	require.NoError(t, err)
	assert.Equal(t, "v12.1.0", sig)
}

func TestListingEmptyFails(t *testing.T) {
	t.Parallel()

	_, err := (&ListingExtractor{}).Extract(artifactWithBody(""), &config.ExtractionConfig{})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestListingNoEntryMatchesPattern(t *testing.T) {
	t.Parallel()

	_, err := (&ListingExtractor{}).Extract(artifactWithBody("README.txt\nchecksums.md5"),
		&config.ExtractionConfig{ListingPattern: `Core_MEDRT_(.+)_XML\.zip`})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestListingNoDateParses(t *testing.T) {
	t.Parallel()

	_, err := (&ListingExtractor{}).Extract(artifactWithBody("alpha\nbeta"),
		&config.ExtractionConfig{Ordering: config.OrderingDate, DateLayout: "2006-01-02"})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestListingNoSemverParses(t *testing.T) {
	t.Parallel()

	_, err := (&ListingExtractor{}).Extract(artifactWithBody("alpha\nbeta"),
		&config.ExtractionConfig{Ordering: config.OrderingSemver})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestListingIgnoresBlankLines(t *testing.T) {
	t.Parallel()

	sig, err := (&ListingExtractor{}).Extract(artifactWithBody("\n\n  a\n\nb\n  \n"),
		&config.ExtractionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "b", sig)
}
