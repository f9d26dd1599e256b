package sources

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
)

func artifactWithHeader(values map[string]string) *fetch.Artifact {
	h := make(http.Header, len(values))
	for name, value := range values {
		h.Set(name, value)
	}
	return &fetch.Artifact{StatusCode: 200, Header: h}
}

func TestHeaderExtractETagDefault(t *testing.T) {
	t.Parallel()

	sig, err := (&HeaderExtractor{}).Extract(
		artifactWithHeader(map[string]string{"ETag": `"xyz-42"`}),
		&config.ExtractionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "xyz-42", sig)
}

func TestHeaderExtractWeakETag(t *testing.T) {
	t.Parallel()

	sig, err := (&HeaderExtractor{}).Extract(
		artifactWithHeader(map[string]string{"ETag": `W/"xyz-42"`}),
		&config.ExtractionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "xyz-42", sig)
}

func TestHeaderExtractLastModifiedFallback(t *testing.T) {
	t.Parallel()

	sig, err := (&HeaderExtractor{}).Extract(
		artifactWithHeader(map[string]string{"Last-Modified": "Sat, 01 Aug 2026 10:00:00 GMT"}),
		&config.ExtractionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Sat, 01 Aug 2026 10:00:00 GMT", sig)
}

func TestHeaderExtractNamedHeaderWithPattern(t *testing.T) {
	t.Parallel()

	// Dated attachment name inside Content-Disposition, as the GWAS catalog
	// download serves it.
	art := artifactWithHeader(map[string]string{
		"Content-Disposition": `attachment; filename=gwas_catalog_v1.0-associations_e110_r2026-08-01.tsv`,
	})

	sig, err := (&HeaderExtractor{}).Extract(art, &config.ExtractionConfig{
		Header:          "Content-Disposition",
		RegexPattern:    `r([0-9]{4})-([0-9]{2})-([0-9]{2})`,
		VersionTemplate: "$1.$2.$3",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026.08.01", sig)
}

func TestHeaderExtractAbsentHeader(t *testing.T) {
	t.Parallel()

	_, err := (&HeaderExtractor{}).Extract(
		artifactWithHeader(map[string]string{"Content-Type": "text/html"}),
		&config.ExtractionConfig{Header: "Content-Disposition"})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestHeaderExtractNoVersionHeaders(t *testing.T) {
	t.Parallel()

	_, err := (&HeaderExtractor{}).Extract(
		artifactWithHeader(map[string]string{"Content-Type": "text/html"}),
		&config.ExtractionConfig{})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestHeaderExtractPatternMismatch(t *testing.T) {
	t.Parallel()

	_, err := (&HeaderExtractor{}).Extract(
		artifactWithHeader(map[string]string{"ETag": "abc"}),
		&config.ExtractionConfig{RegexPattern: `([0-9]+)`})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}

func TestHeaderExtractNilHeaders(t *testing.T) {
	t.Parallel()

	_, err := (&HeaderExtractor{}).Extract(&fetch.Artifact{}, &config.ExtractionConfig{})

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
}
