package sources

import (
	"strings"

	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
)

// HeaderExtractor derives the signature from response metadata instead of the
// body: ETag, Last-Modified, or any configured header such as
// Content-Disposition. An optional pattern narrows the header value, e.g. the
// date embedded in an attachment file name.
type HeaderExtractor struct{}

var _ Extractor = (*HeaderExtractor)(nil)

// Extract reads the configured header, falling back from ETag to
// Last-Modified when none is configured
func (*HeaderExtractor) Extract(art *fetch.Artifact, cfg *config.ExtractionConfig) (string, error) {
	if art.Header == nil {
		return "", extractionErrorf("artifact carries no response headers")
	}

	var value string
	name := cfg.Header
	if name != "" {
		value = art.Header.Get(name)
		if value == "" {
			return "", extractionErrorf("header %q absent", name)
		}
	} else {
		value = art.Header.Get("ETag")
		if value == "" {
			value = art.Header.Get("Last-Modified")
		}
		if value == "" {
			return "", extractionErrorf("neither ETag nor Last-Modified header present")
		}
	}

	// ETags are compared by their opaque value; the quoting and weak prefix
	// are transport framing, not version.
	value = strings.TrimPrefix(value, "W/")
	value = strings.Trim(value, `"`)
	if value == "" {
		return "", extractionErrorf("header value is empty")
	}

	if cfg.RegexPattern != "" {
		return matchPattern([]byte(value), cfg)
	}
	return value, nil
}
