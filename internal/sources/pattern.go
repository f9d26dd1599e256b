package sources

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
)

// monthsShort maps short English month names to their numbers, for upstream
// pages that publish dates like "21-Jun-2024" or "Last updated: Jun 2024".
var monthsShort = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// PatternExtractor derives the signature by applying a configured regular
// expression to the artifact body. The first capture group is the signature
// unless a version template reassembles the groups.
type PatternExtractor struct{}

var _ Extractor = (*PatternExtractor)(nil)

// Extract applies the pattern to the body
func (*PatternExtractor) Extract(art *fetch.Artifact, cfg *config.ExtractionConfig) (string, error) {
	return matchPattern(art.Body, cfg)
}

// matchPattern applies the configured pattern to the given text and renders
// the signature. Shared with the header-derived strategy.
func matchPattern(text []byte, cfg *config.ExtractionConfig) (string, error) {
	re, err := regexp.Compile(cfg.RegexPattern)
	if err != nil {
		return "", &ExtractionError{Reason: "invalid pattern", Err: err}
	}

	loc := re.FindSubmatchIndex(text)
	if loc == nil {
		return "", extractionErrorf("pattern %q did not match", cfg.RegexPattern)
	}

	if cfg.VersionTemplate != "" {
		out := re.Expand(nil, []byte(cfg.VersionTemplate), text, loc)
		signature := string(out)
		if cfg.MonthNames {
			signature = replaceMonthNames(signature)
		}
		if signature == "" {
			return "", extractionErrorf("version template %q expanded to an empty signature",
				cfg.VersionTemplate)
		}
		return signature, nil
	}

	if re.NumSubexp() < 1 {
		return "", extractionErrorf("pattern %q has no capture group", cfg.RegexPattern)
	}
	// loc[2],loc[3] bound the first capture group; -1 means it did not
	// participate in the match.
	if loc[2] < 0 {
		return "", extractionErrorf("pattern %q matched without capturing a signature",
			cfg.RegexPattern)
	}

	return string(text[loc[2]:loc[3]]), nil
}

func replaceMonthNames(s string) string {
	for i, month := range monthsShort {
		s = strings.ReplaceAll(s, month, strconv.Itoa(i+1))
	}
	return s
}
