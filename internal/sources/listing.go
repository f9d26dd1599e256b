package sources

import (
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/biodwh/driftwatch/internal/config"
	"github.com/biodwh/driftwatch/internal/fetch"
)

// ListingExtractor derives the signature from a directory or FTP listing by
// selecting the newest entry under a configured ordering rule. The artifact
// body is expected to be line-oriented, one entry per line.
type ListingExtractor struct{}

var _ Extractor = (*ListingExtractor)(nil)

// Extract selects the newest listing entry as the signature
func (*ListingExtractor) Extract(art *fetch.Artifact, cfg *config.ExtractionConfig) (string, error) {
	entries, err := listingEntries(art.Body, cfg.ListingPattern)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		if cfg.ListingPattern != "" {
			return "", extractionErrorf("no listing entry matched pattern %q", cfg.ListingPattern)
		}
		return "", extractionErrorf("empty listing")
	}

	ordering := cfg.Ordering
	if ordering == "" {
		ordering = config.OrderingLexical
	}

	switch ordering {
	case config.OrderingLexical:
		return newestLexical(entries), nil
	case config.OrderingDate:
		return newestByDate(entries, cfg.DateLayout)
	case config.OrderingSemver:
		return newestBySemver(entries)
	default:
		return "", extractionErrorf("unknown ordering rule %q", ordering)
	}
}

// listingEntries splits the body into entries. When a pattern is configured
// it filters the entries, and a capturing group replaces the entry both for
// ordering and as the signature (e.g. the version embedded in a file name).
func listingEntries(body []byte, pattern string) ([]string, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, &ExtractionError{Reason: "invalid listing pattern", Err: err}
		}
	}

	var entries []string
	for _, line := range strings.Split(string(body), "\n") {
		entry := strings.TrimSpace(line)
		if entry == "" {
			continue
		}
		if re == nil {
			entries = append(entries, entry)
			continue
		}
		m := re.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			entries = append(entries, m[1])
		} else {
			entries = append(entries, m[0])
		}
	}
	return entries, nil
}

func newestLexical(entries []string) string {
	newest := entries[0]
	for _, e := range entries[1:] {
		if e > newest {
			newest = e
		}
	}
	return newest
}

func newestByDate(entries []string, layout string) (string, error) {
	var newest string
	var newestTime time.Time
	found := false
	for _, e := range entries {
		t, err := time.Parse(layout, e)
		if err != nil {
			continue
		}
		if !found || t.After(newestTime) {
			newest, newestTime, found = e, t, true
		}
	}
	if !found {
		return "", extractionErrorf("no listing entry parses with date layout %q", layout)
	}
	return newest, nil
}

func newestBySemver(entries []string) (string, error) {
	var newest string
	var newestVersion *semver.Version
	for _, e := range entries {
		v, err := semver.NewVersion(e)
		if err != nil {
			continue
		}
		if newestVersion == nil || v.GreaterThan(newestVersion) {
			newest, newestVersion = e, v
		}
	}
	if newestVersion == nil {
		return "", extractionErrorf("no listing entry is a valid semantic version")
	}
	return newest, nil
}
