// Package config provides configuration loading and validation for driftwatch.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// KindPattern selects the pattern-match extraction strategy: a regular
	// expression applied to the artifact body.
	KindPattern = "pattern"

	// KindStructured selects the structured-lookup extraction strategy: a
	// JSON path or XPath expression applied to a parsed body.
	KindStructured = "structured"

	// KindListing selects the listing-newest extraction strategy: the newest
	// entry of a directory or FTP listing.
	KindListing = "listing"

	// KindHeader selects the header-derived extraction strategy: a response
	// header such as ETag or Last-Modified.
	KindHeader = "header"
)

const (
	// TransportHTTP fetches sources over HTTP(S).
	TransportHTTP = "http"

	// TransportFTP fetches sources over FTP.
	TransportFTP = "ftp"
)

const (
	// OrderingLexical orders listing entries lexicographically.
	OrderingLexical = "lexical"

	// OrderingDate orders listing entries by a parsed date.
	OrderingDate = "date"

	// OrderingSemver orders listing entries by semantic version.
	OrderingSemver = "semver"
)

// EnvPrefix is the environment variable prefix for driftwatch settings.
const EnvPrefix = "DRIFTWATCH"

// Engine defaults applied when the corresponding setting is unset.
const (
	DefaultConcurrency    = 8
	DefaultFetchTimeout   = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
	DefaultRunDeadline    = 10 * time.Minute
	DefaultBaselinePath   = "baseline.json"
	DefaultReportPath     = "report.json"
)

// Option defines the interface for configuration loader options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Engine holds run-level settings (concurrency, timeouts, file locations)
	Engine EngineConfig `yaml:"engine,omitempty"`

	// Sources is the registry of data sources to check
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines a single registered data source
type SourceConfig struct {
	// ID is the unique, stable identifier for this source
	ID string `yaml:"id"`

	// Kind selects the extraction strategy (pattern, structured, listing, header)
	Kind string `yaml:"kind"`

	// Endpoint is the URL to fetch the version signal from
	Endpoint string `yaml:"endpoint"`

	// Transport overrides the fetch transport (http or ftp).
	// Defaults to ftp for ftp:// endpoints and http otherwise.
	Transport string `yaml:"transport,omitempty"`

	// Extraction holds the strategy-specific extraction options
	Extraction ExtractionConfig `yaml:"extraction,omitempty"`

	// Files maps downloadable artifact names to URL templates. A {version}
	// placeholder is substituted with the extracted signature, and the
	// rendered map is carried into the run report for the warehouse builder.
	Files map[string]string `yaml:"files,omitempty"`
}

// ExtractionConfig holds the recognized extraction options. Which fields are
// required depends on the source kind; Validate enforces the combinations.
type ExtractionConfig struct {
	// RegexPattern is the regular expression applied to the body (pattern
	// kind) or to the header value (header kind)
	RegexPattern string `yaml:"regexPattern,omitempty"`

	// VersionTemplate assembles the signature from capture groups using
	// regexp expand syntax, e.g. "$3.$2.$1". When empty, the first capture
	// group is the signature.
	VersionTemplate string `yaml:"versionTemplate,omitempty"`

	// MonthNames maps short English month names (Jan..Dec) to their numbers
	// during template expansion
	MonthNames bool `yaml:"monthNames,omitempty"`

	// JSONPath is the gjson path for structured JSON bodies
	JSONPath string `yaml:"jsonPath,omitempty"`

	// XPath is the XPath expression for structured XML bodies
	XPath string `yaml:"xpath,omitempty"`

	// ListingPattern filters listing entries; a capturing group replaces the
	// entry for ordering and as the signature
	ListingPattern string `yaml:"listingPattern,omitempty"`

	// Ordering is the listing ordering rule (lexical, date, semver).
	// Defaults to lexical.
	Ordering string `yaml:"ordering,omitempty"`

	// DateLayout is the Go time layout used with the date ordering rule
	DateLayout string `yaml:"dateLayout,omitempty"`

	// Header is the response header to derive the signature from.
	// Defaults to ETag with a Last-Modified fallback.
	Header string `yaml:"header,omitempty"`
}

// EngineConfig defines run-level engine settings. Duration fields use Go
// duration syntax (e.g. "30s", "5m").
type EngineConfig struct {
	// Concurrency is the bound on parallel source checks
	Concurrency int `yaml:"concurrency,omitempty"`

	// FetchTimeout is the per-attempt fetch timeout
	FetchTimeout string `yaml:"fetchTimeout,omitempty"`

	// MaxAttempts is the fetch attempt budget per source (first try included)
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// BackoffInitial is the initial retry backoff interval
	BackoffInitial string `yaml:"backoffInitial,omitempty"`

	// BackoffMax is the retry backoff interval cap
	BackoffMax string `yaml:"backoffMax,omitempty"`

	// RunDeadline bounds the whole run; sources not terminal at the deadline
	// are reported Unreachable
	RunDeadline string `yaml:"runDeadline,omitempty"`

	// BaselinePath is the location of the persisted baseline file
	BaselinePath string `yaml:"baselinePath,omitempty"`

	// ReportPath is the location the run report is written to
	ReportPath string `yaml:"reportPath,omitempty"`

	// CompactReportPath optionally receives a compact (unindented) copy of
	// the run report
	CompactReportPath string `yaml:"compactReportPath,omitempty"`
}

// ValidationError is a configuration schema error. It aborts the run before
// any network activity and is distinct from any per-source check outcome.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func validationErrorf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Load reads and parses the configuration using the given options
func Load(opts ...Option) (*Config, error) {
	lc := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(lc); err != nil {
			return nil, err
		}
	}
	if lc.path == "" {
		return nil, fmt.Errorf("no configuration source provided")
	}

	// #nosec G304 -- path is cleaned and symlink-resolved by WithConfigPath
	data, err := os.ReadFile(lc.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	return &cfg, nil
}

// Validate checks the full configuration. It returns a *ValidationError for
// schema problems so callers can distinguish them from runtime failures.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if len(c.Sources) == 0 {
		return validationErrorf("sources", "at least one source is required")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if src.ID != "" {
			field = fmt.Sprintf("sources[%s]", src.ID)
		}
		if err := src.Validate(field); err != nil {
			return err
		}
		if _, dup := seen[src.ID]; dup {
			return validationErrorf(field, "duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
	}

	return nil
}

// Validate checks a single source definition
func (s *SourceConfig) Validate(field string) error {
	if s.ID == "" {
		return validationErrorf(field+".id", "id is required")
	}
	if s.Endpoint == "" {
		return validationErrorf(field+".endpoint", "endpoint is required")
	}

	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Host == "" {
		return validationErrorf(field+".endpoint", "invalid endpoint URL %q", s.Endpoint)
	}

	switch s.EffectiveTransport() {
	case TransportHTTP, TransportFTP:
	default:
		return validationErrorf(field+".transport", "unknown transport %q", s.Transport)
	}

	ex := &s.Extraction
	switch s.Kind {
	case KindPattern:
		if ex.RegexPattern == "" {
			return validationErrorf(field+".extraction.regexPattern",
				"regexPattern is required for kind %q", KindPattern)
		}
	case KindStructured:
		if ex.JSONPath == "" && ex.XPath == "" {
			return validationErrorf(field+".extraction",
				"jsonPath or xpath is required for kind %q", KindStructured)
		}
	case KindListing:
		switch ex.Ordering {
		case "", OrderingLexical, OrderingSemver:
		case OrderingDate:
			if ex.DateLayout == "" {
				return validationErrorf(field+".extraction.dateLayout",
					"dateLayout is required for the date ordering rule")
			}
		default:
			return validationErrorf(field+".extraction.ordering",
				"unknown ordering rule %q", ex.Ordering)
		}
	case KindHeader:
		// Header defaults to ETag/Last-Modified; nothing required.
	case "":
		return validationErrorf(field+".kind", "kind is required")
	default:
		return validationErrorf(field+".kind", "unknown kind %q", s.Kind)
	}

	for _, pat := range []struct{ name, expr string }{
		{"regexPattern", ex.RegexPattern},
		{"listingPattern", ex.ListingPattern},
	} {
		if pat.expr == "" {
			continue
		}
		if _, err := regexp.Compile(pat.expr); err != nil {
			return validationErrorf(field+".extraction."+pat.name, "invalid pattern: %v", err)
		}
	}

	if ex.VersionTemplate != "" && ex.RegexPattern == "" {
		return validationErrorf(field+".extraction.versionTemplate",
			"versionTemplate requires regexPattern")
	}

	return nil
}

// EffectiveTransport returns the transport for this source, inferring ftp
// from the endpoint scheme when no explicit override is set.
func (s *SourceConfig) EffectiveTransport() string {
	if s.Transport != "" {
		return s.Transport
	}
	if u, err := url.Parse(s.Endpoint); err == nil && u.Scheme == "ftp" {
		return TransportFTP
	}
	return TransportHTTP
}

// Validate checks the engine settings
func (e *EngineConfig) Validate() error {
	if e.Concurrency < 0 {
		return validationErrorf("engine.concurrency", "must not be negative")
	}
	if e.MaxAttempts < 0 {
		return validationErrorf("engine.maxAttempts", "must not be negative")
	}
	for _, d := range []struct{ name, value string }{
		{"fetchTimeout", e.FetchTimeout},
		{"backoffInitial", e.BackoffInitial},
		{"backoffMax", e.BackoffMax},
		{"runDeadline", e.RunDeadline},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return validationErrorf("engine."+d.name, "invalid duration %q", d.value)
		}
	}
	return nil
}

// EffectiveConcurrency returns the configured concurrency bound or its default
func (e *EngineConfig) EffectiveConcurrency() int {
	if e.Concurrency > 0 {
		return e.Concurrency
	}
	return DefaultConcurrency
}

// EffectiveMaxAttempts returns the configured attempt budget or its default
func (e *EngineConfig) EffectiveMaxAttempts() int {
	if e.MaxAttempts > 0 {
		return e.MaxAttempts
	}
	return DefaultMaxAttempts
}

// EffectiveFetchTimeout returns the per-attempt timeout or its default
func (e *EngineConfig) EffectiveFetchTimeout() time.Duration {
	return durationOrDefault(e.FetchTimeout, DefaultFetchTimeout)
}

// EffectiveBackoffInitial returns the initial backoff or its default
func (e *EngineConfig) EffectiveBackoffInitial() time.Duration {
	return durationOrDefault(e.BackoffInitial, DefaultBackoffInitial)
}

// EffectiveBackoffMax returns the backoff cap or its default
func (e *EngineConfig) EffectiveBackoffMax() time.Duration {
	return durationOrDefault(e.BackoffMax, DefaultBackoffMax)
}

// EffectiveRunDeadline returns the global run deadline or its default
func (e *EngineConfig) EffectiveRunDeadline() time.Duration {
	return durationOrDefault(e.RunDeadline, DefaultRunDeadline)
}

// EffectiveBaselinePath returns the baseline file location or its default
func (e *EngineConfig) EffectiveBaselinePath() string {
	if e.BaselinePath != "" {
		return e.BaselinePath
	}
	return DefaultBaselinePath
}

// EffectiveReportPath returns the report file location or its default
func (e *EngineConfig) EffectiveReportPath() string {
	if e.ReportPath != "" {
		return e.ReportPath
	}
	return DefaultReportPath
}

func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		// Validate rejects malformed durations before the engine runs.
		return def
	}
	return d
}
