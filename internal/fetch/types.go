// Package fetch retrieves the current upstream state of a data source over
// HTTP(S) or FTP. It performs a single attempt per call; retry policy lives
// in the drift engine.
package fetch

import (
	"fmt"
	"net/http"
	"time"
)

// Transport selects the fetch transport for a source
type Transport string

const (
	// TransportHTTP fetches over HTTP(S)
	TransportHTTP Transport = "http"

	// TransportFTP fetches over FTP
	TransportFTP Transport = "ftp"
)

// DefaultMaxBodyBytes caps the artifact body. Version signals are small;
// anything larger indicates the endpoint is serving the data itself.
const DefaultMaxBodyBytes int64 = 8 << 20

// Request describes a single fetch attempt
type Request struct {
	// Endpoint is the URL to fetch
	Endpoint string

	// Timeout bounds this attempt
	Timeout time.Duration

	// MaxBodyBytes caps the response body; zero means DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// Artifact is the raw fetched state of a source: the body plus the response
// metadata extraction strategies may derive a signature from.
type Artifact struct {
	// Body is the raw response body
	Body []byte

	// StatusCode is the HTTP status code; zero for non-HTTP transports
	StatusCode int

	// Header holds the response headers; empty for non-HTTP transports
	Header http.Header

	// ContentType is the declared media type of the body
	ContentType string
}

// UnreachableError means the current upstream state could not be obtained.
// All transport failures collapse into it; Transient reports whether a retry
// could plausibly succeed (connection and timeout failures) or not (non-2xx
// application responses, authentication rejections).
type UnreachableError struct {
	Endpoint  string
	Cause     error
	Permanent bool
}

// Error returns the error message
func (e *UnreachableError) Error() string {
	return fmt.Sprintf("unreachable %s: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying cause
func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// Transient reports whether the failure is worth retrying
func (e *UnreachableError) Transient() bool {
	return !e.Permanent
}
