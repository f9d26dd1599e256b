package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent identifies driftwatch to upstream providers
const UserAgent = "driftwatch/1.0"

const defaultTimeout = 30 * time.Second

// Fetcher is the transport capability: obtain the current raw state of an
// endpoint. Implementations do not retry.
type Fetcher interface {
	// Fetch retrieves the endpoint state. Failures are always a
	// *UnreachableError.
	Fetch(ctx context.Context, req Request) (*Artifact, error)
}

// New creates a fetcher for the given transport
func New(transport Transport) (Fetcher, error) {
	switch transport {
	case TransportHTTP:
		return NewHTTPFetcher(), nil
	case TransportFTP:
		return NewFTPFetcher(), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", transport)
	}
}

// HTTPFetcher fetches sources over HTTP(S)
type HTTPFetcher struct {
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTP fetcher with a shared client. Per-request
// timeouts come from the request, not the client.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{}}
}

// Fetch performs a GET against the endpoint and captures body and metadata
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Artifact, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Endpoint, nil)
	if err != nil {
		return nil, &UnreachableError{Endpoint: req.Endpoint, Cause: err, Permanent: true}
	}
	httpReq.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		// DNS failures, refused connections, TLS errors, timeouts.
		return nil, &UnreachableError{Endpoint: req.Endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UnreachableError{
			Endpoint:  req.Endpoint,
			Cause:     fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
			Permanent: true,
		}
	}

	maxBytes := req.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, &UnreachableError{
			Endpoint: req.Endpoint,
			Cause:    fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return &Artifact{
		Body:        body,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
