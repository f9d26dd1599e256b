package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsTransport(t *testing.T) {
	t.Parallel()

	f, err := New(TransportHTTP)
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = New(TransportFTP)
	require.NoError(t, err)
	assert.IsType(t, &FTPFetcher{}, f)

	_, err = New(Transport("gopher"))
	assert.Error(t, err)
}

func TestHTTPFetchSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>version 2.1</html>"))
	}))
	defer server.Close()

	art, err := NewHTTPFetcher().Fetch(context.Background(), Request{Endpoint: server.URL})
	require.NoError(t, err)

	assert.Equal(t, []byte("<html>version 2.1</html>"), art.Body)
	assert.Equal(t, http.StatusOK, art.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", art.ContentType)
	assert.Equal(t, `"abc123"`, art.Header.Get("ETag"))
}

func TestHTTPFetchNonSuccessStatusIsPermanent(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewHTTPFetcher().Fetch(context.Background(), Request{Endpoint: server.URL})
		server.Close()

		var unreachable *UnreachableError
		require.ErrorAs(t, err, &unreachable, "status %d", status)
		assert.False(t, unreachable.Transient(), "status %d must not be retried", status)
	}
}

func TestHTTPFetchConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()

	// Grab a port that nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), Request{Endpoint: endpoint})

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.True(t, unreachable.Transient())
}

func TestHTTPFetchTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), Request{
		Endpoint: server.URL,
		Timeout:  50 * time.Millisecond,
	})

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.True(t, unreachable.Transient())
}

func TestHTTPFetchBodyCap(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	art, err := NewHTTPFetcher().Fetch(context.Background(), Request{
		Endpoint:     server.URL,
		MaxBodyBytes: 16,
	})
	require.NoError(t, err)
	assert.Len(t, art.Body, 16)
}

func TestHTTPFetchInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPFetcher().Fetch(context.Background(), Request{Endpoint: "://bad"})

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.False(t, unreachable.Transient())
}

func TestUnreachableErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := &UnreachableError{Endpoint: "https://example.org", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "example.org")
	assert.True(t, err.Transient())
}
