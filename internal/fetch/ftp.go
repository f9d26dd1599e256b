package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// mdtmFragment marks an FTP endpoint as a modified-time probe of a single
// file instead of a directory listing, e.g.
// ftp://ftp.ebi.ac.uk/pub/databases/genenames/hgnc_complete_set.txt#mdtm
const mdtmFragment = "mdtm"

// mdtmLayout renders modified times the way upstream version strings are
// normalized elsewhere (Y.M.D).
const mdtmLayout = "2006.01.02"

// FTPFetcher fetches sources over FTP with anonymous login. A directory
// endpoint yields the name listing as the artifact body, one entry per line.
// An endpoint with a #mdtm fragment yields the file's modified time.
type FTPFetcher struct {
	// dial is swapped in tests
	dial func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error)
}

// ftpConn is the subset of the FTP client the fetcher needs
type ftpConn interface {
	Login(user, password string) error
	NameList(path string) ([]string, error)
	GetTime(path string) (time.Time, error)
	Quit() error
}

var _ Fetcher = (*FTPFetcher)(nil)

// NewFTPFetcher creates an FTP fetcher
func NewFTPFetcher() *FTPFetcher {
	return &FTPFetcher{
		dial: func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
			return ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
		},
	}
}

// Fetch retrieves the FTP listing or modified time for the endpoint
func (f *FTPFetcher) Fetch(ctx context.Context, req Request) (*Artifact, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := url.Parse(req.Endpoint)
	if err != nil || u.Host == "" {
		return nil, &UnreachableError{
			Endpoint:  req.Endpoint,
			Cause:     fmt.Errorf("invalid FTP endpoint: %v", err),
			Permanent: true,
		}
	}

	addr := u.Host
	if u.Port() == "" {
		addr = addr + ":21"
	}

	conn, err := f.dial(ctx, addr, timeout)
	if err != nil {
		return nil, &UnreachableError{Endpoint: req.Endpoint, Cause: err}
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, classifyFTPError(req.Endpoint, err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	var body string
	if u.Fragment == mdtmFragment {
		modified, err := conn.GetTime(path)
		if err != nil {
			return nil, classifyFTPError(req.Endpoint, err)
		}
		body = modified.UTC().Format(mdtmLayout)
	} else {
		names, err := conn.NameList(path)
		if err != nil {
			return nil, classifyFTPError(req.Endpoint, err)
		}
		body = strings.Join(names, "\n")
	}

	return &Artifact{
		Body:        []byte(body),
		ContentType: "text/plain",
	}, nil
}

// classifyFTPError collapses FTP server replies into UnreachableError.
// Authentication and permission replies are permanent; everything else,
// including transfer failures, is worth retrying.
func classifyFTPError(endpoint string, err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch proto.Code {
		case ftp.StatusNotLoggedIn, ftp.StatusFileUnavailable, ftp.StatusBadArguments:
			return &UnreachableError{Endpoint: endpoint, Cause: err, Permanent: true}
		}
	}
	return &UnreachableError{Endpoint: endpoint, Cause: err}
}
