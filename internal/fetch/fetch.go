// Package fetch opens byte streams for manifest and artifact locations.
//
// Supported locations are file:// URIs, bare filesystem paths and
// http(s):// URLs. No timeout is applied to connections or reads and no
// request is retried; a hung transport stalls the caller until the context
// is cancelled.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "launcher/1.0"
	// MaxRedirects is the number of redirects followed before giving up
	MaxRedirects = 10
	// MaxDocumentSize bounds documents read fully into memory by Fetch
	MaxDocumentSize = 16 << 20
)

var (
	// ErrStatus is returned when an HTTP server answers with a non-200 status
	ErrStatus = errors.New("unexpected status code")
	// ErrScheme is returned for locations with an unsupported scheme
	ErrScheme = errors.New("unsupported scheme")
)

// Opener opens a readable stream for a location
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Options configures a Fetcher
type Options struct {
	// UserAgent overrides DefaultUserAgent
	UserAgent string
	// InsecureTLS disables certificate verification for https locations
	InsecureTLS bool
	// Client replaces the HTTP client entirely; InsecureTLS is ignored when set
	Client *http.Client
}

// Fetcher opens local files and HTTP resources
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a fetcher
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //#nosec G402 opt-in via config
		}
		client = &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Fetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// Open returns a stream for location. The caller closes it.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || isWindowsDrive(u.Scheme) {
		// Not a URL, treat as a plain filesystem path
		return openFile(location)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(fileURLPath(u))
	case "http", "https":
		return f.openHTTP(ctx, location)
	default:
		return nil, fmt.Errorf("%w: %s", ErrScheme, u.Scheme)
	}
}

// Fetch reads an entire small document such as a manifest or signature
func Fetch(ctx context.Context, o Opener, location string) ([]byte, error) {
	rc, err := o.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}

	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("document %s exceeds %d bytes", location, MaxDocumentSize)
	}

	return data, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d from %s", ErrStatus, resp.StatusCode, location)
	}

	return resp.Body, nil
}

func openFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// FileURL returns the file:// URL for a local path
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return (&url.URL{Scheme: "file", Path: p}).String()
}

// fileURLPath converts a file:// URL to a local path
func fileURLPath(u *url.URL) string {
	p := u.Path
	if p == "" {
		p = u.Opaque
	}

	// file:///C:/dir on Windows parses with a leading slash before the drive
	if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}

	// file://host/share is a UNC path
	if u.Host != "" && u.Host != "localhost" {
		p = "//" + u.Host + p
	}

	return filepath.FromSlash(p)
}

// isWindowsDrive reports whether a parsed scheme is really a drive letter
func isWindowsDrive(scheme string) bool {
	return len(scheme) == 1
}
