package grablib

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Connection timeouts for metadata probes and range fetches.
const (
	DefConnectTimeout = 15 * time.Second
	DefReadTimeout    = 30 * time.Second
	DefUserAgent      = "grab/1.0"
)

// FileInfo holds the metadata returned by a probe.
type FileInfo struct {
	// Size is the resource length in bytes, -1 when the server did not
	// report one.
	Size int64
	// ContentType is the reported media type.
	ContentType string
	// AcceptsRanges reports whether the server honors byte-range requests.
	AcceptsRanges bool
	// SuggestedName is derived from Content-Disposition or the URL path.
	SuggestedName string
}

// RangeClientOpts are optional settings for NewRangeClient.
type RangeClientOpts struct {
	// ProxyURL routes requests through an http, https or socks5 proxy.
	ProxyURL string
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Logger receives non-fatal diagnostics such as short reads. Nil
	// disables them.
	Logger *log.Logger
}

// RangeClient issues metadata probes and bounded range fetches over HTTP.
// It is safe for concurrent use.
type RangeClient struct {
	client    *http.Client
	userAgent string
	l         *log.Logger
}

// NewRangeClient creates a range-capable HTTP fetcher with fixed connect
// and read timeouts.
func NewRangeClient(opts *RangeClientOpts) (*RangeClient, error) {
	if opts == nil {
		opts = &RangeClientOpts{}
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: DefConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: DefReadTimeout,
	}
	if opts.ProxyURL != "" {
		parsed, err := url.Parse(opts.ProxyURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", opts.ProxyURL)
		}
		if parsed.Scheme == "socks5" {
			var auth *proxy.Auth
			if parsed.User != nil {
				pass, _ := parsed.User.Password()
				auth = &proxy.Auth{User: parsed.User.Username(), Password: pass}
			}
			dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		} else {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefUserAgent
	}
	return &RangeClient{
		client:    &http.Client{Transport: transport},
		userAgent: ua,
		l:         opts.Logger,
	}, nil
}

// Probe fetches resource metadata without downloading content. It returns
// ErrNotFound or ErrForbidden for terminal response codes and a
// NetworkError for transient ones.
func (rc *RangeClient) Probe(ctx context.Context, rawURL string) (*FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", rc.userAgent)
	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "probe", Err: err}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrForbidden
	case resp.StatusCode >= 300:
		return nil, &NetworkError{Op: "probe", Code: resp.StatusCode}
	}
	info := &FileInfo{
		Size:          resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		SuggestedName: FileNameFromHeaders(rawURL, resp.Header.Get("Content-Disposition")),
	}
	if info.Size == 0 {
		info.Size = -1
	}
	return info, nil
}

// Fetch opens a full-body response stream for servers without range
// support. The caller owns the returned body.
func (rc *RangeClient) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", rc.userAgent)
	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "fetch", Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, ErrForbidden
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, &NetworkError{Op: "fetch", Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// FetchRange downloads the inclusive byte range [start, end]. A byte count
// smaller than requested is logged but returned as-is; the worker advances
// by what was actually received.
func (rc *RangeClient) FetchRange(ctx context.Context, rawURL string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", rc.userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrForbidden
	case resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK:
		return nil, &NetworkError{Op: "fetch", Code: resp.StatusCode}
	}
	expected := end - start + 1
	data, err := io.ReadAll(io.LimitReader(resp.Body, expected))
	if err != nil {
		return nil, &NetworkError{Op: "fetch", Err: err}
	}
	if int64(len(data)) < expected && rc.l != nil {
		rc.l.Printf("short range read %s [%d-%d]: expected %d bytes, got %d",
			rawURL, start, end, expected, len(data))
	}
	if len(data) == 0 {
		return nil, &NetworkError{Op: "fetch", Err: io.ErrUnexpectedEOF}
	}
	return data, nil
}
