package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeout bounds dialing and the TLS handshake.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultTransferTimeout bounds a whole download, body included.
	DefaultTransferTimeout = 10 * time.Minute
)

const (
	etagPrefix         = "etag:"
	lastModifiedPrefix = "lm:"
)

// HTTPSource downloads the database with conditional GET requests.
type HTTPSource struct {
	url             *url.URL
	client          *http.Client
	transferTimeout time.Duration
	userAgent       string
	headers         map[string]string
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	client          *http.Client
	connectTimeout  time.Duration
	transferTimeout time.Duration
	userAgent       string
	headers         map[string]string
}

// WithHTTPClient replaces the default client. The connect timeout is then
// the client's business.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(o *httpOptions) {
		if client != nil {
			o.client = client
		}
	}
}

func WithConnectTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

func WithTransferTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		if d > 0 {
			o.transferTimeout = d
		}
	}
}

func WithUserAgent(ua string) HTTPOption {
	return func(o *httpOptions) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithRequestHeader adds a header to every request, e.g. an auth token.
func WithRequestHeader(name, value string) HTTPOption {
	return func(o *httpOptions) {
		if name != "" {
			o.headers[name] = value
		}
	}
}

// NewHTTPSource returns a source for an http or https URL.
func NewHTTPSource(rawURL string, opts ...HTTPOption) (*HTTPSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidLocation, rawURL)
	}

	o := &httpOptions{
		connectTimeout:  DefaultConnectTimeout,
		transferTimeout: DefaultTransferTimeout,
		userAgent:       "devicekit-updater/1.0",
		headers:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		dialer := &net.Dialer{Timeout: o.connectTimeout, KeepAlive: 30 * time.Second}
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: o.connectTimeout,
				MaxIdleConns:        4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &HTTPSource{
		url:             u,
		client:          client,
		transferTimeout: o.transferTimeout,
		userAgent:       o.userAgent,
		headers:         o.headers,
	}, nil
}

// Fetch issues a GET, conditional on current when it came from this source.
// The transfer timeout keeps running while the caller reads the body.
func (s *HTTPSource) Fetch(ctx context.Context, current string) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, s.transferTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	switch {
	case strings.HasPrefix(current, etagPrefix):
		req.Header.Set("If-None-Match", strings.TrimPrefix(current, etagPrefix))
	case strings.HasPrefix(current, lastModifiedPrefix):
		req.Header.Set("If-Modified-Since", strings.TrimPrefix(current, lastModifiedPrefix))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		cancel()
		return nil, classifyStatus(resp.StatusCode, s.String())
	}

	fp := ""
	if etag := resp.Header.Get("ETag"); etag != "" {
		fp = etagPrefix + etag
	} else if lm := resp.Header.Get("Last-Modified"); lm != "" {
		fp = lastModifiedPrefix + lm
	}
	if fp != "" && fp == current {
		// Server ignored the condition but the file is the same.
		_ = resp.Body.Close()
		cancel()
		return nil, ErrNotModified
	}

	var modTime time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		modTime, _ = http.ParseTime(lm)
	}

	return &Payload{
		Body:        &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel},
		Fingerprint: fp,
		ModTime:     modTime,
		Size:        resp.ContentLength,
	}, nil
}

// String omits credentials and the query string.
func (s *HTTPSource) String() string {
	u := *s.url
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func classifyStatus(code int, src string) error {
	switch {
	case code == http.StatusNotModified:
		return ErrNotModified
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: %s returned %d", ErrNotFound, src, code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", ErrAccessDenied, src, code)
	default:
		return fmt.Errorf("%w: %s returned %d", ErrUnreachable, src, code)
	}
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
