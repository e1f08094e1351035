// Package fetch retrieves remote resources for the monitor, either over plain
// HTTP or through a headless browser.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/user/hcaptcha-monitor/internal/proxy"
)

// Fetcher returns the body of a URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// ErrBodyTooLarge is returned when a response body exceeds Options.MaxBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// Options configures an HTTP fetcher.
type Options struct {
	Timeout  time.Duration // Default: 30s.
	MaxBytes int64         // Default: 20MB.
	Proxies  *proxy.Manager
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 20 * 1024 * 1024
	}
	if o.Proxies == nil {
		o.Proxies = proxy.NewManager(nil, nil)
	}
}

// HTTP fetches over net/http with rotated user agents and proxies.
type HTTP struct {
	client *http.Client
	opts   Options
}

// NewHTTP creates an HTTP fetcher. The transport negotiates HTTP/2 when the
// server offers it.
func NewHTTP(opts Options) (*HTTP, error) {
	opts.defaults()
	client, err := NewHTTPClient(opts.Timeout, opts.Proxies)
	if err != nil {
		return nil, err
	}
	return &HTTP{client: client, opts: opts}, nil
}

// NewHTTPClient builds the shared client used for every outbound call.
func NewHTTPClient(timeout time.Duration, proxies *proxy.Manager) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: proxies.ProxyFunc(),
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// Get performs a GET and returns the body. Non-2xx responses are errors.
func (f *HTTP) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if ua := f.opts.Proxies.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrBodyTooLarge, f.opts.MaxBytes)
	}
	return body, nil
}
