package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"
)

// HTTPGetter fetches bundles over http and https. The underlying client is
// shared by all fetches to reuse TCP connections.
type HTTPGetter struct {
	httpClient *http.Client
	client     *resty.Client
}

// HTTPOption configures an HTTPGetter.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	timeout   time.Duration
	userAgent string
	headers   map[string]string
}

// WithTimeout bounds every request. Zero means no timeout beyond the
// caller's context.
func WithTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) {
		o.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(o *httpOptions) {
		o.userAgent = ua
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(o *httpOptions) {
		o.headers[key] = value
	}
}

// NewHTTPGetter creates an HTTPGetter.
func NewHTTPGetter(opts ...HTTPOption) *HTTPGetter {
	o := &httpOptions{
		userAgent: "bundlegrid",
		headers:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	client := resty.NewWithClient(httpClient)
	if o.timeout > 0 {
		client.SetTimeout(o.timeout)
	}
	client.SetHeader("User-Agent", o.userAgent)
	for k, v := range o.headers {
		client.SetHeader(k, v)
	}

	return &HTTPGetter{httpClient: httpClient, client: client}
}

// Get implements Getter.
func (g *HTTPGetter) Get(ctx context.Context, uri string) ([]byte, error) {
	resp, err := g.client.R().SetContext(ctx).Get(uri)
	if err != nil {
		return nil, &TransportError{URI: uri, Kind: KindNetwork, Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{
			URI:        uri,
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}
	return resp.Bytes(), nil
}

// Close releases idle connections.
func (g *HTTPGetter) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
