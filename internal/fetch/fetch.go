package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"golang.org/x/time/rate"
)

var errNoHandle = errors.New("decoder returned no bundle")

// Fetcher performs one retrieval of one bundle.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (bundle.Handle, error)
}

// Getter moves the raw bytes behind a URI.
type Getter interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// GetterFunc adapts a function to the Getter interface.
type GetterFunc func(ctx context.Context, uri string) ([]byte, error)

// Get implements Getter.
func (f GetterFunc) Get(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// Client is the Fetcher used in production: it gets bytes through a Getter
// and decodes them with a bundle.Decoder.
type Client struct {
	getter  Getter
	decoder bundle.Decoder
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outgoing requests to rps per second with the given
// burst. A non-positive rps leaves requests unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a Client.
func NewClient(getter Getter, decoder bundle.Decoder, opts ...Option) *Client {
	c := &Client{getter: getter, decoder: decoder}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, uri string) (bundle.Handle, error) {
	logger := ctxlog.FromContext(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch %s: rate limiter: %w", uri, err)
		}
	}

	logger.Debug("Fetching bundle bytes.", "uri", uri)
	data, err := c.getter.Get(ctx, uri)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{URI: uri, Kind: KindNetwork, Err: err}
	}
	logger.Debug("Fetched bundle bytes.", "uri", uri, "size", len(data))

	h, err := c.decoder.Decode(ctx, nameFromURI(uri), data)
	if err != nil {
		return nil, &TransportError{URI: uri, Kind: KindDecode, Err: err}
	}
	if h == nil {
		return nil, &TransportError{URI: uri, Kind: KindDecode, Err: errNoHandle}
	}
	return h, nil
}

// URIFor joins the bundle base URL and a bundle name as `<base>/<name>`.
func URIFor(baseURL string, name bundle.Name) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return name.String()
	}
	return base + "/" + name.String()
}

// nameFromURI returns the last path element of uri, used to label decoded
// handles.
func nameFromURI(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
