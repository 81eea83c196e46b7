package fetch

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Provider binds a Getter to the URI schemes it serves.
type Provider struct {
	Schemes []string
	Getter  Getter
}

// Provides reports whether the provider serves scheme.
func (p Provider) Provides(scheme string) bool {
	return slices.Contains(p.Schemes, scheme)
}

// Router is a Getter that dispatches on the URI scheme. URIs without a
// scheme are treated as `file`.
type Router []Provider

// DefaultRouter serves http and https through httpGetter and file URIs and
// bare paths from the local disk.
func DefaultRouter(httpGetter Getter) Router {
	return Router{
		{Schemes: []string{"http", "https"}, Getter: httpGetter},
		{Schemes: []string{"file"}, Getter: FileGetter{}},
	}
}

// ByScheme returns the getter registered for scheme.
func (r Router) ByScheme(scheme string) (Getter, error) {
	for _, p := range r {
		if p.Provides(scheme) {
			return p.Getter, nil
		}
	}
	return nil, fmt.Errorf("scheme %q not supported", scheme)
}

// Get implements Getter.
func (r Router) Get(ctx context.Context, uri string) ([]byte, error) {
	scheme := schemeOf(uri)
	g, err := r.ByScheme(scheme)
	if err != nil {
		return nil, &TransportError{URI: uri, Kind: KindNetwork, Err: err}
	}
	return g.Get(ctx, uri)
}

func schemeOf(uri string) string {
	u, err := url.Parse(uri)
	// Single letter schemes are Windows drive letters.
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
