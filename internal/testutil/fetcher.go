package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

// Fetcher is a recording in-memory fetcher. Bundles are addressed as
// `<Base>/<name>`; unknown names fail like a 404 would.
type Fetcher struct {
	Base string

	// Gate, when set, blocks every fetch until a value is received or the
	// context is done.
	Gate chan struct{}
	// OnFetch, when set, is called with each requested name before the
	// fetch resolves.
	OnFetch func(name bundle.Name)

	mu       sync.Mutex
	bundles  map[bundle.Name]map[string]any
	failures map[bundle.Name]error
	calls    []bundle.Name
	handles  map[bundle.Name]*Handle
}

// NewFetcher creates an empty fetcher serving bundles under base.
func NewFetcher(base string) *Fetcher {
	return &Fetcher{
		Base:     base,
		bundles:  make(map[bundle.Name]map[string]any),
		failures: make(map[bundle.Name]error),
		handles:  make(map[bundle.Name]*Handle),
	}
}

// AddBundle serves a bundle with the given assets.
func (f *Fetcher) AddBundle(name string, assets map[string]any) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bundles[bundle.Normalize(name)] = assets
	return f
}

// Fail makes every fetch of name return err.
func (f *Fetcher) Fail(name string, err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[bundle.Normalize(name)] = err
	return f
}

// Heal clears a failure set by Fail.
func (f *Fetcher) Heal(name string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, bundle.Normalize(name))
	return f
}

// URI returns the address the fetcher serves name under.
func (f *Fetcher) URI(name string) string {
	return f.Base + "/" + string(bundle.Normalize(name))
}

// Fetch implements fetch.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (bundle.Handle, error) {
	name := bundle.Normalize(strings.TrimPrefix(uri, f.Base))

	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if f.OnFetch != nil {
		f.OnFetch(name)
	}

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[name]; ok {
		return nil, err
	}
	assets, ok := f.bundles[name]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404 Not Found", uri)
	}
	h := NewHandle(name, assets)
	f.handles[name] = h
	return h, nil
}

// Calls returns the fetched names in call order.
func (f *Fetcher) Calls() []bundle.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bundle.Name, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times name was fetched.
func (f *Fetcher) CallCount(name string) int {
	target := bundle.Normalize(name)
	n := 0
	for _, c := range f.Calls() {
		if c == target {
			n++
		}
	}
	return n
}

// Handle returns the most recent handle produced for name.
func (f *Fetcher) Handle(name string) *Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[bundle.Normalize(name)]
}
