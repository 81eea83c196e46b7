package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/bundlecache"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/specialistvlad/bundlegrid/internal/fetch"
	"github.com/specialistvlad/bundlegrid/internal/manifest"
	"github.com/specialistvlad/bundlegrid/internal/progress"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrDependencyFailed marks a bundle whose own fetch was skipped because a
// dependency could not be loaded. Only returned in strict mode.
var ErrDependencyFailed = errors.New("skipped due to upstream failure")

// Loader resolves and loads bundles against one cache.
type Loader struct {
	manifest manifest.Manifest
	fetcher  fetch.Fetcher
	cache    *bundlecache.Cache
	baseURL  string

	strict      bool
	parallelism int
	reporter    progress.Reporter

	inflight singleflight.Group
	mu       sync.Mutex
	flights  map[bundle.Name]*flight
}

// Option configures a Loader.
type Option func(*Loader)

// WithStrictDependencies skips a bundle's own fetch when any of its
// dependencies failed. By default the bundle is still fetched and the load
// reports failure.
func WithStrictDependencies(strict bool) Option {
	return func(l *Loader) {
		l.strict = strict
	}
}

// WithParallelism lets LoadAll resolve up to n root bundles at once.
func WithParallelism(n int) Option {
	return func(l *Loader) {
		if n < 1 {
			n = 1
		}
		l.parallelism = n
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(l *Loader) {
		if r == nil {
			r = progress.Nop
		}
		l.reporter = r
	}
}

// New creates a Loader. Bundle URIs are `<baseURL>/<name>`.
func New(m manifest.Manifest, f fetch.Fetcher, c *bundlecache.Cache, baseURL string, opts ...Option) *Loader {
	l := &Loader{
		manifest:    m,
		fetcher:     f,
		cache:       c,
		baseURL:     baseURL,
		parallelism: 1,
		reporter:    progress.Nop,
		flights:     make(map[bundle.Name]*flight),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache returns the cache the loader fills.
func (l *Loader) Cache() *bundlecache.Cache {
	return l.cache
}

// Manifest returns the dependency graph the loader walks.
func (l *Loader) Manifest() manifest.Manifest {
	return l.manifest
}

// URI returns the address name is fetched from.
func (l *Loader) URI(name bundle.Name) string {
	return fetch.URIFor(l.baseURL, name)
}

// EnsureLoaded makes name and its transitive dependencies resident. A nil
// result means every bundle in the closure is loaded.
func (l *Loader) EnsureLoaded(ctx context.Context, name bundle.Name) error {
	return l.ensure(ctx, name, nil)
}

// LoadAll ensures every bundle listed by the manifest. Every bundle is
// attempted; the result aggregates all failures.
func (l *Loader) LoadAll(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	names := l.manifest.AllBundleNames()
	logger.Info("Loading all bundles.", "count", len(names), "parallelism", l.parallelism)

	if l.parallelism <= 1 {
		var result *multierror.Error
		for _, name := range names {
			if err := l.EnsureLoaded(ctx, name); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}

	// Plain errgroup (no derived context): one failed bundle must not cancel
	// the others.
	var g errgroup.Group
	g.SetLimit(l.parallelism)
	errs := make([]error, len(names))
	for i, name := range names {
		g.Go(func() error {
			errs[i] = l.EnsureLoaded(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ensure is the recursive step. path holds the bundles currently being
// resolved by this call chain, outermost first.
func (l *Loader) ensure(ctx context.Context, name bundle.Name, path []bundle.Name) error {
	if l.cache.Contains(name) {
		return nil
	}
	for _, p := range path {
		if p == name {
			cycle := append(append([]bundle.Name{}, trimTo(path, name)...), name)
			return &manifest.CycleError{Path: cycle}
		}
	}
	path = append(path, name)

	var result *multierror.Error
	for _, dep := range l.manifest.DirectDependencies(name) {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			return result.ErrorOrNil()
		}
		if l.cache.Contains(dep) {
			continue
		}
		if err := l.ensure(ctx, dep, path); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if result != nil && l.strict {
		err := fmt.Errorf("bundle '%s': %w", name, ErrDependencyFailed)
		l.reporter.Report(ctx, progress.Event{Kind: progress.BundleSkipped, Bundle: name, Err: err})
		return multierror.Append(result, err).ErrorOrNil()
	}

	if err := ctx.Err(); err != nil {
		return multierror.Append(result, err).ErrorOrNil()
	}
	if err := l.load(ctx, name); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// maxFlightRetries bounds how often a caller rejoins a fetch after the
// shared attempt was cancelled by the callers that started it.
const maxFlightRetries = 3

// flight is the context shared by every caller waiting on one fetch. It is
// detached from each caller's cancellation and cancelled only when the last
// waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// join registers ctx as a waiter on the flight for name, starting one if
// needed. The returned func must be called once the caller stops waiting.
func (l *Loader) join(ctx context.Context, name bundle.Name) (context.Context, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.flights[name]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		l.flights[name] = f
	}
	f.waiters++

	return f.ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		f.waiters--
		if f.waiters == 0 {
			f.cancel()
			if l.flights[name] == f {
				delete(l.flights, name)
			}
		}
	}
}

// load fetches one bundle and inserts it. Concurrent calls for the same name
// share a single fetch; each caller stops waiting when its own ctx is done
// without failing the others.
func (l *Loader) load(ctx context.Context, name bundle.Name) error {
	for attempt := 0; ; attempt++ {
		if l.cache.Contains(name) {
			return nil
		}

		fctx, leave := l.join(ctx, name)
		ch := l.inflight.DoChan(name.String(), func() (any, error) {
			return nil, l.fetchAndInsert(fctx, name)
		})

		select {
		case res := <-ch:
			leave()
			// The shared attempt ran on a flight every other waiter had
			// abandoned. This caller is still live, so try again.
			if res.Err != nil && errors.Is(res.Err, context.Canceled) && ctx.Err() == nil && attempt < maxFlightRetries {
				continue
			}
			return res.Err
		case <-ctx.Done():
			leave()
			return fmt.Errorf("bundle '%s': %w", name, ctx.Err())
		}
	}
}

func (l *Loader) fetchAndInsert(ctx context.Context, name bundle.Name) error {
	if l.cache.Contains(name) {
		return nil
	}

	uri := l.URI(name)
	logger := ctxlog.FromContext(ctx).With("bundle", name, "uri", uri)
	logger.Debug("Loading bundle.")
	l.reporter.Report(ctx, progress.Event{Kind: progress.FetchStarted, Bundle: name, URI: uri})

	h, err := l.fetcher.Fetch(ctx, uri)
	if err == nil && h == nil {
		err = errors.New("fetcher returned no bundle")
	}
	if err != nil {
		logger.Error("Error loading asset bundle.", "error", err)
		l.reporter.Report(ctx, progress.Event{Kind: progress.BundleFailed, Bundle: name, URI: uri, Err: err})
		return fmt.Errorf("bundle '%s': %w", name, err)
	}

	// The new bundle becomes a holder of each dependency resident right now.
	holds, err := l.cache.InsertHolding(name, h, l.manifest.DirectDependencies(name))
	if err != nil {
		// Unreachable while every insert goes through this group.
		h.Unload(true)
		return err
	}

	logger.Info("Bundle loaded.", "holds", holds)
	l.reporter.Report(ctx, progress.Event{Kind: progress.BundleLoaded, Bundle: name, URI: uri})
	return nil
}

// trimTo returns the suffix of path starting at the first occurrence of name.
func trimTo(path []bundle.Name, name bundle.Name) []bundle.Name {
	for i, p := range path {
		if p == name {
			return path[i:]
		}
	}
	return path
}
