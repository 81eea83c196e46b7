package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/bundlecache"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/specialistvlad/bundlegrid/internal/fetch"
	"github.com/specialistvlad/bundlegrid/internal/loader"
	"github.com/specialistvlad/bundlegrid/internal/manifest"
)

const (
	// DefaultBaseBundle is the reserved name of the bundle carrying the
	// manifest.
	DefaultBaseBundle bundle.Name = "assetbundles"
	// DefaultManifestAsset is the asset inside the base bundle that holds
	// the dependency manifest.
	DefaultManifestAsset = "AssetBundleManifest"
)

var (
	// ErrMissingManifestAsset means the base bundle loaded but did not
	// contain a manifest.
	ErrMissingManifestAsset = errors.New("manifest asset missing from base bundle")
	// ErrNotInitialized is returned by load operations issued before the
	// manifest is loaded.
	ErrNotInitialized = errors.New("resource manager not initialized: manifest not loaded")
)

// Manager owns one bundle cache, the manifest and the loader working on
// them.
type Manager struct {
	fetcher       fetch.Fetcher
	baseURL       string
	baseBundle    bundle.Name
	manifestAsset string
	loaderOpts    []loader.Option
	cache         *bundlecache.Cache

	mu     sync.RWMutex
	loader *loader.Loader
}

// Option configures a Manager.
type Option func(*Manager)

// WithBaseBundle overrides the reserved base bundle name.
func WithBaseBundle(name string) Option {
	return func(m *Manager) {
		if n := bundle.Normalize(name); !n.IsZero() {
			m.baseBundle = n
		}
	}
}

// WithManifestAsset overrides the name of the manifest asset.
func WithManifestAsset(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.manifestAsset = name
		}
	}
}

// WithLoaderOptions passes options through to the loader created once the
// manifest is known.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(m *Manager) {
		m.loaderOpts = append(m.loaderOpts, opts...)
	}
}

// New creates an uninitialized Manager fetching bundles from
// `<baseURL>/<name>`.
func New(f fetch.Fetcher, baseURL string, opts ...Option) *Manager {
	m := &Manager{
		fetcher:       f,
		baseURL:       baseURL,
		baseBundle:    DefaultBaseBundle,
		manifestAsset: DefaultManifestAsset,
		cache:         bundlecache.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache returns the cache backing the manager. Asset lookups read it.
func (m *Manager) Cache() *bundlecache.Cache {
	return m.cache
}

// Manifest returns the loaded manifest, or nil before initialization.
func (m *Manager) Manifest() manifest.Manifest {
	if l := m.current(); l != nil {
		return l.Manifest()
	}
	return nil
}

// Initialized reports whether the manifest has been loaded.
func (m *Manager) Initialized() bool {
	return m.current() != nil
}

// Resident returns the names of the resident bundles.
func (m *Manager) Resident() []bundle.Name {
	return m.cache.Names()
}

func (m *Manager) current() *loader.Loader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loader
}

// Init fetches the base bundle and loads the manifest from it. Calling it
// again after success does nothing.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loader != nil {
		return nil
	}

	uri := fetch.URIFor(m.baseURL, m.baseBundle)
	logger := ctxlog.FromContext(ctx).With("bundle", m.baseBundle, "uri", uri)
	logger.Info("Loading manifest.")

	h, err := m.fetcher.Fetch(ctx, uri)
	if err == nil && h == nil {
		err = errors.New("fetcher returned no bundle")
	}
	if err != nil {
		logger.Error("Error loading asset bundle.", "error", err)
		return fmt.Errorf("base bundle '%s': %w", m.baseBundle, err)
	}

	graph, err := m.readManifest(h)
	if err != nil {
		logger.Error("Error loading manifest.", "asset", m.manifestAsset, "error", err)
		h.Unload(true)
		return fmt.Errorf("base bundle '%s': %w", m.baseBundle, err)
	}

	// A leftover entry can only come from an earlier unconditional unload
	// racing a reload; replace it.
	m.cache.Release(m.baseBundle, true, false)
	if err := m.cache.Insert(m.baseBundle, h); err != nil {
		h.Unload(true)
		return err
	}

	m.loader = loader.New(graph, m.fetcher, m.cache, m.baseURL, m.loaderOpts...)
	logger.Info("Manifest loaded.", "bundles", len(graph.AllBundleNames()))
	return nil
}

// readManifest extracts the manifest asset. It accepts an already decoded
// Manifest or the HCL source as bytes or string.
func (m *Manager) readManifest(h bundle.Handle) (manifest.Manifest, error) {
	v, ok := h.LoadAsset(m.manifestAsset)
	if !ok {
		return nil, fmt.Errorf("asset '%s': %w", m.manifestAsset, ErrMissingManifestAsset)
	}
	switch src := v.(type) {
	case manifest.Manifest:
		return src, nil
	case []byte:
		return manifest.Parse(src, m.manifestAsset)
	case string:
		return manifest.Parse([]byte(src), m.manifestAsset)
	default:
		return nil, fmt.Errorf("asset '%s' has unsupported type %T: %w", m.manifestAsset, v, ErrMissingManifestAsset)
	}
}

// Ensure loads name and its dependencies.
func (m *Manager) Ensure(ctx context.Context, name string) error {
	l := m.current()
	if l == nil {
		return ErrNotInitialized
	}
	return l.EnsureLoaded(ctx, bundle.Normalize(name))
}

// EnsureAll loads every bundle named by the manifest.
func (m *Manager) EnsureAll(ctx context.Context) error {
	l := m.current()
	if l == nil {
		return ErrNotInitialized
	}
	return l.LoadAll(ctx)
}

// Acquire loads name and registers the caller as a holder, to be matched by
// a counted UnloadAsset.
func (m *Manager) Acquire(ctx context.Context, name string) error {
	if err := m.Ensure(ctx, name); err != nil {
		return err
	}
	n, err := m.cache.Retain(bundle.Normalize(name))
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Bundle acquired.", "bundle", bundle.Normalize(name), "holders", n)
	return nil
}

// UnloadAsset releases a bundle. See loader.Loader.Release for the two
// policies. Before initialization only the cache entry itself is released.
func (m *Manager) UnloadAsset(ctx context.Context, name string, unloadAllLoadedObjects, counted bool) {
	n := bundle.Normalize(name)
	if l := m.current(); l != nil {
		l.Release(ctx, n, unloadAllLoadedObjects, counted)
		return
	}
	m.cache.Release(n, unloadAllLoadedObjects, counted)
}

// Close unloads every bundle, base bundle included, and returns the manager
// to the uninitialized state.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	m.loader = nil
	m.mu.Unlock()

	n := m.cache.Len()
	m.cache.Clear(true)
	ctxlog.FromContext(ctx).Debug("Resource manager closed.", "unloaded", n)
}
