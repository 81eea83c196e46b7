package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/bundlecache"
	"github.com/specialistvlad/bundlegrid/internal/manifest"
	"github.com/specialistvlad/bundlegrid/internal/progress"
	"github.com/specialistvlad/bundlegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://cdn.test/bundles"

// mapManifest is a Manifest that performs no validation, so tests can feed
// the loader graphs a Builder would reject.
type mapManifest map[bundle.Name][]bundle.Name

func (m mapManifest) AllBundleNames() []bundle.Name {
	names := make([]bundle.Name, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	// Small test graphs; insertion sort keeps this dependency free.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

func (m mapManifest) DirectDependencies(name bundle.Name) []bundle.Name {
	return m[name]
}

type fixture struct {
	fetcher *testutil.Fetcher
	cache   *bundlecache.Cache
	loader  *Loader
}

func newFixture(t *testing.T, m manifest.Manifest, opts ...Option) *fixture {
	t.Helper()
	f := testutil.NewFetcher(testBase)
	for _, name := range m.AllBundleNames() {
		f.AddBundle(name.String(), map[string]any{"Hero": "hero of " + name.String()})
	}
	c := bundlecache.New()
	return &fixture{fetcher: f, cache: c, loader: New(m, f, c, testBase, opts...)}
}

func chain() mapManifest {
	return mapManifest{"a": {"b"}, "b": {"c"}, "c": nil}
}

func TestEnsureLoaded_Idempotent(t *testing.T) {
	ctx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"x": nil})

	require.NoError(t, fx.loader.EnsureLoaded(ctx, "x"))
	require.NoError(t, fx.loader.EnsureLoaded(ctx, "x"))

	assert.Equal(t, 1, fx.fetcher.CallCount("x"))
}

func TestEnsureLoaded_DependencyOrder(t *testing.T) {
	ctx, _ := testutil.Context(t)
	fx := newFixture(t, chain())

	require.NoError(t, fx.loader.EnsureLoaded(ctx, "a"))

	if diff := cmp.Diff(bundle.Names("c", "b", "a"), fx.fetcher.Calls()); diff != "" {
		t.Errorf("fetch order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, bundle.Names("a", "b", "c"), fx.cache.Names())
}

func TestEnsureLoaded_SharedDependencyFetchedOnce(t *testing.T) {
	ctx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"a": {"c"}, "b": {"c"}, "c": nil})

	require.NoError(t, fx.loader.EnsureLoaded(ctx, "a"))
	require.NoError(t, fx.loader.EnsureLoaded(ctx, "b"))

	assert.Equal(t, 1, fx.fetcher.CallCount("c"))

	// Both dependents hold c.
	e, ok := fx.cache.Get("c")
	require.True(t, ok)
	assert.Equal(t, 2, e.Refs())
}

func TestEnsureLoaded_PartialFailure(t *testing.T) {
	ctx, logs := testutil.Context(t)
	fx := newFixture(t, chain())
	boom := errors.New("connection reset by peer")
	fx.fetcher.Fail("c", boom)

	err := fx.loader.EnsureLoaded(ctx, "a")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, fx.cache.Contains("c"))
	// b and a were still fetched; their cache entries are complete.
	if diff := cmp.Diff(bundle.Names("c", "b", "a"), fx.fetcher.Calls()); diff != "" {
		t.Errorf("fetch order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, bundle.Names("a", "b"), fx.cache.Names())
	e, ok := fx.cache.Get("b")
	require.True(t, ok)
	assert.Equal(t, 1, e.Refs())

	out := logs.String()
	assert.Contains(t, out, "Error loading asset bundle.")
	assert.Contains(t, out, "uri="+testBase+"/c")
}

func TestEnsureLoaded_ContinuesAfterFailedSibling(t *testing.T) {
	ctx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"root": {"bad", "good"}, "bad": nil, "good": nil})
	fx.fetcher.Fail("bad", errors.New("404"))

	err := fx.loader.EnsureLoaded(ctx, "root")

	require.Error(t, err)
	assert.True(t, fx.cache.Contains("good"))
	assert.Equal(t, 1, fx.fetcher.CallCount("good"))
}

func TestEnsureLoaded_StrictSkipsDependents(t *testing.T) {
	ctx, _ := testutil.Context(t)
	var skipped []bundle.Name
	rep := progress.ReporterFunc(func(_ context.Context, ev progress.Event) {
		if ev.Kind == progress.BundleSkipped {
			skipped = append(skipped, ev.Bundle)
		}
	})
	fx := newFixture(t, chain(), WithStrictDependencies(true), WithReporter(rep))
	fx.fetcher.Fail("c", errors.New("404"))

	err := fx.loader.EnsureLoaded(ctx, "a")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyFailed)
	assert.Equal(t, bundle.Names("c"), fx.fetcher.Calls())
	assert.Zero(t, fx.cache.Len())
	assert.Equal(t, bundle.Names("b", "a"), skipped)
}

func TestEnsureLoaded_Cycle(t *testing.T) {
	ctx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"a": {"b"}, "b": {"a"}})

	err := fx.loader.EnsureLoaded(ctx, "a")

	require.Error(t, err)
	var cycleErr *manifest.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, bundle.Names("a", "b", "a"), cycleErr.Path)
	// Terminates, and each bundle is fetched at most once.
	assert.LessOrEqual(t, fx.fetcher.CallCount("a"), 1)
	assert.LessOrEqual(t, fx.fetcher.CallCount("b"), 1)
}

func TestEnsureLoaded_Cancellation(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fx := newFixture(t, chain())
	fx.fetcher.OnFetch = func(name bundle.Name) {
		if name == "c" {
			cancel()
		}
	}

	err := fx.loader.EnsureLoaded(ctx, "a")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, bundle.Names("c"), fx.fetcher.Calls())
	assert.False(t, fx.cache.Contains("a"))
	assert.False(t, fx.cache.Contains("b"))
}

func TestEnsureLoaded_ConcurrentRequestsFetchOnce(t *testing.T) {
	ctx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"x": {"shared"}, "y": {"shared"}, "shared": nil})

	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fx.fetcher.Gate = gate
	fx.fetcher.OnFetch = func(bundle.Name) { once.Do(func() { close(started) }) }

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		root := bundle.Name("x")
		if i%2 == 1 {
			root = "y"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- fx.loader.EnsureLoaded(ctx, root)
		}()
	}

	<-started
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fx.fetcher.CallCount("shared"))
	assert.Equal(t, 1, fx.fetcher.CallCount("x"))
	assert.Equal(t, 1, fx.fetcher.CallCount("y"))
	assert.Equal(t, bundle.Names("shared", "x", "y"), fx.cache.Names())
}

func TestLoadAll_Scenario(t *testing.T) {
	ctx, _ := testutil.Context(t)
	m := mapManifest{"base": nil, "a": {"b"}, "b": {"c"}, "c": nil}
	fx := newFixture(t, m)

	require.NoError(t, fx.loader.LoadAll(ctx))

	calls := fx.fetcher.Calls()
	require.Len(t, calls, 4)
	pos := make(map[bundle.Name]int, len(calls))
	for i, n := range calls {
		pos[n] = i
	}
	assert.Less(t, pos["c"], pos["b"])
	assert.Less(t, pos["b"], pos["a"])
	assert.Contains(t, pos, bundle.Name("base"))
	assert.Equal(t, bundle.Names("a", "b", "base", "c"), fx.cache.Names())
}

func TestLoadAll_AggregatesFailures(t *testing.T) {
	ctx, _ := testutil.Context(t)
	m := mapManifest{"a": nil, "b": nil, "c": nil, "d": nil}
	fx := newFixture(t, m)
	fx.fetcher.Fail("a", errors.New("a is gone"))
	fx.fetcher.Fail("c", errors.New("c is gone"))

	err := fx.loader.LoadAll(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a is gone")
	assert.Contains(t, err.Error(), "c is gone")
	assert.Equal(t, bundle.Names("b", "d"), fx.cache.Names())
}

func TestLoadAll_Parallel(t *testing.T) {
	ctx, _ := testutil.Context(t)
	m := mapManifest{"a": {"core"}, "b": {"core"}, "c": {"core"}, "d": {"core"}, "core": nil}
	fx := newFixture(t, m, WithParallelism(4))

	require.NoError(t, fx.loader.LoadAll(ctx))

	assert.Equal(t, 1, fx.fetcher.CallCount("core"))
	assert.Len(t, fx.fetcher.Calls(), 5)
	e, ok := fx.cache.Get("core")
	require.True(t, ok)
	assert.Equal(t, 4, e.Refs())
}

func TestLoader_ReportsEvents(t *testing.T) {
	ctx, _ := testutil.Context(t)
	var mu sync.Mutex
	var kinds []progress.Kind
	rep := progress.ReporterFunc(func(_ context.Context, ev progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})
	fx := newFixture(t, mapManifest{"x": nil}, WithReporter(rep))

	require.NoError(t, fx.loader.EnsureLoaded(ctx, "x"))
	fx.loader.Release(ctx, "x", false, false)

	assert.Equal(t, []progress.Kind{progress.FetchStarted, progress.BundleLoaded, progress.BundleUnloaded}, kinds)
}

func TestLoader_URI(t *testing.T) {
	l := New(mapManifest{}, testutil.NewFetcher(""), bundlecache.New(), "https://cdn.test/android/")
	assert.Equal(t, "https://cdn.test/android/heroes", l.URI("heroes"))
}

// One caller giving up on a shared fetch must not fail the callers still
// waiting on it.
func TestEnsureLoaded_SharedFetchSurvivesCallerCancellation(t *testing.T) {
	logCtx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"a": nil})

	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fx.fetcher.Gate = gate
	fx.fetcher.OnFetch = func(bundle.Name) { once.Do(func() { close(started) }) }

	ctx1, cancel1 := context.WithCancel(logCtx)
	defer cancel1()
	done1 := make(chan error, 1)
	go func() { done1 <- fx.loader.EnsureLoaded(ctx1, "a") }()
	<-started

	done2 := make(chan error, 1)
	go func() { done2 <- fx.loader.EnsureLoaded(logCtx, "a") }()

	cancel1()
	err1 := <-done1
	require.Error(t, err1)
	assert.ErrorIs(t, err1, context.Canceled)

	close(gate)
	select {
	case err2 := <-done2:
		require.NoError(t, err2)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not complete")
	}
	assert.True(t, fx.cache.Contains("a"))
	assert.Equal(t, bundle.Names("a"), fx.cache.Names())
}

// A cancelled sole waiter releases the shared fetch instead of leaving it
// blocked.
func TestEnsureLoaded_AbandonedFetchIsCancelled(t *testing.T) {
	logCtx, _ := testutil.Context(t)
	fx := newFixture(t, mapManifest{"a": nil})
	fx.fetcher.Gate = make(chan struct{})
	started := make(chan struct{})
	fx.fetcher.OnFetch = func(bundle.Name) { close(started) }

	ctx, cancel := context.WithCancel(logCtx)
	done := make(chan error, 1)
	go func() { done <- fx.loader.EnsureLoaded(ctx, "a") }()
	<-started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Eventually(t, func() bool {
		fx.loader.mu.Lock()
		defer fx.loader.mu.Unlock()
		return len(fx.loader.flights) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, fx.cache.Contains("a"))
}

type emptyFetcher struct{}

func (emptyFetcher) Fetch(context.Context, string) (bundle.Handle, error) {
	return nil, nil
}

func TestEnsureLoaded_FetcherWithoutHandle(t *testing.T) {
	ctx, logs := testutil.Context(t)
	l := New(mapManifest{"a": {"b"}, "b": nil}, emptyFetcher{}, bundlecache.New(), testBase)

	var err error
	require.NotPanics(t, func() { err = l.EnsureLoaded(ctx, "a") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher returned no bundle")
	assert.Zero(t, l.Cache().Len())
	assert.Contains(t, logs.String(), "Error loading asset bundle.")
}
