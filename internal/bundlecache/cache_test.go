package bundlecache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	c := New()
	h := testutil.NewHandle("x", map[string]any{"hero": "model"})

	assert.False(t, c.Contains("x"))
	_, ok := c.Get("x")
	assert.False(t, ok)

	require.NoError(t, c.Insert("x", h))
	assert.True(t, c.Contains("x"))

	entry, ok := c.Get("x")
	require.True(t, ok)
	assert.Equal(t, bundle.Name("x"), entry.Name)
	assert.Same(t, h, entry.Handle)
	assert.Equal(t, 0, entry.Refs())

	got, ok := c.Handle("x")
	require.True(t, ok)
	assert.Same(t, h, got)
}

func TestInsert_Duplicate(t *testing.T) {
	c := New()
	require.NoError(t, c.Insert("x", testutil.NewHandle("x", nil)))

	err := c.Insert("x", testutil.NewHandle("x", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Equal(t, 1, c.Len())
}

func TestInsert_NilHandle(t *testing.T) {
	c := New()
	assert.Error(t, c.Insert("x", nil))
	assert.False(t, c.Contains("x"))
}

func TestRetain_NotCached(t *testing.T) {
	c := New()
	_, err := c.Retain("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelease_Counted(t *testing.T) {
	c := New()
	h := testutil.NewHandle("x", nil)
	require.NoError(t, c.Insert("x", h))

	refs, err := c.Retain("x")
	require.NoError(t, err)
	assert.Equal(t, 1, refs)
	refs, err = c.Retain("x")
	require.NoError(t, err)
	assert.Equal(t, 2, refs)

	// First counted release leaves the bundle resident.
	assert.False(t, c.Release("x", false, true))
	assert.True(t, c.Contains("x"))
	unloaded, _ := h.Unloaded()
	assert.False(t, unloaded)

	// Second counted release unloads it.
	assert.True(t, c.Release("x", true, true))
	assert.False(t, c.Contains("x"))
	unloaded, unloadAll := h.Unloaded()
	assert.True(t, unloaded)
	assert.True(t, unloadAll, "unloadAllObjects must be forwarded untouched")
}

func TestRelease_CountedAtBaseline(t *testing.T) {
	c := New()
	h := testutil.NewHandle("x", nil)
	require.NoError(t, c.Insert("x", h))

	// No holders were ever registered: the counter drops below zero and the
	// bundle is unloaded.
	assert.True(t, c.Release("x", false, true))
	assert.False(t, c.Contains("x"))
	assert.Equal(t, 1, h.UnloadCalls())
}

func TestRelease_Unconditional(t *testing.T) {
	c := New()
	h := testutil.NewHandle("x", nil)
	require.NoError(t, c.Insert("x", h))
	for i := 0; i < 3; i++ {
		_, err := c.Retain("x")
		require.NoError(t, err)
	}

	assert.True(t, c.Release("x", false, false))
	assert.False(t, c.Contains("x"))
	unloaded, unloadAll := h.Unloaded()
	assert.True(t, unloaded)
	assert.False(t, unloadAll)
}

// Mixing policies is a caller-discipline problem: an unconditional release
// removes the bundle even though a counted holder still exists.
func TestRelease_MixedPoliciesUnderUnload(t *testing.T) {
	c := New()
	require.NoError(t, c.Insert("x", testutil.NewHandle("x", nil)))
	_, err := c.Retain("x")
	require.NoError(t, err)
	_, err = c.Retain("x")
	require.NoError(t, err)

	assert.True(t, c.Release("x", false, false))
	assert.False(t, c.Contains("x"), "unconditional release ignores remaining holders")

	// The counted holder's later release is a silent no-op.
	assert.False(t, c.Release("x", false, true))
}

func TestRelease_NotCached(t *testing.T) {
	c := New()
	assert.False(t, c.Release("ghost", true, false))
}

func TestNamesAndClear(t *testing.T) {
	c := New()
	hb := testutil.NewHandle("b", nil)
	ha := testutil.NewHandle("a", nil)
	require.NoError(t, c.Insert("b", hb))
	require.NoError(t, c.Insert("a", ha))

	assert.Equal(t, []bundle.Name{"a", "b"}, c.Names())

	c.Clear(true)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Names())
	assert.Equal(t, 1, ha.UnloadCalls())
	assert.Equal(t, 1, hb.UnloadCalls())
}

// TestCache_ConcurrentInsert verifies that concurrent inserts of the same
// name store exactly one entry.
func TestCache_ConcurrentInsert(t *testing.T) {
	c := New()
	numGoroutines := 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			err := c.Insert("shared", testutil.NewHandle(bundle.Name(fmt.Sprintf("shared-%d", i)), nil))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrDuplicate)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, c.Len())
}

func TestInsertHolding_RecordsOnlyResidentDependencies(t *testing.T) {
	c := New()
	require.NoError(t, c.Insert("shared", testutil.NewHandle("shared", nil)))

	holds, err := c.InsertHolding("hero", testutil.NewHandle("hero", nil), bundle.Names("shared", "missing", "hero"))
	require.NoError(t, err)
	assert.Equal(t, bundle.Names("shared"), holds)

	shared, ok := c.Get("shared")
	require.True(t, ok)
	assert.Equal(t, 1, shared.Refs())

	hero, ok := c.Get("hero")
	require.True(t, ok)
	assert.Equal(t, bundle.Names("shared"), hero.Holds())

	_, err = c.InsertHolding("hero", testutil.NewHandle("hero", nil), nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	shared, _ = c.Get("shared")
	assert.Equal(t, 1, shared.Refs(), "rejected insert takes no holds")

	_, err = c.InsertHolding("other", nil, bundle.Names("shared"))
	assert.Error(t, err)
}

func TestRemove_ReturnsHolds(t *testing.T) {
	c := New()
	require.NoError(t, c.Insert("shared", testutil.NewHandle("shared", nil)))
	_, err := c.InsertHolding("hero", testutil.NewHandle("hero", nil), bundle.Names("shared"))
	require.NoError(t, err)

	e, removed := c.Remove("hero", false, true)
	require.True(t, removed)
	assert.Equal(t, bundle.Names("shared"), e.Holds())

	_, removed = c.Remove("hero", false, true)
	assert.False(t, removed)
}
