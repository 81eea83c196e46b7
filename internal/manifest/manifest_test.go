package manifest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, edges map[string][]string) *Graph {
	t.Helper()
	b := NewBuilder()
	for from, deps := range edges {
		require.NoError(t, b.AddBundle(bundle.Normalize(from)))
		for _, to := range deps {
			require.NoError(t, b.AddDependency(bundle.Normalize(from), bundle.Normalize(to)))
		}
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestBuilder_AddBundle(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddBundle("a"))
	require.NoError(t, b.AddBundle("a")) // idempotent
	require.NoError(t, b.AddBundle("b"))

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	assert.Error(t, b.AddBundle(""))
}

func TestBuilder_AddDependency(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.AddDependency("a", "b")) // a depends on b

		g, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []bundle.Name{"b"}, g.DirectDependencies("a"))
		assert.Equal(t, []bundle.Name{"a"}, g.Dependents("b"))
		assert.True(t, g.Has("b"), "target bundle should be registered implicitly")
	})

	t.Run("self reference is rejected", func(t *testing.T) {
		b := NewBuilder()
		err := b.AddDependency("a", "a")
		assert.ErrorContains(t, err, "self-referential")
	})
}

func TestGraph_Queries(t *testing.T) {
	g := mustBuild(t, map[string][]string{
		"A": {"B", "C"},
		"B": {"C"},
		"C": nil,
	})

	assert.Equal(t, []bundle.Name{"a", "b", "c"}, g.AllBundleNames())
	assert.Equal(t, []bundle.Name{"b", "c"}, g.DirectDependencies("a"))
	assert.Empty(t, g.DirectDependencies("c"))
	assert.Empty(t, g.DirectDependencies("unknown"))
	assert.Equal(t, []bundle.Name{"a", "b"}, g.Dependents("c"))

	// Returned slices are copies.
	deps := g.DirectDependencies("a")
	deps[0] = "mutated"
	assert.Equal(t, []bundle.Name{"b", "c"}, g.DirectDependencies("a"))
}

func TestBuild_DetectCycles(t *testing.T) {
	t.Run("valid dag has no cycles", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.AddDependency("a", "b"))
		require.NoError(t, b.AddDependency("b", "c"))
		require.NoError(t, b.AddDependency("a", "c")) // Transitive edge
		require.NoError(t, b.AddDependency("c", "d"))
		_, err := b.Build()
		assert.NoError(t, err)
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.AddDependency("a", "b"))
		require.NoError(t, b.AddDependency("b", "a"))
		_, err := b.Build()

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []bundle.Name{"a", "b", "a"}, cycleErr.Path)
		assert.ErrorContains(t, err, "cycle detected: a -> b -> a")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		b := NewBuilder()
		require.NoError(t, b.AddDependency("a", "b"))
		require.NoError(t, b.AddDependency("x", "y"))
		require.NoError(t, b.AddDependency("y", "z"))
		require.NoError(t, b.AddDependency("z", "y"))
		_, err := b.Build()
		assert.ErrorContains(t, err, "cycle detected: y -> z -> y")
	})
}

func TestClosure_LoadOrder(t *testing.T) {
	g := mustBuild(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"d": {"c"},
	})

	order, err := Closure(g, "a")
	require.NoError(t, err)
	if diff := cmp.Diff([]bundle.Name{"c", "b", "a"}, order); diff != "" {
		t.Errorf("closure order mismatch (-want +got):\n%s", diff)
	}

	order, err = Closure(g, "unknown")
	require.NoError(t, err)
	assert.Equal(t, []bundle.Name{"unknown"}, order)
}

// cyclicManifest is a hand-written Manifest that bypasses Builder validation.
type cyclicManifest map[bundle.Name][]bundle.Name

func (m cyclicManifest) AllBundleNames() []bundle.Name {
	var out []bundle.Name
	for k := range m {
		out = append(out, k)
	}
	sortNames(out)
	return out
}

func (m cyclicManifest) DirectDependencies(name bundle.Name) []bundle.Name {
	return m[name]
}

func TestClosure_CycleInForeignManifest(t *testing.T) {
	m := cyclicManifest{"a": {"b"}, "b": {"c"}, "c": {"b"}}
	_, err := Closure(m, "a")
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []bundle.Name{"b", "c", "b"}, cycleErr.Path)
}
