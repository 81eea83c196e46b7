package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

// Manifest is the read-only view of the bundle dependency graph used by the
// loader.
type Manifest interface {
	// AllBundleNames returns every packaged bundle once, in a stable order.
	AllBundleNames() []bundle.Name
	// DirectDependencies returns the bundles the named bundle depends on
	// directly. Unknown names and leaf bundles yield an empty slice.
	DirectDependencies(name bundle.Name) []bundle.Name
}

// CycleError reports a dependency cycle. Path starts and ends with the same
// bundle.
type CycleError struct {
	Path []bundle.Name
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, n := range e.Path {
		parts[i] = n.String()
	}
	return fmt.Sprintf("cycle detected: %s", strings.Join(parts, " -> "))
}

// Graph is an immutable Manifest. Build one with a Builder.
type Graph struct {
	nodes map[bundle.Name]*node
	names []bundle.Name
}

// node represents a single bundle in the graph.
type node struct {
	name bundle.Name
	// deps holds the bundles this bundle depends on.
	deps []bundle.Name
	// dependents holds the bundles that depend on this bundle.
	dependents []bundle.Name
}

// AllBundleNames implements Manifest. Names are sorted.
func (g *Graph) AllBundleNames() []bundle.Name {
	out := make([]bundle.Name, len(g.names))
	copy(out, g.names)
	return out
}

// DirectDependencies implements Manifest. Names are sorted.
func (g *Graph) DirectDependencies(name bundle.Name) []bundle.Name {
	n, ok := g.nodes[name]
	if !ok {
		return []bundle.Name{}
	}
	out := make([]bundle.Name, len(n.deps))
	copy(out, n.deps)
	return out
}

// Dependents returns the bundles that directly depend on name.
func (g *Graph) Dependents(name bundle.Name) []bundle.Name {
	n, ok := g.nodes[name]
	if !ok {
		return []bundle.Name{}
	}
	out := make([]bundle.Name, len(n.dependents))
	copy(out, n.dependents)
	return out
}

// Has reports whether the bundle is part of the manifest.
func (g *Graph) Has(name bundle.Name) bool {
	_, ok := g.nodes[name]
	return ok
}

// Len returns the number of bundles in the manifest.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Closure returns the transitive dependency closure of name in load order:
// every bundle appears after all of its dependencies, and name comes last.
func Closure(m Manifest, name bundle.Name) ([]bundle.Name, error) {
	var order []bundle.Name
	done := make(map[bundle.Name]bool)
	onPath := make(map[bundle.Name]bool)
	var path []bundle.Name

	var visit func(n bundle.Name) error
	visit = func(n bundle.Name) error {
		if done[n] {
			return nil
		}
		if onPath[n] {
			return &CycleError{Path: cyclePath(path, n)}
		}
		onPath[n] = true
		path = append(path, n)
		for _, dep := range m.DirectDependencies(n) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(onPath, n)
		done[n] = true
		order = append(order, n)
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}
	return order, nil
}

// cyclePath cuts the recursion path at the first occurrence of the repeated
// bundle and closes the loop.
func cyclePath(path []bundle.Name, repeated bundle.Name) []bundle.Name {
	for i, n := range path {
		if n == repeated {
			out := make([]bundle.Name, 0, len(path)-i+1)
			out = append(out, path[i:]...)
			return append(out, repeated)
		}
	}
	return []bundle.Name{repeated, repeated}
}

func sortNames(names []bundle.Name) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}
