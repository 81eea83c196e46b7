package manifest

import (
	"fmt"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

// Builder accumulates bundles and edges before they are frozen into a Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	deps map[bundle.Name]map[bundle.Name]struct{}
}

// NewBuilder creates and returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		deps: make(map[bundle.Name]map[bundle.Name]struct{}),
	}
}

// AddBundle registers a bundle. Adding the same bundle twice does nothing.
func (b *Builder) AddBundle(name bundle.Name) error {
	if name.IsZero() {
		return fmt.Errorf("bundle name must not be empty")
	}
	if _, ok := b.deps[name]; !ok {
		b.deps[name] = make(map[bundle.Name]struct{})
	}
	return nil
}

// AddDependency records that `from` depends on `to`. Both bundles are
// registered if they are not known yet.
func (b *Builder) AddDependency(from, to bundle.Name) error {
	if from == to {
		return fmt.Errorf("self-referential dependency not allowed: %s -> %s", from, to)
	}
	if err := b.AddBundle(from); err != nil {
		return err
	}
	if err := b.AddBundle(to); err != nil {
		return err
	}
	b.deps[from][to] = struct{}{}
	return nil
}

// Build freezes the accumulated bundles into a Graph. It fails with a
// *CycleError when the dependencies are not acyclic.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		nodes: make(map[bundle.Name]*node, len(b.deps)),
		names: make([]bundle.Name, 0, len(b.deps)),
	}
	for name := range b.deps {
		g.nodes[name] = &node{name: name}
		g.names = append(g.names, name)
	}
	sortNames(g.names)

	for _, name := range g.names {
		n := g.nodes[name]
		for dep := range b.deps[name] {
			n.deps = append(n.deps, dep)
			g.nodes[dep].dependents = append(g.nodes[dep].dependents, name)
		}
	}
	for _, n := range g.nodes {
		sortNames(n.deps)
		sortNames(n.dependents)
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// detectCycles runs a depth-first search with a temporary (on the current
// path) and a permanent (fully explored) mark per node.
func (g *Graph) detectCycles() error {
	permanent := make(map[bundle.Name]bool)
	temporary := make(map[bundle.Name]bool)
	var path []bundle.Name

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.name] {
			return nil
		}
		if temporary[n.name] {
			return &CycleError{Path: cyclePath(path, n.name)}
		}

		temporary[n.name] = true
		path = append(path, n.name)
		for _, dep := range n.deps {
			if err := visit(g.nodes[dep]); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(temporary, n.name)
		permanent[n.name] = true
		return nil
	}

	for _, name := range g.names {
		if err := visit(g.nodes[name]); err != nil {
			return err
		}
	}
	return nil
}
