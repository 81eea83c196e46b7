package bundlecache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

var (
	// ErrDuplicate is returned by Insert when the name is already cached.
	ErrDuplicate = errors.New("bundle already cached")
	// ErrNotFound is returned when an operation targets a name with no entry.
	ErrNotFound = errors.New("bundle not cached")
)

// Entry is the cache record for one resident bundle.
type Entry struct {
	Name   bundle.Name
	Handle bundle.Handle
	// refs is the number of logical holders. It starts at zero.
	refs int
	// holds lists the bundles this entry retained when it was inserted.
	holds []bundle.Name
}

// Refs returns the holder count at the time the entry was read.
func (e Entry) Refs() int {
	return e.refs
}

// Holds returns the bundles this entry is a holder of.
func (e Entry) Holds() []bundle.Name {
	out := make([]bundle.Name, len(e.holds))
	copy(out, e.holds)
	return out
}

// Cache maps bundle names to resident entries. All methods are safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[bundle.Name]*Entry
}

// New creates a new, empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[bundle.Name]*Entry),
	}
}

// Contains reports whether the bundle is resident.
func (c *Cache) Contains(name bundle.Name) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[name]
	return ok
}

// Get returns a snapshot of the entry for name.
func (c *Cache) Get(name bundle.Name) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Handle returns the loaded handle for name.
func (c *Cache) Handle(name bundle.Name) (bundle.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return e.Handle, true
}

// Insert stores a freshly loaded bundle. It fails with ErrDuplicate if the
// name is already cached; the caller keeps ownership of the rejected handle.
func (c *Cache) Insert(name bundle.Name, h bundle.Handle) error {
	if h == nil {
		return fmt.Errorf("bundle '%s': nil handle", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		return fmt.Errorf("bundle '%s': %w", name, ErrDuplicate)
	}
	c.entries[name] = &Entry{Name: name, Handle: h}
	return nil
}

// InsertHolding stores a freshly loaded bundle and, in the same step, makes
// it a holder of every bundle in deps that is resident. Only those are
// recorded and returned; Remove hands them back so the holds can be dropped
// again.
func (c *Cache) InsertHolding(name bundle.Name, h bundle.Handle, deps []bundle.Name) ([]bundle.Name, error) {
	if h == nil {
		return nil, fmt.Errorf("bundle '%s': nil handle", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		return nil, fmt.Errorf("bundle '%s': %w", name, ErrDuplicate)
	}
	var holds []bundle.Name
	for _, dep := range deps {
		d, ok := c.entries[dep]
		if !ok || dep == name {
			continue
		}
		d.refs++
		holds = append(holds, dep)
	}
	c.entries[name] = &Entry{Name: name, Handle: h, holds: holds}

	out := make([]bundle.Name, len(holds))
	copy(out, holds)
	return out, nil
}

// Retain registers one more logical holder and returns the new count.
func (c *Cache) Retain(name bundle.Name) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return 0, fmt.Errorf("bundle '%s': %w", name, ErrNotFound)
	}
	e.refs++
	return e.refs, nil
}

// Release drops a bundle. With counted set, the holder count is decremented
// and the bundle is only unloaded once it reaches zero or below; otherwise it
// is unloaded unconditionally. unloadAllObjects is passed to the handle as
// is. The result reports whether the entry was removed. Releasing a name
// that is not cached is a no-op.
func (c *Cache) Release(name bundle.Name, unloadAllObjects, counted bool) bool {
	_, removed := c.Remove(name, unloadAllObjects, counted)
	return removed
}

// Remove is Release returning a snapshot of the removed entry, so the caller
// can drop the holds it recorded.
func (c *Cache) Remove(name bundle.Name, unloadAllObjects, counted bool) (Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		c.mu.Unlock()
		return Entry{}, false
	}
	if counted {
		e.refs--
		if e.refs > 0 {
			c.mu.Unlock()
			return Entry{}, false
		}
	}
	delete(c.entries, name)
	c.mu.Unlock()

	// Unload outside the lock; the handle may call back into the engine.
	e.Handle.Unload(unloadAllObjects)
	return *e, true
}

// Names returns the resident bundle names, sorted.
func (c *Cache) Names() []bundle.Name {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]bundle.Name, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of resident bundles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear unloads every resident bundle and empties the cache.
func (c *Cache) Clear(unloadAllObjects bool) {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[bundle.Name]*Entry)
	c.mu.Unlock()

	for _, e := range entries {
		e.Handle.Unload(unloadAllObjects)
	}
}
