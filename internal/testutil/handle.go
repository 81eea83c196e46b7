package testutil

import (
	"sort"
	"sync"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

// Handle is an in-memory bundle.Handle whose assets are plain Go values.
type Handle struct {
	Name bundle.Name

	mu          sync.Mutex
	assets      map[string]any
	unloaded    bool
	unloadAll   bool
	unloadCalls int
}

// NewHandle creates a handle holding a copy of assets.
func NewHandle(name bundle.Name, assets map[string]any) *Handle {
	cp := make(map[string]any, len(assets))
	for k, v := range assets {
		cp[k] = v
	}
	return &Handle{Name: name, assets: cp}
}

// LoadAsset implements bundle.Handle.
func (h *Handle) LoadAsset(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unloaded {
		return nil, false
	}
	v, ok := h.assets[name]
	return v, ok
}

// AssetNames implements bundle.Handle.
func (h *Handle) AssetNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.assets))
	for k := range h.assets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Unload implements bundle.Handle.
func (h *Handle) Unload(unloadAllObjects bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unloaded = true
	h.unloadAll = unloadAllObjects
	h.unloadCalls++
}

// Unloaded reports whether Unload was called and with which flag.
func (h *Handle) Unloaded() (unloaded, unloadAllObjects bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded, h.unloadAll
}

// UnloadCalls returns how many times Unload was called.
func (h *Handle) UnloadCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloadCalls
}
