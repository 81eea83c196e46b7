// Package bundlecache is the single source of truth for which bundles are
// resident in memory.
//
// Each entry pairs a bundle handle with a reference counter. An entry exists
// if and only if its bundle is loaded; there is never more than one entry per
// name. Two release policies operate on the same entry:
//
//   - counted release decrements the counter and unloads at zero or below;
//   - unconditional release unloads immediately, whatever the counter says.
//
// Mixing both policies on one bundle from different callers can unload a
// bundle that a counted holder still expects to be resident. Callers must
// agree on one policy per bundle.
package bundlecache
