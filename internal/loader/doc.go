// Package loader makes a bundle and its transitive dependencies resident.
//
// EnsureLoaded walks the manifest depth first. Every dependency finishes,
// successfully or not, before the bundle that needs it is fetched, so each
// bundle is loaded after its whole dependency closure without an explicit
// topological sort. The cache doubles as the memo table: a resident bundle
// is never fetched again.
//
// The walk carries the chain of bundles currently being resolved. Meeting a
// bundle that is already on the chain is a cycle and fails that branch
// instead of recursing forever.
//
// Failures do not short-circuit. Remaining dependencies are still attempted
// and all errors are aggregated, so one missing bundle degrades a batch load
// instead of aborting it.
//
// The loader is safe for concurrent use. Fetch and insert of a given name go
// through a singleflight group, so concurrent requests for the same bundle
// share one fetch and the cache never sees a duplicate insert. The shared
// fetch runs on a context owned by all of its waiters; a caller that gives up
// leaves the fetch to the others.
package loader
