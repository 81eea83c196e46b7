package loader

import (
	"context"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/specialistvlad/bundlegrid/internal/progress"
)

// Release drops one bundle from the cache.
//
// With counted unset the bundle is unloaded regardless of its holder count.
// With counted set one holder is dropped and the bundle is unloaded only
// when none remain; a bundle removed this way also releases the holds it
// took on its dependencies when it was loaded, which may unload them in
// turn. Dependencies that were not resident at that time were never held
// and are left alone.
// Unconditional releases do not cascade.
//
// Mixing the two policies on the same bundle is the caller's responsibility:
// an unconditional release leaves dependents that still count on the bundle,
// and counted releases issued after it are no-ops.
func (l *Loader) Release(ctx context.Context, name bundle.Name, unloadAllObjects, counted bool) {
	l.release(ctx, name, unloadAllObjects, counted, make(map[bundle.Name]bool))
}

func (l *Loader) release(ctx context.Context, name bundle.Name, unloadAllObjects, counted bool, onPath map[bundle.Name]bool) {
	// A cyclic manifest must not release forever.
	if onPath[name] {
		return
	}
	onPath[name] = true
	defer delete(onPath, name)

	logger := ctxlog.FromContext(ctx).With("bundle", name)
	entry, removed := l.cache.Remove(name, unloadAllObjects, counted)
	if !removed {
		logger.Debug("Bundle still held or not resident.", "counted", counted)
		return
	}
	logger.Info("Bundle unloaded.", "unload_all_objects", unloadAllObjects, "counted", counted)
	l.reporter.Report(ctx, progress.Event{Kind: progress.BundleUnloaded, Bundle: name, URI: l.URI(name)})

	if !counted {
		return
	}
	for _, dep := range entry.Holds() {
		l.release(ctx, dep, unloadAllObjects, true, onPath)
	}
}
