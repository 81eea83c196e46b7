// Package progress carries loader events to interested parties: the log, a
// loading screen, or a remote live-ops dashboard.
package progress

import (
	"context"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
)

// Kind identifies a loader event.
type Kind string

const (
	FetchStarted   Kind = "fetch_started"
	BundleLoaded   Kind = "bundle_loaded"
	BundleFailed   Kind = "bundle_failed"
	BundleSkipped  Kind = "bundle_skipped"
	BundleUnloaded Kind = "bundle_unloaded"
)

// Event describes one step of a load or unload.
type Event struct {
	Kind   Kind
	Bundle bundle.Name
	URI    string
	Err    error
}

// Reporter receives loader events. Implementations must be safe for
// concurrent use and must not block for long.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, ev Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Nop discards every event.
var Nop Reporter = ReporterFunc(func(context.Context, Event) {})

// Log writes events to the logger carried by the context.
type Log struct{}

// Report implements Reporter.
func (Log) Report(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	switch ev.Kind {
	case BundleFailed:
		// The loader already logs failures at error level.
		logger.Debug("Bundle failed to load.", "bundle", ev.Bundle, "uri", ev.URI, "error", ev.Err)
	case BundleSkipped:
		logger.Warn("Bundle skipped due to upstream failure.", "bundle", ev.Bundle, "error", ev.Err)
	default:
		logger.Debug("Loader event.", "event", string(ev.Kind), "bundle", ev.Bundle, "uri", ev.URI)
	}
}

// Multi fans events out to several reporters in order.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, ev)
		}
	}
}
