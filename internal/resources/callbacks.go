package resources

import (
	"context"
)

// LoadManifest runs Init and reports success to done.
func (m *Manager) LoadManifest(ctx context.Context, done func(bool)) {
	report(done, m.Init(ctx))
}

// LoadBundle runs Ensure and reports success to done.
func (m *Manager) LoadBundle(ctx context.Context, name string, done func(bool)) {
	report(done, m.Ensure(ctx, name))
}

// LoadAllBundles runs EnsureAll and reports success to done.
func (m *Manager) LoadAllBundles(ctx context.Context, done func(bool)) {
	report(done, m.EnsureAll(ctx))
}

// GoLoadManifest is LoadManifest on a new goroutine.
func (m *Manager) GoLoadManifest(ctx context.Context, done func(bool)) {
	go m.LoadManifest(ctx, done)
}

// GoLoadBundle is LoadBundle on a new goroutine.
func (m *Manager) GoLoadBundle(ctx context.Context, name string, done func(bool)) {
	go m.LoadBundle(ctx, name, done)
}

// GoLoadAllBundles is LoadAllBundles on a new goroutine.
func (m *Manager) GoLoadAllBundles(ctx context.Context, done func(bool)) {
	go m.LoadAllBundles(ctx, done)
}

func report(done func(bool), err error) {
	if done != nil {
		done(err == nil)
	}
}
