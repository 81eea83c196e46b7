// Package resources is the service object a client process constructs once
// and passes to whoever needs bundles.
//
// A Manager starts uninitialized. LoadManifest fetches the base bundle,
// reads the dependency manifest out of it and keeps the base bundle resident
// as an ordinary cache entry. Only then can bundles be loaded.
//
// Every load operation comes in two forms. The error-returning form
// (Init, Ensure, EnsureAll) is for callers that want the cause. The callback
// form (LoadManifest, LoadBundle, LoadAllBundles) reports a bare success flag
// once the work is done; the Go* variants run it on a new goroutine so
// callers cannot rely on synchronous completion.
package resources
