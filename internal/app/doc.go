// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App wires the fetch stack (HTTP and file getters, optional disk cache,
// rate limit), the progress reporters and a resources.Manager, loads the
// manifest and then the requested bundles.
package app
