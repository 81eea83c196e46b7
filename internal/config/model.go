package config

import (
	"context"
	"time"
)

// Loader reads a configuration file.
type Loader interface {
	Load(ctx context.Context, path string, vars Vars) (*Model, error)
}

// Vars are the variables visible to expressions in a configuration file.
type Vars struct {
	Platform string
	// Env holds "KEY=value" pairs, as returned by os.Environ.
	Env []string
}

// Model is the format-agnostic result of loading a configuration file.
type Model struct {
	BaseURL       string
	BaseBundle    string
	ManifestAsset string
	CacheDir      string
	Parallelism   int
	Strict        bool
	// Preload lists bundles or "bundle/asset" paths to load at startup.
	Preload []string

	HTTP     HTTP
	SocketIO *SocketIO
}

// HTTP configures bundle downloads.
type HTTP struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	RateLimit float64
	Burst     int
}

// SocketIO configures the live-ops progress reporter.
type SocketIO struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}
