package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/bundlegrid/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // optional hcl file
	BaseURL    string // bundles live at <BaseURL>/<name>
	Platform   string

	BaseBundle    string
	ManifestAsset string
	// Targets are bundle names or "bundle/asset" paths. Empty means every
	// bundle in the manifest.
	Targets []string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	Serve           bool

	Parallelism int
	Strict      bool
	CacheDir    string
	HTTP        config.HTTP
	SocketIO    *config.SocketIO
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("BaseURL is a required configuration field and cannot be empty")
	}
	if cfg.Parallelism < 0 {
		return nil, fmt.Errorf("parallelism must not be negative, got %d", cfg.Parallelism)
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 1
	}
	if cfg.HTTP.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %v", cfg.HTTP.RateLimit)
	}
	if cfg.SocketIO != nil && cfg.SocketIO.URL == "" {
		return nil, errors.New("socketio reporter requires a url")
	}
	return &cfg, nil
}
