package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/bundlegrid/internal/archive"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/specialistvlad/bundlegrid/internal/diskcache"
	"github.com/specialistvlad/bundlegrid/internal/fetch"
	"github.com/specialistvlad/bundlegrid/internal/loader"
	"github.com/specialistvlad/bundlegrid/internal/progress"
	"github.com/specialistvlad/bundlegrid/internal/resources"
)

// cacheFileName is the bbolt database created inside Config.CacheDir.
const cacheFileName = "bundles.db"

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	ctx    context.Context
	config *Config

	httpGetter *fetch.HTTPGetter
	store      *diskcache.Store
	socket     *progress.SocketIO
	manager    *resources.Manager
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It builds the fetch
// stack and an uninitialized resource manager; nothing is downloaded until
// Run.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, ctx: ctx, config: cfg}

	httpOpts := []fetch.HTTPOption{fetch.WithTimeout(cfg.HTTP.Timeout)}
	if cfg.HTTP.UserAgent != "" {
		httpOpts = append(httpOpts, fetch.WithUserAgent(cfg.HTTP.UserAgent))
	}
	for k, v := range cfg.HTTP.Headers {
		httpOpts = append(httpOpts, fetch.WithHeader(k, v))
	}
	a.httpGetter = fetch.NewHTTPGetter(httpOpts...)

	var remote fetch.Getter = a.httpGetter
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		store, err := diskcache.Open(filepath.Join(cfg.CacheDir, cacheFileName), diskcache.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open bundle cache: %w", err)
		}
		a.store = store
		remote = fetch.NewCachingGetter(remote, store)
		logger.Debug("Disk cache enabled.", "dir", cfg.CacheDir)
	}

	client := fetch.NewClient(
		fetch.DefaultRouter(remote),
		archive.Decoder{},
		fetch.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst),
	)

	reporters := progress.Multi{progress.Log{}}
	if cfg.SocketIO != nil {
		s, err := progress.DialSocketIO(ctx, progress.SocketIOConfig{
			URL:                cfg.SocketIO.URL,
			Namespace:          cfg.SocketIO.Namespace,
			EventName:          cfg.SocketIO.Event,
			InsecureSkipVerify: cfg.SocketIO.InsecureSkipVerify,
			ConnectTimeout:     cfg.SocketIO.ConnectTimeout,
		})
		if err != nil {
			// Live progress is optional; loading goes ahead without it.
			logger.Warn("Progress reporter unavailable.", "error", err)
		} else {
			a.socket = s
			reporters = append(reporters, s)
		}
	}

	a.manager = resources.New(client, cfg.BaseURL,
		resources.WithBaseBundle(cfg.BaseBundle),
		resources.WithManifestAsset(cfg.ManifestAsset),
		resources.WithLoaderOptions(
			loader.WithStrictDependencies(cfg.Strict),
			loader.WithParallelism(cfg.Parallelism),
			loader.WithReporter(reporters),
		),
	)
	logger.Debug("App constructed.", "base_url", cfg.BaseURL, "platform", cfg.Platform)
	return a, nil
}

// Manager returns the application's resource manager.
func (a *App) Manager() *resources.Manager {
	return a.manager
}

// Close releases everything the app holds. It is safe to call more than
// once.
func (a *App) Close() error {
	var result *multierror.Error

	if err := a.closeHealthCheckServer(); err != nil {
		result = multierror.Append(result, err)
	}
	a.manager.Close(a.ctx)
	if a.socket != nil {
		if err := a.socket.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		a.socket = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		a.store = nil
	}
	if err := a.httpGetter.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
