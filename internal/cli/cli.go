package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/specialistvlad/bundlegrid/internal/app"
	"github.com/specialistvlad/bundlegrid/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Settings come from three layers: built-in defaults, the optional -config
// file, and flags given explicitly on the command line, later layers
// winning.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	return parse(args, output, config.NewHCLLoader(), os.Environ())
}

func parse(args []string, output io.Writer, loader config.Loader, environ []string) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("bundlegrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
bundlegrid - Dependency-aware asset bundle loader.

Usage:
  bundlegrid [options] [TARGET ...]

Arguments:
  TARGET
    A bundle name, or a "bundle/asset" path to load and look up.
    Without targets every bundle in the manifest is loaded.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	baseURLFlag := flagSet.String("base-url", "", "URL or directory the bundles are served from.")
	platformFlag := flagSet.String("platform", runtime.GOOS, "Target platform, visible as ${platform} in the config file.")
	baseBundleFlag := flagSet.String("base-bundle", "", "Name of the bundle carrying the manifest.")
	manifestAssetFlag := flagSet.String("manifest-asset", "", "Name of the manifest asset inside the base bundle.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	parallelismFlag := flagSet.Int("parallelism", 1, "Number of bundles loaded concurrently when loading everything.")
	cacheDirFlag := flagSet.String("cache-dir", "", "Directory for the persistent download cache. Empty disables it.")
	strictFlag := flagSet.Bool("strict", false, "Skip bundles whose dependencies failed to load.")
	serveFlag := flagSet.Bool("serve", false, "Keep bundles resident and serve the health endpoints until interrupted.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := app.Config{
		ConfigPath: *configFlag,
		Platform:   *platformFlag,
		Targets:    flagSet.Args(),
	}

	if cfg.ConfigPath != "" {
		model, err := loader.Load(context.Background(), cfg.ConfigPath, config.Vars{Platform: cfg.Platform, Env: environ})
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		applyModel(&cfg, model)
		slog.Debug("Config file applied.", "path", cfg.ConfigPath)
	}

	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, apply func()) {
		if set[name] || cfg.ConfigPath == "" {
			apply()
		}
	}
	override("base-url", func() { cfg.BaseURL = *baseURLFlag })
	override("base-bundle", func() { cfg.BaseBundle = *baseBundleFlag })
	override("manifest-asset", func() { cfg.ManifestAsset = *manifestAssetFlag })
	override("parallelism", func() { cfg.Parallelism = *parallelismFlag })
	override("cache-dir", func() { cfg.CacheDir = *cacheDirFlag })
	override("strict", func() { cfg.Strict = *strictFlag })
	cfg.HealthcheckPort = *healthPortFlag
	cfg.Serve = *serveFlag

	if cfg.BaseURL == "" {
		slog.Debug("No base URL provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	cfg.LogFormat = logFormat
	cfg.LogLevel = logLevel
	slog.Debug("CLI parameter validation complete.")

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "base_url", appConfig.BaseURL, "targets", appConfig.Targets)
	return appConfig, false, nil
}

// applyModel copies the values a config file set onto cfg. Preloaded targets
// run before the ones given on the command line.
func applyModel(cfg *app.Config, m *config.Model) {
	cfg.BaseURL = m.BaseURL
	cfg.BaseBundle = m.BaseBundle
	cfg.ManifestAsset = m.ManifestAsset
	cfg.CacheDir = m.CacheDir
	cfg.Parallelism = m.Parallelism
	cfg.Strict = m.Strict
	cfg.HTTP = m.HTTP
	cfg.SocketIO = m.SocketIO
	if len(m.Preload) > 0 {
		cfg.Targets = append(append([]string{}, m.Preload...), cfg.Targets...)
	}
}
