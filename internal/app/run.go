package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/bundlegrid/internal/assets"
	"github.com/specialistvlad/bundlegrid/internal/bundle"
	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
	"github.com/specialistvlad/bundlegrid/internal/manifest"
	"github.com/specialistvlad/bundlegrid/internal/resources"
)

// Run loads the manifest, then the configured targets, and prints what is
// resident. With Serve set it keeps the bundles resident until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()

	if err := a.manager.Init(ctx); err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	var result *multierror.Error
	if len(a.config.Targets) == 0 {
		a.logger.Info("🚀 Loading every bundle in the manifest...")
		if err := a.manager.EnsureAll(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	} else {
		a.logger.Info("🚀 Loading requested bundles...", "targets", a.config.Targets)
		for _, target := range a.config.Targets {
			if err := a.loadTarget(ctx, target); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	a.printResident()
	a.logger.Info("🏁 Loading finished.", "resident", a.manager.Cache().Len(), "failed", result != nil)

	if a.config.Serve {
		a.logger.Info("Serving resident bundles until interrupted.")
		<-ctx.Done()
	}

	a.logger.Debug("App.Run method finished.")
	return result.ErrorOrNil()
}

// loadTarget loads a bundle, or the bundle of a "bundle/asset" path and
// then checks the asset is there.
func (a *App) loadTarget(ctx context.Context, target string) error {
	bundleName, assetName, isPath := assets.Split(target)
	if !isPath {
		bundleName = target
	}
	if plan, err := manifest.Closure(a.manager.Manifest(), bundle.Normalize(bundleName)); err != nil {
		a.logger.Debug("Load plan unavailable.", "target", target, "error", err)
	} else {
		a.logger.Debug("Load plan.", "target", target, "order", plan)
	}
	if err := a.manager.Ensure(ctx, bundleName); err != nil {
		return err
	}
	if !isPath {
		return nil
	}

	v, ok := resources.LoadAsset[any](a.manager, bundleName, assetName)
	if !ok {
		return fmt.Errorf("asset '%s' not found in bundle '%s'", assetName, bundle.Normalize(bundleName))
	}
	fmt.Fprintf(a.outW, "asset %s: %s\n", target, describe(v))
	return nil
}

func (a *App) printResident() {
	cache := a.manager.Cache()
	for _, name := range cache.Names() {
		h, ok := cache.Handle(name)
		if !ok {
			continue
		}
		names := h.AssetNames()
		fmt.Fprintf(a.outW, "bundle %s: %d assets [%s]\n", name, len(names), strings.Join(names, ", "))
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case []byte:
		return fmt.Sprintf("%d bytes", len(t))
	case string:
		return fmt.Sprintf("%d chars", len(t))
	default:
		return fmt.Sprintf("%T", v)
	}
}
