// Package assets reads typed assets out of resident bundles. Lookups never
// load anything: a bundle that is not resident yields absent.
package assets

import (
	"strings"

	"github.com/specialistvlad/bundlegrid/internal/bundle"
)

// Source resolves a resident bundle by name. *bundlecache.Cache implements
// it.
type Source interface {
	Handle(name bundle.Name) (bundle.Handle, bool)
}

// Load returns the asset assetName from bundleName as a T. The result is
// absent when the bundle is not resident, the asset is missing, or the asset
// is not a T.
func Load[T any](src Source, bundleName, assetName string) (T, bool) {
	var zero T
	h, ok := src.Handle(bundle.Normalize(bundleName))
	if !ok {
		return zero, false
	}
	v, ok := h.LoadAsset(assetName)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// LoadPath is Load with a combined "<bundle>/<asset>" path, split on the
// last separator. A path with no separator names no asset.
func LoadPath[T any](src Source, path string) (T, bool) {
	bundleName, assetName, ok := Split(path)
	if !ok {
		var zero T
		return zero, false
	}
	return Load[T](src, bundleName, assetName)
}

// Split breaks a combined asset path on its last "/".
func Split(path string) (bundleName, assetName string, ok bool) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
