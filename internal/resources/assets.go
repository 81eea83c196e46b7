package resources

import (
	"github.com/specialistvlad/bundlegrid/internal/assets"
)

// LoadAsset reads a typed asset from a resident bundle of m. It never loads
// anything.
func LoadAsset[T any](m *Manager, bundleName, assetName string) (T, bool) {
	return assets.Load[T](m.cache, bundleName, assetName)
}

// LoadAssetPath is LoadAsset with a "<bundle>/<asset>" path.
func LoadAssetPath[T any](m *Manager, path string) (T, bool) {
	return assets.LoadPath[T](m.cache, path)
}
