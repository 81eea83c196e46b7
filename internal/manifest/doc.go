// Package manifest holds the read-only dependency graph between bundles.
//
// A manifest answers two questions: which bundles exist, and which bundles a
// given bundle directly depends on. The graph is assembled once with a
// Builder, checked for cycles, and then frozen into a Graph that is safe for
// concurrent reads without locking.
//
// The manifest ships inside the base bundle as an HCL asset:
//
//	bundle "heroes" {
//	  dependencies = ["shared", "materials"]
//	}
//
// Parse decodes that asset and Marshal writes it back.
package manifest
