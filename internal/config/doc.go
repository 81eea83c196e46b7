// Package config defines the settings model for a bundlegrid process and
// the Loader that reads it from an HCL file.
//
// Files are evaluated, not just parsed: expressions may reference the
// `platform` variable (the target platform chosen on the command line) and
// `env`, an object holding the process environment.
//
//	base_url  = "https://cdn.example.com/${platform}"
//	cache_dir = "${env.HOME}/.cache/bundlegrid"
//
// Values the file leaves out stay at their zero value; the caller decides
// the defaults.
package config
