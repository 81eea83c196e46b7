// Package cli turns the bundlegrid command line into an app.Config. Flags
// are read first; an optional HCL file named by -config is then evaluated
// with ${platform} and ${env.NAME} in scope, and any flag set explicitly on
// the command line overrides the file. Invalid input surfaces as an
// ExitError carrying the process exit code.
package cli
