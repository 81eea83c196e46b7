// Package testutil holds the fakes shared by the package tests: an
// in-memory bundle handle, a recording fetcher and a log-capturing context.
package testutil
