// Package bundle defines the identifiers and handles shared by every layer of
// the loader: the normalized bundle name used as cache key and graph vertex,
// the opaque in-memory handle produced by a decoder, and the decoder seam to
// the engine that understands the archive bytes.
package bundle
