// Package fetch retrieves bundle bytes and turns them into handles.
//
// A Client pairs a Getter, which moves bytes from an http(s) or file URI,
// with a bundle.Decoder, which understands the archive. Every failure is
// returned as a value; nothing panics or unwinds past Fetch. Transport
// failures are reported as *TransportError so callers can tell network
// problems from HTTP status codes and decode errors.
package fetch
