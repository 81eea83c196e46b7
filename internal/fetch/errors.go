package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindNetwork covers connection, DNS, timeout and local I/O failures.
	KindNetwork Kind = iota
	// KindHTTPStatus means the server answered with a non-success status.
	KindHTTPStatus
	// KindDecode means the bytes arrived but the decoder rejected them.
	KindDecode
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindHTTPStatus:
		return "http error"
	case KindDecode:
		return "decode error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TransportError is the failure of a single fetch.
type TransportError struct {
	URI        string
	Kind       Kind
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: %s %d: %v", e.URI, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URI, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an HTTP 404 transport error.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == KindHTTPStatus && te.StatusCode == 404
}
