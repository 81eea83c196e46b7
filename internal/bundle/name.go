package bundle

import "strings"

// Name is a case-normalized bundle identifier. It is the cache key and the
// vertex identity in the manifest graph.
type Name string

// Normalize converts a raw bundle reference to its canonical Name. Leading and
// trailing whitespace and slashes are dropped and the result is lowercased.
func Normalize(raw string) Name {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "/")
	return Name(strings.ToLower(s))
}

// String implements fmt.Stringer.
func (n Name) String() string {
	return string(n)
}

// IsZero reports whether the name is empty after normalization.
func (n Name) IsZero() bool {
	return n == ""
}

// Names converts raw strings into normalized names, preserving order.
func Names(raw ...string) []Name {
	out := make([]Name, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r))
	}
	return out
}
