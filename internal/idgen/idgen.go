package idgen

import (
	"github.com/google/uuid"
)

// NewFunc produces a new globally unique identifier. Override in tests to
// obtain predictable ids.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new opaque identifier as string.
func New() string { return NewFunc() }

// Prefixed returns a new identifier with the supplied prefix, e.g.
// "approval-4f7…". Prefixes make ids self-describing in logs.
func Prefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "-" + New()
}
