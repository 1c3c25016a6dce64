package dao

import "errors"

// Sentinel errors shared by all DAO implementations. Callers detect
// conditions via errors.Is rather than string comparison.

var (
	// ErrNotFound is returned when the requested entity does not exist in
	// the underlying storage.
	ErrNotFound = errors.New("dao: not found")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)
