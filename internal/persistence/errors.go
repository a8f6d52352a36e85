package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrUnavailable is returned when a backend cannot be reached or rejects a call.
	ErrUnavailable = errors.New("persistence: backend unavailable")
	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("persistence: corrupt record")
)
