package store

import "errors"

var (
	// ErrNotFound is returned when a key is absent from its partition scope.
	// It is fatal to the specific operation and never retried by this layer.
	ErrNotFound = errors.New("lattice: entity not found")

	// ErrConflict is returned by a conditional write when the expected
	// version token no longer matches the stored one. It is the only error
	// class the concurrency controller retries.
	ErrConflict = errors.New("lattice: version token mismatch")
)
