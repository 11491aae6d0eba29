package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. For append-only stores this also
	// signals that an idempotent retry hit work already done.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrVersionConflict is returned by compare-and-swap writes when the
	// stored version moved since it was read.
	ErrVersionConflict = errors.New("version conflict: state changed since read")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
