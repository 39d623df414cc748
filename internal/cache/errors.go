package cache

import "errors"

var (
	// ErrZeroVector is returned when a similarity operand has zero magnitude
	ErrZeroVector = errors.New("zero magnitude vector")

	// ErrDimensionMismatch is returned when vectors differ in length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStorageUnavailable is returned when Redis cannot be reached.
	// Callers treat it as a miss or dropped write, never as a request failure.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
)
