package domain

import "errors"

// Sentinel errors shared across the engine.
var (
	// ErrNotFound is returned when a job or result set does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict is returned when an optimistic-concurrency write
	// supplies a stale version. The caller must reload or discard its work.
	ErrVersionConflict = errors.New("job version conflict")

	// ErrInvalidJobParams is returned when a job has neither keywords nor a
	// target handle, or an unknown platform. Jobs failing this check go
	// straight to the error status and are never retried.
	ErrInvalidJobParams = errors.New("invalid job parameters")

	// ErrJobTerminal is returned when a mutation is attempted on a job that
	// has already reached a terminal status.
	ErrJobTerminal = errors.New("job is in a terminal state")
)
