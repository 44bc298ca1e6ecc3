package repository

import "errors"

// Storage-level sentinel errors. The service layer maps these onto its own
// caller-facing taxonomy; both the Postgres and in-memory stores return the
// same values so services never know which backend they run on.
var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrStateConflict is returned when a guarded status update finds the
	// row no longer in the expected pre-state (a concurrent writer won).
	ErrStateConflict = errors.New("repository: state conflict")

	// ErrCapacityFull is returned when an occupancy increment would exceed
	// the offer's capacity.
	ErrCapacityFull = errors.New("repository: capacity full")
)
