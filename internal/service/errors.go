package service

import "errors"

// Error taxonomy of the engine. Handlers map these to response codes
// with errors.Is; validation errors are wrapped with a descriptive
// message. No failure is retried internally.
var (
	// ErrInvalidID marks a malformed match reference.
	ErrInvalidID = errors.New("invalid match id")

	// ErrNotFound marks a missing pending match.
	ErrNotFound = errors.New("match not found")

	// ErrValidation covers every domain precondition failure: wrong
	// reorder length, out-of-range slot indices, unbound identities at
	// approval, empty patches.
	ErrValidation = errors.New("validation failed")

	// ErrParse marks a save file the parser rejected or did not
	// recognize. No partial record is created.
	ErrParse = errors.New("failed to parse save file")

	// ErrTransaction marks a failed approval write unit. Every write in
	// the unit has been rolled back and the pending record is intact.
	ErrTransaction = errors.New("approval transaction failed")
)
