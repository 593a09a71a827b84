package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrDuplicateKey means a commit with the same idempotency key was
	// already applied.
	ErrDuplicateKey = errors.New("duplicate commit key")
	// ErrStaleAccount means an account row changed since it was read.
	ErrStaleAccount = errors.New("stale account version")
)
