package domain

import "errors"

// Error taxonomy for the substrate. Callers match with errors.Is; wrapped
// context travels via fmt.Errorf("...: %w", err).
var (
	// ErrInvalidInput covers malformed payloads, missing required fields and
	// illegal state transitions. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable wraps driver I/O failures. Operations return
	// partial results listing completed steps; callers may retry idempotently.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAIUnavailable signals a provider failure or null result. The core
	// continues with deterministic fallbacks and records the degradation.
	ErrAIUnavailable = errors.New("ai provider unavailable")

	// ErrConflict is an optimistic concurrency failure on a belief version
	// chain after retries are exhausted.
	ErrConflict = errors.New("version conflict")

	// ErrNotFound means the referenced belief/memory/contradiction id does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrCancelled means the deadline was exceeded or the caller cancelled.
	// Already-durable side effects remain; no rollback is attempted.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidTransition is returned for belief state transitions outside
	// the lifecycle table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrImmutable is returned by drivers on an overwrite attempt against a
	// key written with Immutable set.
	ErrImmutable = errors.New("key is immutable")
)
