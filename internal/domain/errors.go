package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict: idempotency key already exists")
	ErrMissingKey      = errors.New("change record is missing the id or channel key attribute")
	ErrInvalidEvent    = errors.New("change record has an unknown event name")
	ErrInvalidFilter   = errors.New("invalid event filter: must be all, remove, or ttl")
	ErrInvalidEndpoint = errors.New("endpoint must be an absolute https URL")
	ErrEmptyMessage    = errors.New("message must be between 1 and 262144 bytes")
	ErrInvalidStatus   = errors.New("invalid delivery status")
	ErrInvalidID       = errors.New("invalid id: must be a UUID")
	ErrQueueFull       = errors.New("queue is at capacity, try again later")
)
