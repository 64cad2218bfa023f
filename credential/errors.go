package credential

import "errors"

// Sentinel errors for credential operations.
var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("credential: not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("credential: store is closed")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("credential: key is required")

	// ErrUnknownBackend is returned by Registry.Create for unregistered names.
	ErrUnknownBackend = errors.New("credential: unknown backend")
)
