package query

import "errors"

// Sentinel errors for client operations.
var (
	// ErrUnknownEndpoint is returned for names missing from the registry.
	ErrUnknownEndpoint = errors.New("query: unknown endpoint")

	// ErrWrongKind is returned when a mutation is subscribed to or a query
	// is sent as a mutation.
	ErrWrongKind = errors.New("query: wrong endpoint kind")

	// ErrClosed is returned after Client.Close.
	ErrClosed = errors.New("query: client closed")

	// ErrNilAdapter is returned by New without an adapter.
	ErrNilAdapter = errors.New("query: adapter is nil")

	// ErrNilRegistry is returned by New without an endpoint registry.
	ErrNilRegistry = errors.New("query: registry is nil")
)
