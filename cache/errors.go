package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNilStore indicates a nil Store was provided.
	ErrNilStore = errors.New("cache: store is nil")

	// ErrSuperseded is returned by ResolveFetch when a newer request for the
	// same key replaced the one being resolved. The result is discarded.
	// It is an internal signal and never surfaced to consumers.
	ErrSuperseded = errors.New("cache: fetch superseded")

	// ErrSubscribed is returned by Evict when the entry still has subscribers.
	ErrSubscribed = errors.New("cache: entry has subscribers")

	// ErrEvicted settles waiters whose entry was evicted mid-flight.
	ErrEvicted = errors.New("cache: entry evicted")

	// ErrNoData is returned by Snapshot.Decode before any successful fetch.
	ErrNoData = errors.New("cache: no data")
)
