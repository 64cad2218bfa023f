package config

import "errors"

var (
	// ErrMissingBaseURL is returned when no API base URL is configured.
	ErrMissingBaseURL = errors.New("config: base URL is required")

	// ErrInvalidDuration is returned when a duration setting is negative.
	ErrInvalidDuration = errors.New("config: duration must not be negative")

	// ErrInvalidRetry is returned when the retry budget is below one attempt.
	ErrInvalidRetry = errors.New("config: retry attempts must be at least 1")

	// ErrInvalidBreaker is returned when the breaker threshold is negative.
	ErrInvalidBreaker = errors.New("config: breaker threshold must not be negative")

	// ErrUnknownBackend is returned for an unregistered credential backend.
	ErrUnknownBackend = errors.New("config: unknown credential backend")
)
