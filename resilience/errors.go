package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrTimeout is returned when an attempt exceeds its time budget.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrThrottled is returned when the limiter cannot grant a start in time.
	ErrThrottled = errors.New("resilience: request rate exceeded")

	// ErrSaturated is returned when the gate has no free slot in time.
	ErrSaturated = errors.New("resilience: too many requests in flight")
)
