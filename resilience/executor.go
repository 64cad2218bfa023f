package resilience

import (
	"context"
	"time"
)

// Stage is one delivery policy around an operation.
type Stage interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Executor composes stages in a fixed order, outermost first:
// Limiter, Gate, CircuitBreaker, Retry, Timeout.
//
// Pacing and the gate apply once per request. The breaker sees the outcome
// after retries, and the timeout bounds each individual attempt.
type Executor struct {
	limiter *Limiter
	gate    *Gate
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. With no options it runs op directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithLimiter paces request starts.
func WithLimiter(l *Limiter) ExecutorOption {
	return func(e *Executor) { e.limiter = l }
}

// WithGate caps concurrent requests.
func WithGate(g *Gate) ExecutorOption {
	return func(e *Executor) { e.gate = g }
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds each attempt by d.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// Breaker returns the configured circuit breaker, or nil.
func (e *Executor) Breaker() *CircuitBreaker {
	return e.breaker
}

// Stages returns the configured stages, outermost first.
func (e *Executor) Stages() []Stage {
	var stages []Stage
	if e.limiter != nil {
		stages = append(stages, e.limiter)
	}
	if e.gate != nil {
		stages = append(stages, e.gate)
	}
	if e.breaker != nil {
		stages = append(stages, e.breaker)
	}
	if e.retry != nil {
		stages = append(stages, e.retry)
	}
	if e.timeout != nil {
		stages = append(stages, e.timeout)
	}
	return stages
}

// Execute runs op through every configured stage.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	run := op
	stages := e.Stages()
	for i := len(stages) - 1; i >= 0; i-- {
		stage, inner := stages[i], run
		run = func(ctx context.Context) error {
			return stage.Execute(ctx, inner)
		}
	}
	return run(ctx)
}
