package resilience

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds an attempt when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Timeout bounds every attempt with a deadline.
//
// The operation receives the derived context and is expected to honor it;
// net/http does. When the deadline, and not the caller, ended the attempt,
// the error is ErrTimeout joined with the operation's own error.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout stage. Non-positive durations use DefaultTimeout.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{d: d}
}

// Duration returns the per-attempt budget.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op with a deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	err := op(attemptCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
