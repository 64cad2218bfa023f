package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff returns the delay before retry number attempt (1-based).
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles initial for every attempt, capped at ceiling.
func ExponentialBackoff(initial, ceiling time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := initial
		for i := 1; i < attempt && d < ceiling; i++ {
			d *= 2
		}
		if d > ceiling {
			d = ceiling
		}
		return d
	}
}

// ConstantBackoff waits d between attempts.
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// RetryConfig configures the retry stage.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// Backoff computes the delay between attempts.
	// Default: ExponentialBackoff(100ms, 5s)
	Backoff Backoff

	// Jitter adds up to 25% random delay on top of Backoff.
	Jitter bool

	// RetryIf reports whether err is transient. Errors it rejects are
	// returned immediately. Default: never retry.
	RetryIf func(err error) bool

	// RetryAfter lets the caller honor a server-provided delay hint. When it
	// reports ok, the hint replaces the computed backoff.
	RetryAfter func(err error) (time.Duration, bool)

	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs failed attempts that its classifier accepts.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry stage.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == nil {
		config.Backoff = ExponentialBackoff(100*time.Millisecond, 5*time.Second)
	}
	if config.RetryIf == nil {
		config.RetryIf = func(error) bool { return false }
	}
	return &Retry{config: config}
}

// MaxAttempts returns the configured attempt budget.
func (r *Retry) MaxAttempts() int {
	return r.config.MaxAttempts
}

// Execute runs op until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. The last attempt's error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || attempt >= r.config.MaxAttempts || !r.config.RetryIf(err) {
			return err
		}

		delay := r.delay(attempt, err)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Retry) delay(attempt int, err error) time.Duration {
	if r.config.RetryAfter != nil {
		if d, ok := r.config.RetryAfter(err); ok && d >= 0 {
			return d
		}
	}

	d := r.config.Backoff(attempt)
	if r.config.Jitter && d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}
