package resilience

import (
	"context"
	"sync"
	"time"
)

// LimiterConfig configures the request pacer.
type LimiterConfig struct {
	// Rate is the sustained number of request starts per second.
	// Default: 50
	Rate float64

	// Burst is the number of starts allowed back to back.
	// Default: 10
	Burst int

	// MaxWait is the longest a caller waits for its turn before ErrThrottled.
	// Zero means wait as long as ctx allows.
	MaxWait time.Duration
}

// Limiter paces request starts with a token bucket. Callers wait for a
// token instead of failing, so a refetch burst is spread out rather than
// dropped.
type Limiter struct {
	config LimiterConfig
	now    func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewLimiter creates a full bucket.
func NewLimiter(config LimiterConfig) *Limiter {
	if config.Rate <= 0 {
		config.Rate = 50
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	return &Limiter{
		config: config,
		now:    time.Now,
		tokens: float64(config.Burst),
		last:   time.Now(),
	}
}

// Wait takes a token, sleeping until one is available.
func (l *Limiter) Wait(ctx context.Context) error {
	var deadline <-chan time.Time
	if l.config.MaxWait > 0 {
		t := time.NewTimer(l.config.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	for {
		delay := l.reserve()
		if delay == 0 {
			return nil
		}

		sleep := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			sleep.Stop()
			return ctx.Err()
		case <-deadline:
			sleep.Stop()
			return ErrThrottled
		case <-sleep.C:
		}
	}
}

// Available returns the number of tokens currently in the bucket.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}

// Execute waits for a token, then runs op.
func (l *Limiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// reserve takes a token and returns 0, or returns how long until one exists.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	missing := 1 - l.tokens
	return time.Duration(missing / l.config.Rate * float64(time.Second))
}

func (l *Limiter) refillLocked() {
	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.config.Rate
	l.last = now
	if burst := float64(l.config.Burst); l.tokens > burst {
		l.tokens = burst
	}
}

// Gate caps the number of concurrent requests.
type Gate struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewGate creates a gate with n slots. Callers wait at most maxWait for a
// slot; zero means wait as long as ctx allows.
func NewGate(n int, maxWait time.Duration) *Gate {
	if n <= 0 {
		n = 10
	}
	return &Gate{slots: make(chan struct{}, n), maxWait: maxWait}
}

// InFlight returns the number of occupied slots.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// Capacity returns the number of slots.
func (g *Gate) Capacity() int {
	return cap(g.slots)
}

// Execute runs op while holding a slot.
func (g *Gate) Execute(ctx context.Context, op func(context.Context) error) error {
	select {
	case g.slots <- struct{}{}:
	default:
		var deadline <-chan time.Time
		if g.maxWait > 0 {
			t := time.NewTimer(g.maxWait)
			defer t.Stop()
			deadline = t.C
		}
		select {
		case g.slots <- struct{}{}:
		case <-deadline:
			return ErrSaturated
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() { <-g.slots }()

	return op(ctx)
}
