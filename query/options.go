package query

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/fingerprint"
	"github.com/jonwraymond/querycache/observe"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	store    *cache.Store
	keyer    fingerprint.Keyer
	policy   cache.Policy
	observer observe.Observer
	tracer   observe.Tracer
	metrics  observe.Metrics
	logger   observe.Logger
	now      func() time.Time
	newID    func() string
}

func defaultOptions() options {
	return options{
		keyer:  fingerprint.NewDefaultKeyer(),
		policy: cache.DefaultPolicy(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithStore shares an existing store. By default each client owns one.
func WithStore(s *cache.Store) Option {
	return func(o *options) { o.store = s }
}

// WithKeyer replaces the default fingerprint keyer.
func WithKeyer(k fingerprint.Keyer) Option {
	return func(o *options) {
		if k != nil {
			o.keyer = k
		}
	}
}

// WithPolicy sets staleness and retention. Default: cache.DefaultPolicy()
func WithPolicy(p cache.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithObserver takes tracer, metrics and logger from obs. Explicit
// WithTracer, WithMetrics and WithLogger options win.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTracer sets the span tracer.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source for staleness checks and, when the client
// creates its own store, for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRequestIDs sets the generator for fetch request ids. Default: UUIDv4
func WithRequestIDs(next func() string) Option {
	return func(o *options) {
		if next != nil {
			o.newID = next
		}
	}
}
