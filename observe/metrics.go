package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records query and mutation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one network fetch of a query.
	RecordFetch(ctx context.Context, op Op, duration time.Duration, err error)

	// RecordDeduplicated records a caller that joined an in-flight fetch.
	RecordDeduplicated(ctx context.Context, op Op)

	// RecordSuperseded records a fetch result discarded for a newer request.
	RecordSuperseded(ctx context.Context, op Op)

	// RecordMutation records one mutation.
	RecordMutation(ctx context.Context, op Op, duration time.Duration, err error)

	// RecordInvalidation records how many cache keys a mutation invalidated.
	RecordInvalidation(ctx context.Context, op Op, keys int)

	// RecordEviction records an entry evicted after its grace period.
	RecordEviction(ctx context.Context, op Op)
}

type metricsImpl struct {
	fetchTotal       metric.Int64Counter
	fetchErrors      metric.Int64Counter
	fetchDuration    metric.Float64Histogram
	deduplicated     metric.Int64Counter
	superseded       metric.Int64Counter
	mutationTotal    metric.Int64Counter
	mutationErrors   metric.Int64Counter
	mutationDuration metric.Float64Histogram
	invalidatedKeys  metric.Int64Histogram
	evictions        metric.Int64Counter
}

// NewMetrics creates the querycache.* instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.fetchTotal, "querycache.fetch.total", "Total number of query fetches", "{fetch}"},
		{&m.fetchErrors, "querycache.fetch.errors", "Total number of failed query fetches", "{error}"},
		{&m.deduplicated, "querycache.fetch.deduplicated", "Callers served by an in-flight fetch", "{call}"},
		{&m.superseded, "querycache.fetch.superseded", "Fetch results discarded for a newer request", "{fetch}"},
		{&m.mutationTotal, "querycache.mutation.total", "Total number of mutations", "{call}"},
		{&m.mutationErrors, "querycache.mutation.errors", "Total number of failed mutations", "{error}"},
		{&m.evictions, "querycache.eviction.total", "Entries evicted after their grace period", "{entry}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.fetchDuration, err = meter.Float64Histogram(
		"querycache.fetch.duration_ms",
		metric.WithDescription("Query fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.mutationDuration, err = meter.Float64Histogram(
		"querycache.mutation.duration_ms",
		metric.WithDescription("Mutation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.invalidatedKeys, err = meter.Int64Histogram(
		"querycache.invalidation.keys",
		metric.WithDescription("Cache keys invalidated per mutation"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordFetch(ctx context.Context, op Op, duration time.Duration, err error) {
	opt := metric.WithAttributes(op.attributes()...)
	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordDeduplicated(ctx context.Context, op Op) {
	m.deduplicated.Add(ctx, 1, metric.WithAttributes(op.attributes()...))
}

func (m *metricsImpl) RecordSuperseded(ctx context.Context, op Op) {
	m.superseded.Add(ctx, 1, metric.WithAttributes(op.attributes()...))
}

func (m *metricsImpl) RecordMutation(ctx context.Context, op Op, duration time.Duration, err error) {
	opt := metric.WithAttributes(op.attributes()...)
	m.mutationTotal.Add(ctx, 1, opt)
	if err != nil {
		m.mutationErrors.Add(ctx, 1, opt)
	}
	m.mutationDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordInvalidation(ctx context.Context, op Op, keys int) {
	m.invalidatedKeys.Record(ctx, int64(keys), metric.WithAttributes(
		attribute.String("querycache.endpoint", op.Endpoint),
	))
}

func (m *metricsImpl) RecordEviction(ctx context.Context, op Op) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(op.attributes()...))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(context.Context, Op, time.Duration, error)    {}
func (nopMetrics) RecordDeduplicated(context.Context, Op)                   {}
func (nopMetrics) RecordSuperseded(context.Context, Op)                     {}
func (nopMetrics) RecordMutation(context.Context, Op, time.Duration, error) {}
func (nopMetrics) RecordInvalidation(context.Context, Op, int)              {}
func (nopMetrics) RecordEviction(context.Context, Op)                       {}
