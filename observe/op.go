package observe

import "go.opentelemetry.io/otel/attribute"

// Operation kinds.
const (
	KindQuery    = "query"
	KindMutation = "mutation"
)

// Op describes one query or mutation for telemetry purposes.
type Op struct {
	Kind     string // KindQuery or KindMutation
	Endpoint string // Endpoint name (required)
	Key      string // Cache key, queries only
}

// Query returns the Op for a query fetch.
func Query(endpoint, key string) Op {
	return Op{Kind: KindQuery, Endpoint: endpoint, Key: key}
}

// Mutation returns the Op for a mutation.
func Mutation(endpoint string) Op {
	return Op{Kind: KindMutation, Endpoint: endpoint}
}

// SpanName returns the deterministic span name.
// Format: querycache.<kind>.<endpoint>
func (o Op) SpanName() string {
	kind := o.Kind
	if kind == "" {
		kind = KindQuery
	}
	return "querycache." + kind + "." + o.Endpoint
}

// Validate reports whether the op can be recorded.
func (o Op) Validate() error {
	if o.Endpoint == "" {
		return ErrMissingEndpoint
	}
	return nil
}

func (o Op) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("querycache.kind", o.kindOrDefault()),
		attribute.String("querycache.endpoint", o.Endpoint),
	}
	return attrs
}

func (o Op) fields() []Field {
	fields := []Field{
		{Key: "kind", Value: o.kindOrDefault()},
		{Key: "endpoint", Value: o.Endpoint},
	}
	if o.Key != "" {
		fields = append(fields, Field{Key: "key", Value: o.Key})
	}
	return fields
}

func (o Op) kindOrDefault() string {
	if o.Kind == "" {
		return KindQuery
	}
	return o.Kind
}
