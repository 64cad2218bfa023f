package query

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/endpoint"
	"github.com/jonwraymond/querycache/observe"
)

// Mutate sends a mutation. It makes exactly one request. On success the
// tags the endpoint invalidates are passed to Invalidate. On failure nothing
// in the cache changes and the adapter error is returned unchanged.
func (c *Client) Mutate(ctx context.Context, name string, args any) (Result, error) {
	def, err := c.definition(name, endpoint.KindMutation)
	if err != nil {
		return Result{}, err
	}
	canonical, err := c.keyer.Canonical(args)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Result{}, ErrClosed
	}

	op := observe.Mutation(name)
	data, err := c.send(ctx, def, canonical, op)
	if err != nil {
		return Result{}, err
	}

	keys := c.Invalidate(ctx, def.InvalidatedTags(data, canonical)...)
	c.metrics.RecordInvalidation(ctx, op, len(keys))

	return Result{Endpoint: name, Data: data, Invalidated: keys}, nil
}

// MutationState is the state of a Mutation handle.
type MutationState struct {
	Status cache.Status
	Data   json.RawMessage
	Err    error
}

// IsLoading reports whether a trigger is in flight.
func (s MutationState) IsLoading() bool { return s.Status == cache.StatusLoading }

// IsSuccess reports whether the last trigger succeeded.
func (s MutationState) IsSuccess() bool { return s.Status == cache.StatusSuccess }

// IsError reports whether the last trigger failed.
func (s MutationState) IsError() bool { return s.Status == cache.StatusError }

// Mutation is a reusable handle on one mutation endpoint that tracks the
// state of its latest trigger.
type Mutation struct {
	client *Client
	name   string

	mu    sync.Mutex
	seq   uint64
	state MutationState
}

// Mutation returns a handle for the named mutation endpoint. Unknown names
// and query endpoints fail on Trigger.
func (c *Client) Mutation(name string) *Mutation {
	return &Mutation{client: c, name: name}
}

// Trigger sends the mutation and returns its outcome. The handle's state
// follows the most recent trigger; results of older triggers only reach
// their own caller.
func (m *Mutation) Trigger(ctx context.Context, args any) (Result, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.state = MutationState{Status: cache.StatusLoading, Data: m.state.Data}
	m.mu.Unlock()

	res, err := m.client.Mutate(ctx, m.name, args)

	m.mu.Lock()
	defer m.mu.Unlock()
	if seq == m.seq {
		if err != nil {
			m.state = MutationState{Status: cache.StatusError, Err: err}
		} else {
			m.state = MutationState{Status: cache.StatusSuccess, Data: res.Data}
		}
	}
	return res, err
}

// State returns the state of the latest trigger.
func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the handle to idle. A trigger in flight no longer updates
// the state.
func (m *Mutation) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.state = MutationState{}
}
