package query

import (
	"context"
	"sync"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/endpoint"
	"github.com/jonwraymond/querycache/fingerprint"
	"github.com/jonwraymond/querycache/observe"
)

// Subscribe registers interest in a query call and returns a live handle.
//
// When the handle is the key's first subscriber and the entry is absent,
// never fetched, failed, invalidated, or older than the endpoint's stale
// time, a fetch is started. Concurrent subscribers share that fetch. Args
// that cannot be serialized fail before any request is made.
//
// The entry stays cached until the last handle is closed and the grace
// period passes without a new subscriber.
func (c *Client) Subscribe(ctx context.Context, name string, args any) (*Subscription, error) {
	def, err := c.definition(name, endpoint.KindQuery)
	if err != nil {
		return nil, err
	}
	canonical, err := c.keyer.Canonical(args)
	if err != nil {
		return nil, err
	}
	key := fingerprint.Build(name, canonical)
	origin := cache.Origin{Endpoint: name, Args: canonical}

	c.keep(key)
	now := c.now()
	needsFetch := func(snap cache.Snapshot) bool {
		return c.policy.NeedsFetch(snap, now, def.StaleTime)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	requestID := c.newID()
	listener, snap, flight := c.store.SubscribeFetch(key, origin, requestID, needsFetch)
	if flight != nil {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	s := &Subscription{client: c, def: def, listener: listener, origin: origin}
	op := observe.Query(name, string(key))
	switch {
	case flight != nil:
		go c.run(ctx, def, key, canonical, requestID, op)
	case snap.IsLoading():
		c.metrics.RecordDeduplicated(ctx, op)
	}
	return s, nil
}

// Subscription is a consumer's handle on one cached query.
type Subscription struct {
	client   *Client
	def      *endpoint.Definition
	listener *cache.Subscription
	origin   cache.Origin
	once     sync.Once
}

// Key returns the cache key.
func (s *Subscription) Key() fingerprint.Key {
	return s.listener.Key()
}

// Endpoint returns the endpoint definition.
func (s *Subscription) Endpoint() *endpoint.Definition {
	return s.def
}

// Snapshot returns the current state of the entry.
func (s *Subscription) Snapshot() cache.Snapshot {
	snap, _ := s.client.store.Entry(s.Key())
	return snap
}

// Updates delivers the latest snapshot after every change of the entry.
// Intermediate snapshots may be skipped by a slow reader. The channel is
// closed by Close.
func (s *Subscription) Updates() <-chan cache.Snapshot {
	return s.listener.Updates()
}

// Wait blocks until the entry is neither idle nor loading and returns it.
// An idle entry is fetched first. Fetch failures are reported in the
// snapshot; the error is ctx.Err() or ErrClosed.
func (s *Subscription) Wait(ctx context.Context) (cache.Snapshot, error) {
	for {
		snap, ok := s.client.store.Entry(s.Key())
		if !ok {
			return snap, nil
		}
		var flight *cache.Flight
		switch snap.Status {
		case cache.StatusIdle:
			f, err := s.client.fetch(ctx, s.def, s.Key(), s.origin, false)
			if err != nil {
				return cache.Snapshot{}, err
			}
			flight = f
		case cache.StatusLoading:
			flight, _ = s.client.store.StartFetch(s.Key(), s.origin, "", false)
		default:
			return snap, nil
		}
		if flight == nil {
			continue
		}
		if _, err := flight.Wait(ctx); err != nil && ctx.Err() != nil {
			return cache.Snapshot{}, err
		}
	}
}

// Refetch forces a new request that supersedes any fetch in flight, then
// waits for the entry to settle. Cached data stays visible meanwhile.
func (s *Subscription) Refetch(ctx context.Context) (cache.Snapshot, error) {
	if _, err := s.client.fetch(ctx, s.def, s.Key(), s.origin, true); err != nil {
		return cache.Snapshot{}, err
	}
	return s.Wait(ctx)
}

// Close releases the subscription. The entry is evicted once the grace
// period passes with no subscribers. Close is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.client.release(s.def, s.listener)
	})
}
