package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/endpoint"
	"github.com/jonwraymond/querycache/fingerprint"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/transport"
)

// Client runs queries and mutations against one API.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: caller contexts bound waiting, not shared fetches. A fetch
//   started for one caller keeps running when that caller goes away, since
//   other subscribers may be waiting on it. Close cancels all fetches.
// - Errors: adapter errors are returned unchanged.
type Client struct {
	adapter  transport.Adapter
	registry *endpoint.Registry
	store    *cache.Store
	keyer    fingerprint.Keyer
	policy   cache.Policy
	mw       *observe.Middleware
	metrics  observe.Metrics
	logger   observe.Logger
	now      func() time.Time
	newID    func() string

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	grace  map[fingerprint.Key]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// New creates a client sending requests through adapter. The adapter is
// usually a transport.HTTPAdapter wrapped by auth.Middleware.
func New(adapter transport.Adapter, registry *endpoint.Registry, opts ...Option) (*Client, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		o.store = cache.NewStore(cache.WithClock(o.now))
	}
	if o.observer != nil {
		if o.tracer == nil {
			o.tracer = observe.NewTracer(o.observer.Tracer())
		}
		if o.metrics == nil {
			m, err := observe.NewMetrics(o.observer.Meter())
			if err != nil {
				return nil, fmt.Errorf("query: create metrics: %w", err)
			}
			o.metrics = m
		}
		if o.logger == nil {
			o.logger = o.observer.Logger()
		}
	}
	mw := observe.NewMiddleware(o.tracer, o.metrics, o.logger)

	base, cancel := context.WithCancel(context.Background())
	return &Client{
		adapter:  adapter,
		registry: registry,
		store:    o.store,
		keyer:    o.keyer,
		policy:   o.policy,
		mw:       mw,
		metrics:  mw.Metrics(),
		logger:   mw.Logger(),
		now:      o.now,
		newID:    o.newID,
		base:     base,
		cancel:   cancel,
		grace:    make(map[fingerprint.Key]*time.Timer),
	}, nil
}

// Store returns the underlying cache store.
func (c *Client) Store() *cache.Store {
	return c.store
}

// Registry returns the endpoint registry.
func (c *Client) Registry() *endpoint.Registry {
	return c.registry
}

// Key returns the cache key for a query call without touching the cache.
func (c *Client) Key(name string, args any) (fingerprint.Key, error) {
	if _, err := c.definition(name, endpoint.KindQuery); err != nil {
		return "", err
	}
	return c.keyer.Key(name, args)
}

// Snapshot returns the cached state of a query call, if any.
func (c *Client) Snapshot(name string, args any) (cache.Snapshot, bool, error) {
	key, err := c.Key(name, args)
	if err != nil {
		return cache.Snapshot{}, false, err
	}
	snap, ok := c.store.Entry(key)
	return snap, ok, nil
}

// Query subscribes, waits for a settled entry, and unsubscribes. Cached
// data that is still fresh is returned without a request. A failed fetch
// returns the entry error.
func (c *Client) Query(ctx context.Context, name string, args any) (Result, error) {
	sub, err := c.Subscribe(ctx, name, args)
	if err != nil {
		return Result{}, err
	}
	defer sub.Close()

	snap, err := sub.Wait(ctx)
	if err != nil {
		return Result{}, err
	}
	if snap.Status == cache.StatusError {
		return Result{}, snap.Err
	}
	return resultFromSnapshot(snap), nil
}

// Invalidate marks every entry providing any of tags as stale. Subscribed
// entries are refetched in the background, superseding any fetch in flight;
// the rest are refetched on next subscribe. It returns the affected keys.
func (c *Client) Invalidate(ctx context.Context, tags ...cache.Tag) []fingerprint.Key {
	invs := c.store.Invalidate(tags...)
	if len(invs) == 0 {
		return nil
	}

	keys := make([]fingerprint.Key, 0, len(invs))
	for _, inv := range invs {
		keys = append(keys, inv.Key)
		if inv.Subscribers == 0 {
			continue
		}
		def, err := c.definition(inv.Origin.Endpoint, endpoint.KindQuery)
		if err != nil {
			c.logger.Warn(ctx, "cannot refetch invalidated entry",
				observe.Field{Key: "key", Value: string(inv.Key)},
				observe.Field{Key: "error", Value: err},
			)
			continue
		}
		if _, err := c.fetch(ctx, def, inv.Key, inv.Origin, true); err != nil {
			c.logger.Debug(ctx, "refetch skipped",
				observe.Field{Key: "key", Value: string(inv.Key)},
				observe.Field{Key: "error", Value: err},
			)
		}
	}
	return keys
}

// RefetchActive refetches every subscribed entry, joining fetches already in
// flight, and waits for all of them. It is the hook for refetch on focus or
// reconnect. Fetch failures are recorded in the entries, not returned.
func (c *Client) RefetchActive(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	var startErr error
	for _, snap := range c.store.Active() {
		def, err := c.definition(snap.Origin.Endpoint, endpoint.KindQuery)
		if err != nil {
			continue
		}
		flight, err := c.fetch(ctx, def, snap.Key, snap.Origin, false)
		if err != nil {
			startErr = err
			break
		}
		g.Go(func() error {
			_, err := flight.Wait(gctx)
			if errors.Is(err, cache.ErrEvicted) {
				return nil
			}
			return err
		})
	}
	return errors.Join(startErr, g.Wait())
}

// Close stops grace timers, cancels fetches in flight, and waits for them
// to settle. The cache keeps its entries. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for key, t := range c.grace {
		t.Stop()
		delete(c.grace, key)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Client) definition(name string, kind endpoint.Kind) (*endpoint.Definition, error) {
	def, ok := c.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}
	if def.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, name, def.Kind)
	}
	return def, nil
}

// fetch starts or joins a fetch of key. With supersede set, a fetch already
// in flight is replaced and its result will be discarded.
func (c *Client) fetch(ctx context.Context, def *endpoint.Definition, key fingerprint.Key, origin cache.Origin, supersede bool) (*cache.Flight, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	requestID := c.newID()
	flight, owner := c.store.StartFetch(key, origin, requestID, supersede)
	if owner {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	op := observe.Query(def.Name, string(key))
	if !owner {
		c.metrics.RecordDeduplicated(ctx, op)
		return flight, nil
	}

	go c.run(ctx, def, key, origin.Args, requestID, op)
	return flight, nil
}

func (c *Client) run(parent context.Context, def *endpoint.Definition, key fingerprint.Key, args json.RawMessage, requestID string, op observe.Op) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()
	stop := context.AfterFunc(c.base, cancel)
	defer stop()
	if c.policy.FetchTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.policy.FetchTimeout)
		defer cancelTimeout()
	}

	data, err := c.send(ctx, def, args, op)
	out := cache.Failure(err)
	if err == nil {
		out = cache.Success(data, def.ProvidedTags(data, args)...)
	}

	if err := c.store.ResolveFetch(key, requestID, out); errors.Is(err, cache.ErrSuperseded) {
		c.metrics.RecordSuperseded(ctx, op)
		c.logger.Debug(ctx, "discarded superseded result",
			observe.Field{Key: "key", Value: string(key)},
			observe.Field{Key: "request_id", Value: requestID},
		)
	}
}

// send performs one request for def through the adapter.
func (c *Client) send(ctx context.Context, def *endpoint.Definition, args json.RawMessage, op observe.Op) (json.RawMessage, error) {
	return c.mw.Wrap(func(ctx context.Context, _ observe.Op) (json.RawMessage, error) {
		req, err := def.BuildRequest(args)
		if err != nil {
			return nil, err
		}
		if def.Anonymous {
			ctx = auth.WithAnonymous(ctx)
		}
		resp, err := c.adapter.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.JSON(), nil
	})(ctx, op)
}

// release drops one subscriber of key and schedules eviction at zero.
func (c *Client) release(def *endpoint.Definition, sub *cache.Subscription) {
	if c.store.Unsubscribe(sub) > 0 {
		return
	}

	key := sub.Key()
	grace := c.policy.EffectiveGrace(def.KeepUnusedFor)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if t, ok := c.grace[key]; ok {
		t.Stop()
		delete(c.grace, key)
	}
	if grace <= 0 {
		c.evict(def, key)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(grace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.grace[key] != t {
			return
		}
		delete(c.grace, key)
		c.evict(def, key)
	})
	c.grace[key] = t
}

// keep cancels a pending eviction of key.
func (c *Client) keep(key fingerprint.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.grace[key]; ok {
		t.Stop()
		delete(c.grace, key)
	}
}

// evict removes key unless it regained subscribers. Caller must hold c.mu.
func (c *Client) evict(def *endpoint.Definition, key fingerprint.Key) {
	if _, ok := c.store.Entry(key); !ok {
		return
	}
	if err := c.store.Evict(key); err != nil {
		return
	}
	op := observe.Query(def.Name, string(key))
	c.metrics.RecordEviction(c.base, op)
	c.logger.Debug(c.base, "evicted unused entry", observe.Field{Key: "key", Value: string(key)})
}
