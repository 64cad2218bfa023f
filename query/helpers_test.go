package query

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/endpoint"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/transport"
)

const waitTimeout = 2 * time.Second

// call is one request held by scriptedAdapter until the test replies.
type call struct {
	ctx   context.Context
	req   *transport.Request
	reply chan reply
}

type reply struct {
	resp *transport.Response
	err  error
}

func (c *call) ok(body string) {
	c.reply <- reply{resp: &transport.Response{Status: http.StatusOK, Body: []byte(body)}}
}

func (c *call) fail(err error) {
	c.reply <- reply{err: err}
}

// scriptedAdapter hands every request to the test and blocks until the
// test replies or the request context ends.
type scriptedAdapter struct {
	calls chan *call
	count atomic.Int32
}

func newScriptedAdapter() *scriptedAdapter {
	return &scriptedAdapter{calls: make(chan *call, 64)}
}

func (a *scriptedAdapter) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	a.count.Add(1)
	c := &call{ctx: ctx, req: req, reply: make(chan reply, 1)}
	a.calls <- c
	select {
	case r := <-c.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *scriptedAdapter) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-a.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a request")
		return nil
	}
}

func (a *scriptedAdapter) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-a.calls:
		t.Fatalf("unexpected request %s %s", c.req.Method, c.req.Path)
	case <-time.After(30 * time.Millisecond):
	}
}

// recordingMetrics counts events and signals superseded results.
type recordingMetrics struct {
	fetches      atomic.Int32
	deduplicated atomic.Int32
	mutations    atomic.Int32
	evictions    atomic.Int32
	invalidated  atomic.Int32
	superseded   chan observe.Op
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{superseded: make(chan observe.Op, 16)}
}

func (m *recordingMetrics) RecordFetch(context.Context, observe.Op, time.Duration, error) {
	m.fetches.Add(1)
}

func (m *recordingMetrics) RecordDeduplicated(context.Context, observe.Op) {
	m.deduplicated.Add(1)
}

func (m *recordingMetrics) RecordSuperseded(_ context.Context, op observe.Op) {
	m.superseded <- op
}

func (m *recordingMetrics) RecordMutation(context.Context, observe.Op, time.Duration, error) {
	m.mutations.Add(1)
}

func (m *recordingMetrics) RecordInvalidation(_ context.Context, _ observe.Op, keys int) {
	m.invalidated.Add(int32(keys))
}

func (m *recordingMetrics) RecordEviction(context.Context, observe.Op) {
	m.evictions.Add(1)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testRegistry() *endpoint.Registry {
	return endpoint.MustRegistry(
		endpoint.Definition{
			Name:     "getUser",
			Path:     "/users/{id}",
			Provides: endpoint.ResultItemTags("User", "id"),
		},
		endpoint.Definition{
			Name:     "getUsers",
			Path:     "/users/",
			Query:    []string{"page"},
			Provides: endpoint.Combine(endpoint.Tags(cache.TypeTag("User")), endpoint.ResultItemTags("User", "#.id")),
		},
		endpoint.Definition{
			Name:           "updateUser",
			Kind:           endpoint.KindMutation,
			Method:         http.MethodPatch,
			Path:           "/users/{id}",
			OmitPathParams: true,
			Invalidates:    endpoint.ArgItemTag("User", "id"),
		},
		endpoint.Definition{
			Name:        "createUser",
			Kind:        endpoint.KindMutation,
			Path:        "/users/",
			Invalidates: endpoint.Tags(cache.TypeTag("User")),
		},
		endpoint.Definition{
			Name:      "login",
			Kind:      endpoint.KindMutation,
			Path:      "/auth/login/",
			Anonymous: true,
		},
	)
}

// longLived keeps unused entries around for the whole test.
var longLived = cache.Policy{GracePeriod: time.Hour}

func newTestClient(t *testing.T, adapter transport.Adapter, opts ...Option) *Client {
	t.Helper()
	c, err := New(adapter, testRegistry(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// nextUpdate reads the next snapshot from a subscription.
func nextUpdate(t *testing.T, sub *Subscription) cache.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		if !ok {
			t.Fatal("updates channel closed")
		}
		return snap
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an update")
		return cache.Snapshot{}
	}
}
