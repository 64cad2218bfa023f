package cache

import (
	"context"

	"github.com/jonwraymond/querycache/fingerprint"
)

// flightState is shared by every waiter of one loading period of an entry.
// A superseding fetch keeps the same state, so earlier waiters observe the
// final result rather than the discarded one.
type flightState struct {
	done   chan struct{}
	result Snapshot
	err    error
}

func newFlightState() *flightState {
	return &flightState{done: make(chan struct{})}
}

// settle records the final snapshot and releases all waiters.
// Caller must hold the store lock.
func (f *flightState) settle(snap Snapshot, err error) {
	f.result = snap
	f.err = err
	close(f.done)
}

// Flight is a handle on an in-flight fetch. Many callers may hold handles on
// the same flight; they all observe the same settled snapshot.
type Flight struct {
	key       fingerprint.Key
	requestID string
	state     *flightState
}

// Key returns the cache key being fetched.
func (f *Flight) Key() fingerprint.Key {
	return f.key
}

// RequestID returns the request id this handle was issued for. When the
// flight was later superseded, the settled snapshot carries the newer result.
func (f *Flight) RequestID() string {
	return f.requestID
}

// Done is closed when the entry leaves the loading state.
func (f *Flight) Done() <-chan struct{} {
	return f.state.done
}

// Wait blocks until the flight settles or ctx is done. The returned error is
// ErrEvicted if the entry was evicted mid-flight, or ctx.Err(). Fetch
// failures are reported in the snapshot (StatusError, Err), not here.
func (f *Flight) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-f.state.done:
		return f.state.result, f.state.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
