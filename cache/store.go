package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/fingerprint"
)

// Invalidation describes one entry hit by a tag invalidation.
type Invalidation struct {
	Key         fingerprint.Key
	Origin      Origin
	Subscribers int
}

// Store is the single source of truth for query status and data.
//
// Contract:
// - Concurrency: safe for concurrent use; every operation is atomic with
//   respect to the others, so readers never observe a half-applied transition.
// - Errors: operations never panic; failures are returned as values or
//   recorded as entry state.
// - Ownership: entries are owned by the store; callers only see Snapshots.
type Store struct {
	mu      sync.Mutex
	entries map[fingerprint.Key]*entry
	index   *TagIndex
	nextSub uint64
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source used for FetchedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[fingerprint.Key]*entry),
		index:   NewTagIndex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entry returns a snapshot of the entry for key. No side effects.
func (s *Store) Entry(key fingerprint.Key) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// StartFetch transitions key to loading under requestID, creating the entry
// if needed. It returns the flight to wait on and whether the caller must
// perform the network call.
//
//   - requestID already in flight: idempotent, returns (flight, false).
//   - another fetch in flight and supersede is false: the caller attaches to
//     it, returns (flight, false).
//   - another fetch in flight and supersede is true: requestID replaces it;
//     the older result will be discarded on arrival. Returns (flight, true).
//
// An empty requestID only attaches; it returns (nil, false) when nothing is
// in flight.
func (s *Store) StartFetch(key fingerprint.Key, origin Origin, requestID string, supersede bool) (*Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		if requestID == "" {
			return nil, false
		}
		e = s.newEntryLocked(key, origin)
	}

	if e.inFlight != "" {
		if requestID == "" || requestID == e.inFlight || !supersede {
			return &Flight{key: key, requestID: e.inFlight, state: e.flight}, false
		}
		e.inFlight = requestID
		e.notifyLocked(e.snapshot())
		return &Flight{key: key, requestID: requestID, state: e.flight}, true
	}

	if requestID == "" {
		return nil, false
	}

	if e.origin.Endpoint == "" {
		e.origin = origin
	}
	return e.startLocked(requestID), true
}

// startLocked moves an idle entry to loading under requestID. The previous
// error is dropped; data stays for stale-while-revalidate. Caller must hold
// the store lock.
func (e *entry) startLocked(requestID string) *Flight {
	e.status = StatusLoading
	e.err = nil
	e.inFlight = requestID
	e.flight = newFlightState()
	e.notifyLocked(e.snapshot())
	return &Flight{key: e.key, requestID: requestID, state: e.flight}
}

// ResolveFetch applies the outcome of requestID. If requestID is no longer
// the entry's in-flight request, the outcome is discarded and ErrSuperseded
// is returned.
//
// Success replaces data and tags, clears the stale mark and records the
// fetch time. Failure records the error and keeps the previous data and tags
// so consumers can keep showing them.
func (s *Store) ResolveFetch(key fingerprint.Key, requestID string, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.inFlight == "" || e.inFlight != requestID {
		return ErrSuperseded
	}

	if out.Err != nil {
		e.status = StatusError
		e.err = out.Err
	} else {
		e.status = StatusSuccess
		e.err = nil
		e.data = out.Data
		if e.data == nil {
			e.data = json.RawMessage("null")
		}
		e.tags = normalizeTags(out.Tags)
		s.index.Index(key, e.tags)
		e.fetchedAt = s.now()
		e.stale = false
	}
	e.inFlight = ""

	snap := e.snapshot()
	if e.flight != nil {
		e.flight.settle(snap, nil)
		e.flight = nil
	}
	e.notifyLocked(snap)

	return nil
}

// Evict removes the entry and all of its tag memberships. It fails with
// ErrSubscribed while the entry has subscribers. Evicting an absent key is a
// no-op. Waiters of an in-flight fetch are released with ErrEvicted.
func (s *Store) Evict(key fingerprint.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if len(e.subs) > 0 {
		return ErrSubscribed
	}

	delete(s.entries, key)
	s.index.Remove(key)

	if e.flight != nil {
		e.inFlight = ""
		e.flight.settle(e.snapshot(), ErrEvicted)
		e.flight = nil
	}
	return nil
}

// Subscribe registers a listener on key, creating an idle entry if needed.
// It returns the listener, the current snapshot, and whether this is the
// only subscriber.
func (s *Store) Subscribe(key fingerprint.Key, origin Origin) (*Subscription, Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = s.newEntryLocked(key, origin)
	} else if e.origin.Endpoint == "" {
		e.origin = origin
	}

	s.nextSub++
	sub := newSubscription(s.nextSub, key)
	e.subs[sub.id] = sub

	snap := e.snapshot()
	e.notifyLocked(snap)

	return sub, snap, len(e.subs) == 1
}

// SubscribeFetch registers a listener like Subscribe and, in the same
// critical section, starts a fetch under requestID when the listener is the
// only subscriber, nothing is in flight and needsFetch reports true for the
// current snapshot. It returns the listener, the snapshot after any
// transition, and the started flight or nil.
func (s *Store) SubscribeFetch(key fingerprint.Key, origin Origin, requestID string, needsFetch func(Snapshot) bool) (*Subscription, Snapshot, *Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = s.newEntryLocked(key, origin)
	} else if e.origin.Endpoint == "" {
		e.origin = origin
	}

	s.nextSub++
	sub := newSubscription(s.nextSub, key)
	e.subs[sub.id] = sub

	var flight *Flight
	snap := e.snapshot()
	if len(e.subs) == 1 && e.inFlight == "" && requestID != "" && needsFetch != nil && needsFetch(snap) {
		flight = e.startLocked(requestID)
		return sub, e.snapshot(), flight
	}
	e.notifyLocked(snap)
	return sub, snap, nil
}

// Unsubscribe removes a listener and closes its channel. It returns the
// number of subscribers left. Unsubscribing twice is a no-op.
func (s *Store) Unsubscribe(sub *Subscription) int {
	if sub == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sub.key]
	if !ok {
		return 0
	}
	if _, live := e.subs[sub.id]; !live {
		return len(e.subs)
	}

	delete(e.subs, sub.id)
	close(sub.ch)

	if len(e.subs) > 0 {
		e.notifyLocked(e.snapshot())
	}
	return len(e.subs)
}

// Invalidate marks every entry providing any of tags as stale and returns
// them with their subscriber counts. Data is left in place.
func (s *Store) Invalidate(tags ...Tag) []Invalidation {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.index.Resolve(tags...)
	if len(keys) == 0 {
		return nil
	}

	out := make([]Invalidation, 0, len(keys))
	for _, key := range keys {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		e.stale = true
		e.notifyLocked(e.snapshot())
		out = append(out, Invalidation{
			Key:         key,
			Origin:      e.origin,
			Subscribers: len(e.subs),
		})
	}
	return out
}

// Resolve returns the keys currently providing any of tags.
func (s *Store) Resolve(tags ...Tag) []fingerprint.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Resolve(tags...)
}

// Tags returns the tags key is indexed under.
func (s *Store) Tags(key fingerprint.Key) []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Tags(key)
}

// Active returns snapshots of every entry with at least one subscriber.
func (s *Store) Active() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Snapshot
	for _, e := range s.entries {
		if len(e.subs) > 0 {
			out = append(out, e.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Keys returns all cached keys, sorted.
func (s *Store) Keys() []fingerprint.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[fingerprint.Key]struct{}, len(s.entries))
	for k := range s.entries {
		set[k] = struct{}{}
	}
	return sortedKeys(set)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) newEntryLocked(key fingerprint.Key, origin Origin) *entry {
	e := &entry{
		key:    key,
		origin: origin,
		status: StatusIdle,
		subs:   make(map[uint64]*Subscription),
	}
	s.entries[key] = e
	return e
}

// notifyLocked pushes snap to every listener. Caller must hold the store lock.
func (e *entry) notifyLocked(snap Snapshot) {
	for _, sub := range e.subs {
		sub.push(snap)
	}
}
