package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/querycache/fingerprint"
)

var testOrigin = Origin{Endpoint: "getUser", Args: json.RawMessage(`{"id":7}`)}

const testKey fingerprint.Key = `getUser({"id":7})`

func TestStore_EntryOnEmptyStore(t *testing.T) {
	s := NewStore()

	if _, ok := s.Entry(testKey); ok {
		t.Error("Entry on empty store should return ok=false")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_StartFetchCreatesLoadingEntry(t *testing.T) {
	s := NewStore()

	flight, started := s.StartFetch(testKey, testOrigin, "req-1", false)
	if !started {
		t.Fatal("StartFetch on absent entry should start a fetch")
	}
	if flight.RequestID() != "req-1" {
		t.Errorf("RequestID() = %q, want req-1", flight.RequestID())
	}

	snap, ok := s.Entry(testKey)
	if !ok {
		t.Fatal("entry should exist after StartFetch")
	}
	if snap.Status != StatusLoading {
		t.Errorf("Status = %v, want loading", snap.Status)
	}
	if snap.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", snap.RequestID)
	}
	if snap.HasData() {
		t.Error("new entry should have no data")
	}
	if snap.Origin.Endpoint != "getUser" {
		t.Errorf("Origin.Endpoint = %q, want getUser", snap.Origin.Endpoint)
	}
}

func TestStore_StartFetchIdempotentForSameRequest(t *testing.T) {
	s := NewStore()

	f1, started1 := s.StartFetch(testKey, testOrigin, "req-1", false)
	f2, started2 := s.StartFetch(testKey, testOrigin, "req-1", true)

	if !started1 || started2 {
		t.Fatalf("started = %v, %v; want true, false", started1, started2)
	}
	if f1.Done() != f2.Done() {
		t.Error("same request id should share the flight")
	}
}

func TestStore_StartFetchAttachesWithoutSupersede(t *testing.T) {
	s := NewStore()

	f1, _ := s.StartFetch(testKey, testOrigin, "req-1", false)
	f2, started := s.StartFetch(testKey, testOrigin, "req-2", false)

	if started {
		t.Error("second StartFetch without supersede should attach, not start")
	}
	if f2.RequestID() != "req-1" {
		t.Errorf("attached flight RequestID = %q, want req-1", f2.RequestID())
	}
	if f1.Done() != f2.Done() {
		t.Error("attached callers should share the flight")
	}
}

func TestStore_EmptyRequestIDOnlyAttaches(t *testing.T) {
	s := NewStore()

	if f, started := s.StartFetch(testKey, testOrigin, "", false); f != nil || started {
		t.Errorf("StartFetch(\"\") on absent entry = %v, %v; want nil, false", f, started)
	}
	if s.Len() != 0 {
		t.Error("attach-only StartFetch must not create entries")
	}

	s.StartFetch(testKey, testOrigin, "req-1", false)
	f, started := s.StartFetch(testKey, testOrigin, "", true)
	if f == nil || started || f.RequestID() != "req-1" {
		t.Errorf("StartFetch(\"\") in flight = %v, %v; want attach to req-1", f, started)
	}
}

func TestStore_ResolveSuccess(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return now }))

	flight, _ := s.StartFetch(testKey, testOrigin, "req-1", false)
	err := s.ResolveFetch(testKey, "req-1", Success(json.RawMessage(`{"id":7,"name":"A"}`), ItemTag("User", 7)))
	if err != nil {
		t.Fatalf("ResolveFetch() error = %v", err)
	}

	snap, err := flight.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.Status != StatusSuccess {
		t.Errorf("Status = %v, want success", snap.Status)
	}
	if string(snap.Data) != `{"id":7,"name":"A"}` {
		t.Errorf("Data = %s", snap.Data)
	}
	if snap.RequestID != "" {
		t.Errorf("RequestID = %q, want cleared", snap.RequestID)
	}
	if !snap.FetchedAt.Equal(now) {
		t.Errorf("FetchedAt = %v, want %v", snap.FetchedAt, now)
	}
	if got := s.Resolve(ItemTag("User", 7)); len(got) != 1 || got[0] != testKey {
		t.Errorf("Resolve(User:7) = %v, want [%s]", got, testKey)
	}

	var user struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := snap.Decode(&user); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if user.ID != 7 || user.Name != "A" {
		t.Errorf("decoded = %+v", user)
	}
}

func TestStore_ResolveFailureKeepsData(t *testing.T) {
	s := NewStore()

	s.StartFetch(testKey, testOrigin, "req-1", false)
	_ = s.ResolveFetch(testKey, "req-1", Success(json.RawMessage(`{"v":1}`), ItemTag("User", 7)))

	s.StartFetch(testKey, testOrigin, "req-2", false)
	loading, _ := s.Entry(testKey)
	if string(loading.Data) != `{"v":1}` {
		t.Errorf("data should stay visible while loading, got %s", loading.Data)
	}

	failure := errors.New("boom")
	if err := s.ResolveFetch(testKey, "req-2", Failure(failure)); err != nil {
		t.Fatalf("ResolveFetch() error = %v", err)
	}

	snap, _ := s.Entry(testKey)
	if snap.Status != StatusError {
		t.Errorf("Status = %v, want error", snap.Status)
	}
	if !errors.Is(snap.Err, failure) {
		t.Errorf("Err = %v, want %v", snap.Err, failure)
	}
	if string(snap.Data) != `{"v":1}` {
		t.Errorf("previous data should be kept on failure, got %s", snap.Data)
	}
	if len(snap.Tags) != 1 {
		t.Errorf("previous tags should be kept on failure, got %v", snap.Tags)
	}
}

func TestStore_RetryClearsPreviousError(t *testing.T) {
	s := NewStore()

	s.StartFetch(testKey, testOrigin, "req-1", false)
	_ = s.ResolveFetch(testKey, "req-1", Failure(errors.New("boom")))

	s.StartFetch(testKey, testOrigin, "req-2", false)
	snap, _ := s.Entry(testKey)
	if snap.Status != StatusLoading {
		t.Fatalf("Status = %v, want loading", snap.Status)
	}
	if snap.Err != nil {
		t.Errorf("loading snapshot Err = %v, want nil", snap.Err)
	}
}

func TestStore_SubscribeFetch(t *testing.T) {
	always := func(Snapshot) bool { return true }
	never := func(Snapshot) bool { return false }

	t.Run("first subscriber starts", func(t *testing.T) {
		s := NewStore()
		sub, snap, flight := s.SubscribeFetch(testKey, testOrigin, "req-1", always)
		defer s.Unsubscribe(sub)

		if flight == nil || flight.RequestID() != "req-1" {
			t.Fatalf("flight = %+v, want req-1", flight)
		}
		if snap.Status != StatusLoading || snap.Subscribers != 1 {
			t.Errorf("snapshot = %v subs:%d, want loading subs:1", snap.Status, snap.Subscribers)
		}
	})

	t.Run("later subscriber joins", func(t *testing.T) {
		s := NewStore()
		first, _, _ := s.SubscribeFetch(testKey, testOrigin, "req-1", always)
		sub, snap, flight := s.SubscribeFetch(testKey, testOrigin, "req-2", always)
		defer s.Unsubscribe(first)
		defer s.Unsubscribe(sub)

		if flight != nil {
			t.Errorf("second subscriber started %q", flight.RequestID())
		}
		if !snap.IsLoading() || snap.RequestID != "req-1" {
			t.Errorf("snapshot = %v %q, want loading req-1", snap.Status, snap.RequestID)
		}
	})

	t.Run("fresh entry is not fetched", func(t *testing.T) {
		s := NewStore()
		s.StartFetch(testKey, testOrigin, "req-1", false)
		_ = s.ResolveFetch(testKey, "req-1", Success(json.RawMessage(`{}`)))

		sub, snap, flight := s.SubscribeFetch(testKey, testOrigin, "req-2", never)
		defer s.Unsubscribe(sub)
		if flight != nil || snap.Status != StatusSuccess {
			t.Errorf("flight = %v status = %v, want none and success", flight, snap.Status)
		}
	})
}

func TestStore_SupersededResultDiscarded(t *testing.T) {
	s := NewStore()

	fa, _ := s.StartFetch(testKey, testOrigin, "A", false)
	fb, started := s.StartFetch(testKey, testOrigin, "B", true)
	if !started {
		t.Fatal("superseding StartFetch should start")
	}

	if err := s.ResolveFetch(testKey, "B", Success(json.RawMessage(`"from B"`))); err != nil {
		t.Fatalf("ResolveFetch(B) error = %v", err)
	}
	err := s.ResolveFetch(testKey, "A", Success(json.RawMessage(`"from A"`)))
	if !errors.Is(err, ErrSuperseded) {
		t.Errorf("ResolveFetch(A) error = %v, want ErrSuperseded", err)
	}

	snap, _ := s.Entry(testKey)
	if string(snap.Data) != `"from B"` {
		t.Errorf("Data = %s, want B's result", snap.Data)
	}

	// Waiters on A observe B's result.
	ra, _ := fa.Wait(context.Background())
	rb, _ := fb.Wait(context.Background())
	if string(ra.Data) != `"from B"` || string(rb.Data) != `"from B"` {
		t.Errorf("waiters saw %s and %s, want B's result", ra.Data, rb.Data)
	}
}

func TestStore_SupersededBeforeNewerResolves(t *testing.T) {
	s := NewStore()

	s.StartFetch(testKey, testOrigin, "A", false)
	s.StartFetch(testKey, testOrigin, "B", true)

	// A arrives first but is no longer current.
	if err := s.ResolveFetch(testKey, "A", Success(json.RawMessage(`1`))); !errors.Is(err, ErrSuperseded) {
		t.Errorf("ResolveFetch(A) error = %v, want ErrSuperseded", err)
	}
	snap, _ := s.Entry(testKey)
	if snap.Status != StatusLoading || snap.RequestID != "B" {
		t.Errorf("entry = %v/%q, want loading under B", snap.Status, snap.RequestID)
	}
}

func TestStore_ResolveUnknownKey(t *testing.T) {
	s := NewStore()

	if err := s.ResolveFetch(testKey, "x", Success(nil)); !errors.Is(err, ErrSuperseded) {
		t.Errorf("ResolveFetch() on absent key error = %v, want ErrSuperseded", err)
	}
}

func TestStore_NilDataOnSuccessIsNull(t *testing.T) {
	s := NewStore()

	s.StartFetch(testKey, testOrigin, "r", false)
	_ = s.ResolveFetch(testKey, "r", Success(nil))

	snap, _ := s.Entry(testKey)
	if !snap.HasData() || string(snap.Data) != "null" {
		t.Errorf("Data = %q, want null", snap.Data)
	}
}

func TestStore_EvictRejectedWithSubscribers(t *testing.T) {
	s := NewStore()

	sub, _, _ := s.Subscribe(testKey, testOrigin)
	if err := s.Evict(testKey); !errors.Is(err, ErrSubscribed) {
		t.Errorf("Evict() error = %v, want ErrSubscribed", err)
	}
	if _, ok := s.Entry(testKey); !ok {
		t.Error("entry should survive a rejected eviction")
	}

	s.Unsubscribe(sub)
	if err := s.Evict(testKey); err != nil {
		t.Errorf("Evict() error = %v", err)
	}
	if _, ok := s.Entry(testKey); ok {
		t.Error("entry should be gone after eviction")
	}
}

func TestStore_EvictRemovesTagMemberships(t *testing.T) {
	s := NewStore()

	s.StartFetch(testKey, testOrigin, "r", false)
	_ = s.ResolveFetch(testKey, "r", Success(json.RawMessage(`{}`), ItemTag("User", 7), TypeTag("User")))

	if err := s.Evict(testKey); err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if got := s.Resolve(TypeTag("User")); len(got) != 0 {
		t.Errorf("Resolve() after eviction = %v", got)
	}
	if got := s.Tags(testKey); got != nil {
		t.Errorf("Tags() after eviction = %v", got)
	}
}

func TestStore_EvictReleasesWaiters(t *testing.T) {
	s := NewStore()

	flight, _ := s.StartFetch(testKey, testOrigin, "r", false)
	if err := s.Evict(testKey); err != nil {
		t.Fatalf("Evict() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := flight.Wait(ctx); !errors.Is(err, ErrEvicted) {
		t.Errorf("Wait() error = %v, want ErrEvicted", err)
	}

	// The late result is discarded.
	if err := s.ResolveFetch(testKey, "r", Success(nil)); !errors.Is(err, ErrSuperseded) {
		t.Errorf("late ResolveFetch() error = %v, want ErrSuperseded", err)
	}
}

func TestStore_EvictAbsentIsNoop(t *testing.T) {
	s := NewStore()
	if err := s.Evict(testKey); err != nil {
		t.Errorf("Evict() on absent key error = %v", err)
	}
}

func TestStore_SubscriberCount(t *testing.T) {
	s := NewStore()

	sub1, snap, first := s.Subscribe(testKey, testOrigin)
	if !first || snap.Subscribers != 1 || snap.Status != StatusIdle {
		t.Fatalf("first Subscribe = first:%v subs:%d status:%v", first, snap.Subscribers, snap.Status)
	}
	sub2, snap, first := s.Subscribe(testKey, testOrigin)
	if first || snap.Subscribers != 2 {
		t.Fatalf("second Subscribe = first:%v subs:%d", first, snap.Subscribers)
	}

	if left := s.Unsubscribe(sub1); left != 1 {
		t.Errorf("Unsubscribe() = %d, want 1", left)
	}
	if left := s.Unsubscribe(sub1); left != 1 {
		t.Errorf("double Unsubscribe() = %d, want 1", left)
	}
	if left := s.Unsubscribe(sub2); left != 0 {
		t.Errorf("Unsubscribe() = %d, want 0", left)
	}

	if _, open := <-sub1.Updates(); open {
		// drain the pending snapshot, then expect closed
		if _, open := <-sub1.Updates(); open {
			t.Error("Updates should be closed after Unsubscribe")
		}
	}
}

func TestStore_UpdatesDeliverLatestSnapshot(t *testing.T) {
	s := NewStore()

	sub, _, _ := s.Subscribe(testKey, testOrigin)
	s.StartFetch(testKey, testOrigin, "r", false)
	_ = s.ResolveFetch(testKey, "r", Success(json.RawMessage(`42`)))

	select {
	case snap := <-sub.Updates():
		if snap.Status != StatusSuccess || string(snap.Data) != "42" {
			t.Errorf("latest snapshot = %v %s, want success 42", snap.Status, snap.Data)
		}
	default:
		t.Fatal("expected a pending snapshot")
	}

	select {
	case snap := <-sub.Updates():
		t.Errorf("unexpected extra snapshot %v", snap.Status)
	default:
	}
}

func TestStore_InvalidateMarksStale(t *testing.T) {
	s := NewStore()

	sub, _, _ := s.Subscribe(testKey, testOrigin)
	s.StartFetch(testKey, testOrigin, "r", false)
	_ = s.ResolveFetch(testKey, "r", Success(json.RawMessage(`{}`), ItemTag("User", 7)))

	other := fingerprint.Key("getUser(8)")
	s.StartFetch(other, Origin{Endpoint: "getUser"}, "r2", false)
	_ = s.ResolveFetch(other, "r2", Success(json.RawMessage(`{}`), ItemTag("User", 8)))

	inv := s.Invalidate(ItemTag("User", 7))
	if len(inv) != 1 {
		t.Fatalf("Invalidate() = %v, want one entry", inv)
	}
	if inv[0].Key != testKey || inv[0].Subscribers != 1 || inv[0].Origin.Endpoint != "getUser" {
		t.Errorf("Invalidation = %+v", inv[0])
	}

	snap, _ := s.Entry(testKey)
	if !snap.Stale || snap.Status != StatusSuccess {
		t.Errorf("entry = stale:%v status:%v, want stale success", snap.Stale, snap.Status)
	}
	if otherSnap, _ := s.Entry(other); otherSnap.Stale {
		t.Error("unrelated entry should not be stale")
	}

	// A successful refetch clears the stale mark.
	s.StartFetch(testKey, testOrigin, "r3", true)
	_ = s.ResolveFetch(testKey, "r3", Success(json.RawMessage(`{}`), ItemTag("User", 7)))
	if snap, _ := s.Entry(testKey); snap.Stale {
		t.Error("stale mark should be cleared by a successful fetch")
	}
	s.Unsubscribe(sub)
}

func TestStore_ActiveAndKeys(t *testing.T) {
	s := NewStore()

	sub, _, _ := s.Subscribe("b", Origin{Endpoint: "b"})
	s.StartFetch("a", Origin{Endpoint: "a"}, "r", false)

	if keys := s.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v", keys)
	}
	active := s.Active()
	if len(active) != 1 || active[0].Key != "b" {
		t.Errorf("Active() = %v", active)
	}
	s.Unsubscribe(sub)
	if len(s.Active()) != 0 {
		t.Error("Active() should be empty after unsubscribe")
	}
}

func TestStore_FlightWaitHonorsContext(t *testing.T) {
	s := NewStore()

	flight, _ := s.StartFetch(testKey, testOrigin, "r", false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := flight.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()

	const numGoroutines = 50
	const opsPerGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fingerprint.Key(fmt.Sprintf("k%d", j%5))
				reqID := fmt.Sprintf("%d-%d", id, j)

				switch j % 5 {
				case 0:
					s.StartFetch(key, Origin{Endpoint: "k"}, reqID, j%2 == 0)
				case 1:
					if snap, ok := s.Entry(key); ok && snap.RequestID != "" {
						_ = s.ResolveFetch(key, snap.RequestID, Success(json.RawMessage(`1`), TypeTag("T")))
					}
				case 2:
					sub, _, _ := s.Subscribe(key, Origin{Endpoint: "k"})
					s.Unsubscribe(sub)
				case 3:
					s.Invalidate(TypeTag("T"))
				case 4:
					_ = s.Evict(key)
				}
			}
		}(i)
	}

	wg.Wait()
}
