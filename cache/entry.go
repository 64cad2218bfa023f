package cache

import (
	"encoding/json"
	"time"

	"github.com/jonwraymond/querycache/fingerprint"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// StatusIdle means the entry exists (usually because of a subscriber)
	// but has never been fetched.
	StatusIdle Status = iota
	// StatusLoading means a fetch is in flight.
	StatusLoading
	// StatusSuccess means the last fetch succeeded.
	StatusSuccess
	// StatusError means the last fetch failed.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Origin records which request produced an entry, so it can be refetched.
type Origin struct {
	Endpoint string
	Args     json.RawMessage
}

// Outcome is the normalized result of one fetch.
type Outcome struct {
	Data json.RawMessage
	Tags []Tag
	Err  error
}

// Success creates a successful outcome.
func Success(data json.RawMessage, tags ...Tag) Outcome {
	return Outcome{Data: data, Tags: tags}
}

// Failure creates a failed outcome.
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// Snapshot is an immutable view of an entry at one point in time.
// Data is shared with the store and must not be modified.
type Snapshot struct {
	Key         fingerprint.Key
	Origin      Origin
	Status      Status
	Data        json.RawMessage
	Err         error
	Tags        []Tag
	Subscribers int
	FetchedAt   time.Time
	RequestID   string
	Stale       bool
}

// IsLoading reports whether a fetch is in flight.
func (s Snapshot) IsLoading() bool {
	return s.Status == StatusLoading
}

// HasData reports whether a successful payload is available, possibly stale.
func (s Snapshot) HasData() bool {
	return s.Data != nil
}

// Decode unmarshals Data into v. It returns ErrNoData when nothing has been fetched.
func (s Snapshot) Decode(v any) error {
	if s.Data == nil {
		return ErrNoData
	}
	return json.Unmarshal(s.Data, v)
}

// entry is the mutable store record behind a Snapshot.
type entry struct {
	key       fingerprint.Key
	origin    Origin
	status    Status
	data      json.RawMessage
	err       error
	tags      []Tag
	fetchedAt time.Time
	inFlight  string
	flight    *flightState
	stale     bool
	subs      map[uint64]*Subscription
}

func (e *entry) snapshot() Snapshot {
	var tags []Tag
	if len(e.tags) > 0 {
		tags = make([]Tag, len(e.tags))
		copy(tags, e.tags)
	}
	return Snapshot{
		Key:         e.key,
		Origin:      e.origin,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		Tags:        tags,
		Subscribers: len(e.subs),
		FetchedAt:   e.fetchedAt,
		RequestID:   e.inFlight,
		Stale:       e.stale,
	}
}
