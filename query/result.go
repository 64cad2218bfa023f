package query

import (
	"encoding/json"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/fingerprint"
)

// Result is the payload of a settled query or mutation.
type Result struct {
	Endpoint string
	Data     json.RawMessage

	// Key is set for queries.
	Key fingerprint.Key

	// Tags are the tags a query result provides.
	Tags []cache.Tag

	// Invalidated lists the cache keys a mutation invalidated.
	Invalidated []fingerprint.Key
}

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	if r.Data == nil {
		return cache.ErrNoData
	}
	return json.Unmarshal(r.Data, v)
}

func resultFromSnapshot(snap cache.Snapshot) Result {
	return Result{
		Endpoint: snap.Origin.Endpoint,
		Data:     snap.Data,
		Key:      snap.Key,
		Tags:     snap.Tags,
	}
}
