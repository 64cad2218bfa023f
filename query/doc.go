// Package query is the consumer-facing side of the cache: it turns endpoint
// calls into cache keys, runs fetches through the transport adapter, and
// keeps cache.Store entries alive for as long as someone subscribes to them.
//
// Queries are read with Subscribe (a live handle that re-delivers the latest
// snapshot on every change) or Query (one-shot). Concurrent subscribers of
// one key share a single fetch. Entries nobody subscribes to are evicted
// after the endpoint's grace period.
//
// Mutations are sent with Mutate or through a Mutation handle. A successful
// mutation invalidates the tags its endpoint declares: subscribed entries
// refetch in the background while keeping their data visible, and
// unsubscribed entries are marked stale and refetched on next use.
package query
