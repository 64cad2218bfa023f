// Package cache holds query state for the client: a Store of entries keyed by
// request fingerprint, a TagIndex that maps resource tags to the keys that
// provide them, and the listener handles used to observe entry transitions.
//
// The Store performs no I/O. Callers run network requests themselves and
// report outcomes through StartFetch and ResolveFetch; the Store enforces one
// in-flight request per key and discards superseded results.
package cache
