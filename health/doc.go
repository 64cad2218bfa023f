// Package health reports whether a query client can do its job: the API is
// reachable, a session is stored and unexpired, and the cache holds no
// failed entries.
//
// Checkers are combined with an Aggregator:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewAPIChecker(adapter, "/"))
//	agg.Register(health.NewSessionChecker(session))
//	agg.Register(health.NewCacheChecker(client.Store()))
//
//	results := agg.CheckAll(ctx)
//	fmt.Println(health.Overall(results))
//
// The same aggregator backs the /healthz, /readyz and /health handlers.
package health
