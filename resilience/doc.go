// Package resilience wraps outbound API calls with delivery policies.
//
// The transport adapter runs every request through an Executor, which chains
// the configured stages around the call:
//
//   - Limiter: token-bucket pacing of request starts, so a burst of refetches
//     (reconnect, focus) does not flood the API.
//   - Gate: caps the number of requests in flight.
//   - CircuitBreaker: stops calling an API that keeps failing and probes it
//     again after a cool-down.
//   - Retry: retries attempts whose error the caller classifies as transient.
//   - Timeout: bounds each attempt so every request resolves.
//
// Stages are independent and may be used on their own:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithLimiter(resilience.NewLimiter(resilience.LimiterConfig{Rate: 20, Burst: 5})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{RetryIf: isTransient})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return send(ctx)
//	})
package resilience
