// Package resilience provides the guards that sit around the transport and
// the dispatcher.
//
//   - CircuitBreaker: fails fast while a backend keeps returning transport
//     errors or 5xx responses
//   - RateLimiter: token bucket pacing of outgoing calls
//   - Bulkhead: bounds concurrent dispatches
//   - Backoff: delay schedule for explicit retry policies
//
// None of these retry on their own. Resubmission is decided only by a
// retry policy returned from a middleware.
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("shop-api"))
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 50, Burst: 10})
//
//	if err := rl.Wait(ctx); err != nil {
//	    return err
//	}
//	err := cb.Execute(func() error { return send(req) })
package resilience
