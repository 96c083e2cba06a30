// Package pipeline runs HTTP requests through an ordered chain of
// middlewares.
//
// A Dispatcher applies every middleware whose request predicate matches,
// hands the request to an Executor, then offers the response to every
// middleware whose response predicate matches, in order. A middleware either
// passes the response on (Success), stops with an error (Fail), or asks for
// the request to be sent again after a recovery action (Retry). Retries are
// bounded by the RetryPolicy the middleware returns; nothing else in the
// stack resubmits a request.
//
//	d := pipeline.NewDispatcher(executor, []pipeline.Middleware{
//	    middleware.NewRequestID(),
//	    middleware.NewForceUpdate(bus),
//	    session.NewMiddleware(coordinator, 1),
//	})
//	resp, err := d.Dispatch(ctx, pipeline.NewRequest(http.MethodGet, "/cart").WithSession())
package pipeline
