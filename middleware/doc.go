// Package middleware provides the pipeline middlewares that sit next to the
// session middleware in a shop client: request IDs, app-version headers,
// response logging and the force-update gate.
//
// Register them with a pipeline.Dispatcher in this order:
//
//	[]pipeline.Middleware{
//	    middleware.NewRequestID(),
//	    middleware.NewAppVersion("shop"),
//	    middleware.NewLogging(log),
//	    middleware.NewForceUpdate(cfg.ForceUpdate, bus),
//	    session.NewMiddleware(coord, cfg.Session),
//	}
//
// Logging comes before ForceUpdate so that rejected responses are logged
// too, and ForceUpdate comes before the session middleware so that an
// outdated client never triggers a refresh.
package middleware
