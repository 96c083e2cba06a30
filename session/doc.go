// Package session keeps the signed-in user's tokens and refreshes them when
// the server rejects a request as unauthorized.
//
// Many requests may fail with 401 or 403 at the same time. The Coordinator
// makes exactly one refresh-token call for all of them: the first caller
// becomes the leader and performs the refresh, every caller that arrives
// while it is in flight becomes a follower and waits for its outcome. On
// success every request is resubmitted with the new access token. On
// failure the session is closed, a best-effort remote logout is attempted,
// and every request fails with the same SESSION_REFRESH_FAILED error.
//
// The Middleware plugs the coordinator into a pipeline.Dispatcher:
//
//	coord := session.NewCoordinator(tokens, authClient,
//	    session.WithLogoutClient(authClient),
//	    session.WithPublisher(bus),
//	)
//	d := pipeline.NewDispatcher(adapter, []pipeline.Middleware{
//	    session.NewMiddleware(coord, cfg),
//	})
package session
