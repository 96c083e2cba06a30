// Package client assembles a shop API client from configuration: the HTTP
// adapter, the auth endpoints, the session coordinator and the middleware
// chain, in the order
//
//	request_id → app_version → logging → force_update → session
//
// A Client is itself a component. Start builds the transport, Login or
// Resume opens a session, and Stop logs out and releases everything.
//
//	cfg, err := client.Load("shopdemo")
//	c, err := client.New(*cfg, client.WithLogger(log))
//	if err := c.Start(ctx); err != nil { ... }
//	defer c.Stop(ctx)
//	if err := c.Login(ctx, "ada", "secret"); err != nil { ... }
//	orders, err := rest.Get[[]Order](ctx, c, "/api/orders", rest.WithSession())
package client
