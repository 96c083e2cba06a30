// Package httpclient is the transport at the end of the request pipeline.
//
// An Adapter turns a pipeline.Request into one net/http round trip and
// returns whatever the server answered. It never retries and never
// classifies statuses; both are the pipeline's job. Optional guards sit in
// front of the call: a rate limiter and a circuit breaker that opens on
// transport failures and 5xx responses.
//
//	adapter, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.shop.example",
//	    Timeout: 15 * time.Second,
//	})
//	d := pipeline.NewDispatcher(adapter, middlewares)
package httpclient
