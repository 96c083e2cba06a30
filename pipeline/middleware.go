package pipeline

import "context"

// Middleware transforms requests before they are sent and decides what to
// do with responses. Implementations must be safe for concurrent use.
//
// ProcessRequest must be idempotent: it runs again on every retry of the
// same request. ProcessResponse should not panic; the dispatcher turns a
// panic into an internal failure of that request.
type Middleware interface {
	ShouldProcessRequest(req *Request) bool
	ProcessRequest(req *Request) *Request
	ShouldProcessResponse(resp *Response) bool
	ProcessResponse(ctx context.Context, resp *Response) Result
}

// Guard is implemented by middlewares that can refuse a matching request
// before it is sent. A non-nil error fails the dispatch without a transport
// call. CheckRequest runs before ProcessRequest on every attempt.
type Guard interface {
	CheckRequest(req *Request) error
}

// Named is implemented by middlewares that want a name in logs and spans.
type Named interface {
	Name() string
}

// PassThrough is a Middleware that matches nothing. Embed it and override
// only the side a middleware cares about.
type PassThrough struct{}

func (PassThrough) ShouldProcessRequest(*Request) bool  { return false }
func (PassThrough) ProcessRequest(req *Request) *Request { return req }
func (PassThrough) ShouldProcessResponse(*Response) bool { return false }

func (PassThrough) ProcessResponse(_ context.Context, resp *Response) Result {
	return Success(resp)
}

func middlewareName(mw Middleware) string {
	if n, ok := mw.(Named); ok {
		return n.Name()
	}
	return "anonymous"
}
