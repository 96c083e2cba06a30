package pipeline

import "context"

// Executor performs one transport attempt. It returns a Response for any
// received HTTP status, including 4xx and 5xx, and an error only when no
// status was received. It never retries.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request) (*Response, error)

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
