package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/pipeline"
)

// Doer sends a request through the pipeline. *pipeline.Dispatcher
// implements it.
type Doer interface {
	Dispatch(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// RequestOption configures a single REST request.
type RequestOption func(*pipeline.Request)

// WithSession marks the request as authenticated.
func WithSession() RequestOption {
	return func(r *pipeline.Request) { r.RequiresSession = true }
}

// WithQuery adds query parameters to the request.
func WithQuery(params map[string]string) RequestOption {
	return func(r *pipeline.Request) {
		for k, v := range params {
			r.WithQuery(k, v)
		}
	}
}

// WithHeaders adds headers to the request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *pipeline.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	}
}

// WithTimeout bounds each transport attempt.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *pipeline.Request) { r.Timeout = d }
}

// WithRequestID sets the request ID instead of generating one.
func WithRequestID(id string) RequestOption {
	return func(r *pipeline.Request) { r.ID = id }
}

// Response wraps a typed REST response.
type Response[T any] struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers http.Header
	// Data is the decoded response body.
	Data T
	// Attempt is the number of resubmissions the pipeline made.
	Attempt int
}

// Get performs a GET request and decodes the JSON response into type T.
func Get[T any](ctx context.Context, d Doer, path string, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, d, http.MethodGet, path, nil, opts...)
}

// Post performs a POST request with a JSON body and decodes the response into type T.
func Post[T any](ctx context.Context, d Doer, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, d, http.MethodPost, path, body, opts...)
}

// Put performs a PUT request with a JSON body and decodes the response into type T.
func Put[T any](ctx context.Context, d Doer, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, d, http.MethodPut, path, body, opts...)
}

// Patch performs a PATCH request with a JSON body and decodes the response into type T.
func Patch[T any](ctx context.Context, d Doer, path string, body any, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, d, http.MethodPatch, path, body, opts...)
}

// Delete performs a DELETE request and decodes the response into type T.
func Delete[T any](ctx context.Context, d Doer, path string, opts ...RequestOption) (*Response[T], error) {
	return do[T](ctx, d, http.MethodDelete, path, nil, opts...)
}

// do executes a REST request and decodes the JSON response.
func do[T any](ctx context.Context, d Doer, method, path string, body any, opts ...RequestOption) (*Response[T], error) {
	req := pipeline.NewRequest(method, path)
	params, err := bodyParameters(body)
	if err != nil {
		return nil, err
	}
	req.BodyParameters = params
	for _, opt := range opts {
		opt(req)
	}

	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		// Error responses often carry a typed payload too.
		if resp != nil && len(resp.Body) > 0 {
			var data T
			if jsonErr := json.Unmarshal(resp.Body, &data); jsonErr == nil {
				return &Response[T]{StatusCode: resp.StatusCode, Headers: resp.Headers, Data: data, Attempt: resp.Attempt}, err
			}
		}
		return nil, err
	}

	var data T
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &data); err != nil {
			return nil, errors.Internal(fmt.Errorf("rest: decode %s %s: %w", method, path, err))
		}
	}
	return &Response[T]{StatusCode: resp.StatusCode, Headers: resp.Headers, Data: data, Attempt: resp.Attempt}, nil
}

// bodyParameters converts body into the JSON object the pipeline sends.
func bodyParameters(body any) (map[string]any, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.InvalidInput("body", fmt.Sprintf("encode body: %v", err))
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, errors.InvalidInput("body", "body must encode to a JSON object")
	}
	return params, nil
}
