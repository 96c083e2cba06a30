package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request is one logical API call. A retry resends the same *Request, so
// anything a middleware sets on it is seen again on the next attempt.
type Request struct {
	// ID identifies the request across retries. Set by the request-id
	// middleware when empty.
	ID     string
	Method string
	// Path is resolved against the executor's base URL.
	Path    string
	Headers Headers
	Query   url.Values
	// BodyParameters is sent as a JSON object when non-nil.
	BodyParameters map[string]any
	// RequiresSession marks requests that must carry the session's access
	// token and may trigger a refresh.
	RequiresSession bool
	// Timeout bounds each transport attempt. 0 uses the executor default.
	Timeout time.Duration
}

// NewRequest creates a request.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path}
}

// Get creates a GET request.
func Get(path string) *Request { return NewRequest(http.MethodGet, path) }

// Post creates a POST request with a JSON body.
func Post(path string, body map[string]any) *Request {
	return NewRequest(http.MethodPost, path).WithBody(body)
}

// WithSession marks the request as requiring the session.
func (r *Request) WithSession() *Request {
	r.RequiresSession = true
	return r
}

// WithHeader sets a header.
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers.Set(key, value)
	return r
}

// WithQuery adds a query parameter.
func (r *Request) WithQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = url.Values{}
	}
	r.Query.Add(key, value)
	return r
}

// WithBody sets the JSON body parameters.
func (r *Request) WithBody(params map[string]any) *Request {
	r.BodyParameters = params
	return r
}

// WithTimeout sets the per-attempt transport timeout.
func (r *Request) WithTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// String returns "METHOD path".
func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

// Response is what one transport attempt produced.
type Response struct {
	// StatusCode is 0 when the attempt failed before any status was received.
	StatusCode int
	// Request is the request that was sent.
	Request *Request
	Headers http.Header
	Body    []byte
	// Err is the transport failure when there is no status.
	Err error
	// Attempt is the number of resubmissions that preceded this response.
	Attempt int
	// Elapsed is how long the transport attempt took.
	Elapsed time.Duration
}

// HasStatus reports whether an HTTP status was received.
func (r *Response) HasStatus() bool {
	return r.StatusCode != 0
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("decode %s: empty body", r.requestString())
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.requestString(), err)
	}
	return nil
}

func (r *Response) requestString() string {
	if r.Request == nil {
		return "response"
	}
	return r.Request.String()
}
