package middleware

import (
	"github.com/google/uuid"

	"github.com/kbukum/shopkit/pipeline"
)

// HeaderRequestID carries the request ID.
const HeaderRequestID = "X-Request-Id"

// RequestID gives every request an ID and sends it in X-Request-Id. The ID is
// generated once, so all attempts of a request share it.
type RequestID struct {
	pipeline.PassThrough
}

// NewRequestID creates the request-id middleware.
func NewRequestID() *RequestID { return &RequestID{} }

// Name returns "request_id".
func (m *RequestID) Name() string { return "request_id" }

// ShouldProcessRequest matches every request.
func (m *RequestID) ShouldProcessRequest(*pipeline.Request) bool { return true }

// ProcessRequest sets the ID header.
func (m *RequestID) ProcessRequest(req *pipeline.Request) *pipeline.Request {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Headers.Set(HeaderRequestID, req.ID)
	return req
}
