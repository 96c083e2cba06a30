package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/pipeline"
)

// HeaderAuthorization carries the access token.
const HeaderAuthorization = "Authorization"

// Middleware authenticates requests that require a session and hands 401
// and 403 responses to the Coordinator.
type Middleware struct {
	coord  *Coordinator
	policy pipeline.RetryPolicy
}

var _ pipeline.Guard = (*Middleware)(nil)

// NewMiddleware creates the session middleware. cfg should have defaults
// applied.
func NewMiddleware(coord *Coordinator, cfg Config) *Middleware {
	return &Middleware{
		coord: coord,
		policy: pipeline.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.Backoff,
		},
	}
}

// Name returns "session".
func (m *Middleware) Name() string { return "session" }

// ShouldProcessRequest matches requests that require a session.
func (m *Middleware) ShouldProcessRequest(req *pipeline.Request) bool {
	return req.RequiresSession
}

// CheckRequest refuses session requests once the session is closed, so they
// fail with SESSION_CLOSED without reaching the server.
func (m *Middleware) CheckRequest(*pipeline.Request) error {
	if m.coord.Phase() == PhaseClosed {
		return errors.SessionClosed()
	}
	return nil
}

// ProcessRequest sets the Authorization header from the current tokens,
// replacing any value set by an earlier attempt.
func (m *Middleware) ProcessRequest(req *pipeline.Request) *pipeline.Request {
	snap := m.coord.Snapshot()
	if snap.AccessToken == "" {
		req.Headers.Del(HeaderAuthorization)
		return req
	}
	req.Headers.Set(HeaderAuthorization, "Bearer "+snap.AccessToken)
	return req
}

// ShouldProcessResponse matches 401 and 403 responses to session requests.
func (m *Middleware) ShouldProcessResponse(resp *pipeline.Response) bool {
	if resp.Request == nil || !resp.Request.RequiresSession {
		return false
	}
	return resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
}

// ProcessResponse fails a request that already used its resubmissions and
// otherwise joins the coordinator's refresh.
func (m *Middleware) ProcessResponse(_ context.Context, resp *pipeline.Response) pipeline.Result {
	if resp.Attempt >= m.maxAttempts() {
		return pipeline.Fail(errors.RetryExhausted(resp.Attempt, errors.ClassifyStatus(resp.StatusCode, resp.Body)))
	}
	if m.coord.Phase() == PhaseClosed {
		return pipeline.Fail(errors.SessionClosed())
	}
	return m.coord.AcquireFor(m.policy, bearerToken(resp.Request))
}

// bearerToken returns the access token a request was sent with.
func bearerToken(req *pipeline.Request) string {
	if req == nil {
		return ""
	}
	v := req.Headers.Value(HeaderAuthorization)
	if len(v) < len("Bearer ") || !strings.EqualFold(v[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return v[len("Bearer "):]
}

func (m *Middleware) maxAttempts() int {
	if m.policy.MaxAttempts < 1 {
		return 1
	}
	return m.policy.MaxAttempts
}
