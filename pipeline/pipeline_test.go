package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/resilience"
)

// scriptedExecutor returns the statuses in order, repeating the last one.
type scriptedExecutor struct {
	mu       sync.Mutex
	statuses []int
	calls    int
	sent     []*Request
	err      error
}

func (e *scriptedExecutor) Execute(_ context.Context, req *Request) (*Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, req)
	i := e.calls
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if i >= len(e.statuses) {
		i = len(e.statuses) - 1
	}
	return &Response{StatusCode: e.statuses[i], Body: []byte(`{"ok":true}`)}, nil
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// funcMiddleware is a configurable middleware for tests.
type funcMiddleware struct {
	name      string
	matchReq  func(*Request) bool
	onReq     func(*Request) *Request
	matchResp func(*Response) bool
	onResp    func(context.Context, *Response) Result
}

func (m *funcMiddleware) Name() string { return m.name }

func (m *funcMiddleware) ShouldProcessRequest(req *Request) bool {
	return m.matchReq != nil && m.matchReq(req)
}

func (m *funcMiddleware) ProcessRequest(req *Request) *Request { return m.onReq(req) }

func (m *funcMiddleware) ShouldProcessResponse(resp *Response) bool {
	return m.matchResp != nil && m.matchResp(resp)
}

func (m *funcMiddleware) ProcessResponse(ctx context.Context, resp *Response) Result {
	return m.onResp(ctx, resp)
}

func always[T any](T) bool { return true }

func retryOn(status int, policy func() RetryPolicy) *funcMiddleware {
	return &funcMiddleware{
		name:      "retry",
		matchResp: func(r *Response) bool { return r.StatusCode == status },
		onResp:    func(context.Context, *Response) Result { return Retry(policy()) },
	}
}

func TestHeaders_SetOverwritesCaseInsensitively(t *testing.T) {
	h := NewHeaders("Accept", "application/json", "Authorization", "Bearer old")
	h.Set("authorization", "Bearer new")
	h.Set("X-Request-ID", "abc")

	want := []Header{
		{Key: "Accept", Value: "application/json"},
		{Key: "Authorization", Value: "Bearer new"},
		{Key: "X-Request-ID", Value: "abc"},
	}
	if diff := cmp.Diff(want, h.All()); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if v, ok := h.Get("AUTHORIZATION"); !ok || v != "Bearer new" {
		t.Errorf("expected case-insensitive get, got %q %v", v, ok)
	}
}

func TestHeaders_DelAndClone(t *testing.T) {
	h := NewHeaders("A", "1", "B", "2")
	c := h.Clone()
	h.Del("a")

	if h.Len() != 1 || h.Value("B") != "2" {
		t.Errorf("unexpected headers after delete: %v", h.All())
	}
	if c.Len() != 2 {
		t.Errorf("clone should be independent, got %v", c.All())
	}
	if _, ok := h.Get("missing"); ok {
		t.Error("expected missing key")
	}
}

func TestRequest_Builders(t *testing.T) {
	req := Post("/cart/items", map[string]any{"sku": "A1"}).
		WithSession().
		WithHeader("Accept", "application/json").
		WithQuery("page", "2").
		WithTimeout(time.Second)

	if req.Method != http.MethodPost || !req.RequiresSession || req.Timeout != time.Second {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Query.Get("page") != "2" || req.Headers.Value("accept") != "application/json" {
		t.Errorf("unexpected query or headers: %v %v", req.Query, req.Headers.All())
	}
	if req.String() != "POST /cart/items" {
		t.Errorf("unexpected String() %q", req.String())
	}
}

func TestResponse_Decode(t *testing.T) {
	resp := &Response{StatusCode: 200, Request: Get("/me"), Body: []byte(`{"name":"ada"}`)}
	var out struct{ Name string }
	if err := resp.Decode(&out); err != nil || out.Name != "ada" {
		t.Fatalf("decode: %v %+v", err, out)
	}
	if err := (&Response{Request: Get("/me")}).Decode(&out); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestResult_FailWithoutErrorIsInternal(t *testing.T) {
	r := Fail(nil)
	if r.Kind() != ResultFail || !errors.HasCode(r.Err(), errors.ErrCodeInternal) {
		t.Errorf("expected internal failure, got %v %v", r.Kind(), r.Err())
	}
	if ResultRetry.String() != "retry" || ResultKind(9).String() != "unknown" {
		t.Error("unexpected ResultKind strings")
	}
}

func TestDispatch_MiddlewareOrder(t *testing.T) {
	var order []string
	record := func(name string) *funcMiddleware {
		return &funcMiddleware{
			name:     name,
			matchReq: always[*Request],
			onReq: func(r *Request) *Request {
				order = append(order, "req:"+name)
				r.Headers.Set("X-Last", name)
				return r
			},
			matchResp: always[*Response],
			onResp: func(_ context.Context, r *Response) Result {
				order = append(order, "resp:"+name)
				return Success(r)
			},
		}
	}
	exec := &scriptedExecutor{statuses: []int{200}}
	d := NewDispatcher(exec, []Middleware{record("a"), record("b")})

	resp, err := d.Dispatch(context.Background(), Get("/catalog"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"req:a", "req:b", "resp:a", "resp:b"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if resp.Request.Headers.Value("X-Last") != "b" {
		t.Errorf("expected last request transform to win, got %q", resp.Request.Headers.Value("X-Last"))
	}
}

func TestDispatch_SuccessTransformsResponse(t *testing.T) {
	rewrite := &funcMiddleware{
		matchResp: always[*Response],
		onResp: func(_ context.Context, r *Response) Result {
			cp := *r
			cp.Body = []byte(`{"rewritten":true}`)
			return Success(&cp)
		},
	}
	var seen string
	observe := &funcMiddleware{
		matchResp: always[*Response],
		onResp: func(_ context.Context, r *Response) Result {
			seen = string(r.Body)
			return Success(r)
		},
	}
	d := NewDispatcher(&scriptedExecutor{statuses: []int{200}}, []Middleware{rewrite, observe})

	resp, err := d.Dispatch(context.Background(), Get("/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != `{"rewritten":true}` || string(resp.Body) != seen {
		t.Errorf("expected rewritten body downstream, saw %q returned %q", seen, resp.Body)
	}
}

func TestDispatch_FailStopsChain(t *testing.T) {
	stop := &funcMiddleware{
		matchResp: always[*Response],
		onResp: func(context.Context, *Response) Result {
			return Fail(errors.AppUpdateRequired(426))
		},
	}
	var reached bool
	after := &funcMiddleware{
		matchResp: always[*Response],
		onResp: func(_ context.Context, r *Response) Result {
			reached = true
			return Success(r)
		},
	}
	exec := &scriptedExecutor{statuses: []int{426}}
	d := NewDispatcher(exec, []Middleware{stop, after})

	resp, err := d.Dispatch(context.Background(), Get("/"))
	if !errors.IsAppUpdateRequired(err) {
		t.Fatalf("expected APP_UPDATE_REQUIRED, got %v", err)
	}
	if reached {
		t.Error("middleware after a Fail must not run")
	}
	if resp == nil || resp.StatusCode != 426 {
		t.Errorf("expected the failing response, got %+v", resp)
	}
	if exec.callCount() != 1 {
		t.Errorf("expected 1 transport call, got %d", exec.callCount())
	}
}

func TestDispatch_BoundedRetries(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		wantCalls   int
	}{
		{"zero treated as one", 0, 2},
		{"one", 1, 2},
		{"three", 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recovered, exhausted int32
			var exhaustedErr error
			mw := retryOn(401, func() RetryPolicy {
				return RetryPolicy{
					Name:        "test",
					MaxAttempts: tt.maxAttempts,
					Recover: func(context.Context) error {
						atomic.AddInt32(&recovered, 1)
						return nil
					},
					OnExhausted: func(err error) {
						atomic.AddInt32(&exhausted, 1)
						exhaustedErr = err
					},
				}
			})
			exec := &scriptedExecutor{statuses: []int{401}}
			d := NewDispatcher(exec, []Middleware{mw})

			resp, err := d.Dispatch(context.Background(), Get("/orders").WithSession())
			if !errors.IsRetryExhausted(err) {
				t.Fatalf("expected RETRY_EXHAUSTED, got %v", err)
			}
			if exec.callCount() != tt.wantCalls {
				t.Errorf("expected %d transport calls, got %d", tt.wantCalls, exec.callCount())
			}
			if int(recovered) != tt.wantCalls-1 {
				t.Errorf("expected %d recoveries, got %d", tt.wantCalls-1, recovered)
			}
			if exhausted != 1 || !errors.IsRetryExhausted(exhaustedErr) {
				t.Errorf("expected OnExhausted once with RETRY_EXHAUSTED, got %d %v", exhausted, exhaustedErr)
			}
			if resp.Attempt != tt.wantCalls-1 {
				t.Errorf("expected last attempt %d, got %d", tt.wantCalls-1, resp.Attempt)
			}
			if !errors.HasCode(stderrors.Unwrap(err), errors.ErrCodeUnauthorized) {
				t.Errorf("expected last 401 as cause, got %v", stderrors.Unwrap(err))
			}
		})
	}
}

func TestDispatch_RetryResendsSameRequest(t *testing.T) {
	var applied int32
	auth := &funcMiddleware{
		matchReq: func(r *Request) bool { return r.RequiresSession },
		onReq: func(r *Request) *Request {
			n := atomic.AddInt32(&applied, 1)
			r.Headers.Set("Authorization", fmt.Sprintf("Bearer t%d", n))
			return r
		},
	}
	exec := &scriptedExecutor{statuses: []int{401, 200}}
	d := NewDispatcher(exec, []Middleware{auth, retryOn(401, func() RetryPolicy { return RetryPolicy{MaxAttempts: 1} })})

	req := Get("/orders").WithSession()
	resp, err := d.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied != 2 {
		t.Errorf("expected request middleware to run per attempt, ran %d times", applied)
	}
	if exec.sent[0] != req || exec.sent[1] != req {
		t.Error("expected the same *Request to be resent")
	}
	if n := len(req.Headers.All()); n != 1 {
		t.Errorf("expected a single Authorization header, got %d headers", n)
	}
	if req.Headers.Value("Authorization") != "Bearer t2" {
		t.Errorf("expected refreshed header, got %q", req.Headers.Value("Authorization"))
	}
	if resp.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", resp.Attempt)
	}
}

func TestDispatch_RecoveryFailureSurfaces(t *testing.T) {
	refreshErr := errors.SessionRefreshFailed(fmt.Errorf("refresh 401"))
	var exhausted error
	mw := retryOn(401, func() RetryPolicy {
		return RetryPolicy{
			MaxAttempts: 1,
			Recover:     func(context.Context) error { return refreshErr },
			OnExhausted: func(err error) { exhausted = err },
		}
	})
	exec := &scriptedExecutor{statuses: []int{401}}
	d := NewDispatcher(exec, []Middleware{mw})

	_, err := d.Dispatch(context.Background(), Get("/"))
	if err != refreshErr {
		t.Fatalf("expected recovery error to surface unchanged, got %v", err)
	}
	if exhausted != refreshErr {
		t.Errorf("expected OnExhausted with recovery error, got %v", exhausted)
	}
	if exec.callCount() != 1 {
		t.Errorf("expected no resubmission, got %d calls", exec.callCount())
	}
}

func TestDispatch_CancelledBeforeRecovery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var recovered bool
	var exhausted error
	mw := retryOn(401, func() RetryPolicy {
		cancel()
		return RetryPolicy{
			MaxAttempts: 1,
			Recover:     func(context.Context) error { recovered = true; return nil },
			OnExhausted: func(err error) { exhausted = err },
		}
	})
	d := NewDispatcher(&scriptedExecutor{statuses: []int{401}}, []Middleware{mw})

	_, err := d.Dispatch(ctx, Get("/"))
	if !errors.HasCode(err, errors.ErrCodeCancelled) || !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected CANCELLED wrapping context.Canceled, got %v", err)
	}
	if recovered {
		t.Error("recovery must not run after cancellation")
	}
	if !stderrors.Is(exhausted, context.Canceled) {
		t.Errorf("expected OnExhausted with context error, got %v", exhausted)
	}
}

func TestDispatch_BackoffBetweenAttempts(t *testing.T) {
	mw := retryOn(503, func() RetryPolicy {
		return RetryPolicy{MaxAttempts: 2, Backoff: resilience.Backoff{Initial: 15 * time.Millisecond}}
	})
	exec := &scriptedExecutor{statuses: []int{503, 503, 200}}
	d := NewDispatcher(exec, []Middleware{mw})

	start := time.Now()
	if _, err := d.Dispatch(context.Background(), Get("/")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected two backoff delays, took %v", elapsed)
	}
}

func TestDispatch_TransportError(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	d := NewDispatcher(&scriptedExecutor{err: cause}, nil)

	resp, err := d.Dispatch(context.Background(), Get("/"))
	if !errors.IsTransport(err) || !stderrors.Is(err, cause) {
		t.Fatalf("expected TRANSPORT_ERROR wrapping cause, got %v", err)
	}
	if resp == nil || resp.HasStatus() {
		t.Errorf("expected statusless response, got %+v", resp)
	}
}

func TestDispatch_TransportTimeout(t *testing.T) {
	d := NewDispatcher(&scriptedExecutor{err: context.DeadlineExceeded}, nil)
	_, err := d.Dispatch(context.Background(), Get("/"))
	if !errors.HasCode(err, errors.ErrCodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestDispatch_UnhandledStatusIsClassified(t *testing.T) {
	tests := []struct {
		status int
		code   errors.ErrorCode
	}{
		{401, errors.ErrCodeUnauthorized},
		{404, errors.ErrCodeNotFound},
		{500, errors.ErrCodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			d := NewDispatcher(&scriptedExecutor{statuses: []int{tt.status}}, nil)
			resp, err := d.Dispatch(context.Background(), Get("/"))
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if resp == nil || resp.StatusCode != tt.status || len(resp.Body) == 0 {
				t.Errorf("expected response with body alongside error, got %+v", resp)
			}
		})
	}
}

func TestDispatch_PanicBecomesInternal(t *testing.T) {
	boom := &funcMiddleware{
		name:      "boom",
		matchResp: always[*Response],
		onResp:    func(context.Context, *Response) Result { panic("kaboom") },
	}
	d := NewDispatcher(&scriptedExecutor{statuses: []int{200}}, []Middleware{boom})

	_, err := d.Dispatch(context.Background(), Get("/"))
	if !errors.HasCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}

func TestDispatch_RequestPanicBecomesInternal(t *testing.T) {
	boom := &funcMiddleware{
		matchReq: always[*Request],
		onReq:    func(*Request) *Request { panic("kaboom") },
	}
	exec := &scriptedExecutor{statuses: []int{200}}
	d := NewDispatcher(exec, []Middleware{boom})

	_, err := d.Dispatch(context.Background(), Get("/"))
	if !errors.HasCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
	if exec.callCount() != 0 {
		t.Error("transport must not run after a request middleware panic")
	}
}

// guardMiddleware refuses session requests with err.
type guardMiddleware struct {
	PassThrough
	err     error
	checked int
	applied int
}

func (g *guardMiddleware) ShouldProcessRequest(req *Request) bool { return req.RequiresSession }

func (g *guardMiddleware) CheckRequest(*Request) error {
	g.checked++
	return g.err
}

func (g *guardMiddleware) ProcessRequest(req *Request) *Request {
	g.applied++
	return req
}

func TestDispatch_GuardRefusesBeforeTransport(t *testing.T) {
	guard := &guardMiddleware{err: errors.SessionClosed()}
	var later int
	after := &funcMiddleware{
		matchReq: always[*Request],
		onReq:    func(req *Request) *Request { later++; return req },
	}
	exec := &scriptedExecutor{statuses: []int{200, 200}}
	d := NewDispatcher(exec, []Middleware{guard, after})

	resp, err := d.Dispatch(context.Background(), Get("/orders").WithSession())
	if !errors.HasCode(err, errors.ErrCodeSessionClosed) || resp != nil {
		t.Fatalf("expected SESSION_CLOSED without a response, got %v %v", resp, err)
	}
	if exec.callCount() != 0 || guard.applied != 0 || later != 0 {
		t.Errorf("refused request went on: calls=%d applied=%d later=%d", exec.callCount(), guard.applied, later)
	}

	// Requests the guard does not match are not checked.
	if _, err := d.Dispatch(context.Background(), Get("/catalog")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guard.checked != 1 || exec.callCount() != 1 {
		t.Errorf("expected one check and one call, got %d and %d", guard.checked, exec.callCount())
	}
}

func TestDispatch_NilRequest(t *testing.T) {
	d := NewDispatcher(&scriptedExecutor{statuses: []int{200}}, nil)
	if _, err := d.Dispatch(context.Background(), nil); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestDispatch_PassThroughMatchesNothing(t *testing.T) {
	var mw Middleware = PassThrough{}
	if mw.ShouldProcessRequest(Get("/")) || mw.ShouldProcessResponse(&Response{StatusCode: 401}) {
		t.Error("PassThrough should match nothing")
	}
	d := NewDispatcher(&scriptedExecutor{statuses: []int{204}}, []Middleware{mw})
	if _, err := d.Dispatch(context.Background(), Get("/")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(d.Middlewares()) != 1 {
		t.Errorf("expected 1 middleware, got %d", len(d.Middlewares()))
	}
}

func TestDispatch_BulkheadRejects(t *testing.T) {
	bh := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 1})
	release, _ := bh.Acquire(context.Background())
	defer release()

	d := NewDispatcher(&scriptedExecutor{statuses: []int{200}}, nil, WithBulkhead(bh))
	if _, err := d.Dispatch(context.Background(), Get("/")); !errors.HasCode(err, errors.ErrCodeRateLimited) {
		t.Errorf("expected RATE_LIMITED, got %v", err)
	}
}

func TestDoAll_PreservesOrder(t *testing.T) {
	exec := ExecutorFunc(func(_ context.Context, req *Request) (*Response, error) {
		if req.Path == "/missing" {
			return &Response{StatusCode: 404}, nil
		}
		return &Response{StatusCode: 200, Body: []byte(req.Path)}, nil
	})
	d := NewDispatcher(exec, nil, WithConcurrency(2))

	outcomes := d.DoAll(context.Background(), []*Request{Get("/a"), Get("/missing"), Get("/c")})
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || string(outcomes[0].Response.Body) != "/a" {
		t.Errorf("unexpected first outcome %+v", outcomes[0])
	}
	if !errors.HasCode(outcomes[1].Err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for second, got %v", outcomes[1].Err)
	}
	if outcomes[2].Err != nil || string(outcomes[2].Response.Body) != "/c" {
		t.Errorf("unexpected third outcome %+v", outcomes[2])
	}
}

func TestDispatchAll_FailsFast(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
		if req.Path == "/bad" {
			return &Response{StatusCode: 403}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return &Response{StatusCode: 200}, nil
		}
	})
	d := NewDispatcher(exec, nil)

	start := time.Now()
	_, err := d.DispatchAll(context.Background(), []*Request{Get("/slow"), Get("/bad")})
	if !errors.HasCode(err, errors.ErrCodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("expected the slow request to be cancelled")
	}

	responses, err := d.DispatchAll(context.Background(), nil)
	if err != nil || len(responses) != 0 {
		t.Errorf("expected empty batch to succeed, got %v %v", responses, err)
	}
}
