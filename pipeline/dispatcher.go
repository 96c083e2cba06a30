package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/observability"
	"github.com/kbukum/shopkit/resilience"
)

// Retry outcomes recorded in metrics.
const (
	retryResubmitted    = "resubmitted"
	retryExhausted      = "exhausted"
	retryRecoveryFailed = "recovery_failed"
	retryCancelled      = "cancelled"
)

// Dispatcher drives requests through the middleware chain and the executor.
// It is safe for concurrent use.
type Dispatcher struct {
	executor    Executor
	middlewares []Middleware
	log         *logger.Logger
	metrics     *observability.PipelineMetrics
	bulkhead    *resilience.Bulkhead
	concurrency int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l.WithComponent("pipeline") }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithBulkhead bounds the number of dispatches in progress.
func WithBulkhead(b *resilience.Bulkhead) Option {
	return func(d *Dispatcher) { d.bulkhead = b }
}

// WithConcurrency bounds the goroutines DoAll and DispatchAll start.
// 0 means one per request.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// NewDispatcher creates a dispatcher. Middlewares run in the given order for
// both requests and responses.
func NewDispatcher(executor Executor, middlewares []Middleware, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		executor:    executor,
		middlewares: append([]Middleware(nil), middlewares...),
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Middlewares returns the chain in order.
func (d *Dispatcher) Middlewares() []Middleware {
	return append([]Middleware(nil), d.middlewares...)
}

// Dispatch sends req through the pipeline until a middleware fails it, the
// chain accepts a response, or a retry policy gives up.
//
// A 2xx response is returned with a nil error. Any other status that no
// middleware stopped is returned together with the classified error, so the
// caller can still read the body. A transport failure nobody handled is
// returned as a TRANSPORT_ERROR.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.InvalidInput("request", "request is nil")
	}

	start := time.Now()
	ctx = logger.ContextWithRequestID(ctx, req.ID)
	ctx, span := observability.StartSpan(ctx, observability.SpanDispatch,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrMethod, req.Method),
			attribute.String(observability.AttrPath, req.Path),
		),
	)
	defer span.End()

	d.metrics.DispatchStarted(ctx)
	resp, attempts, err := d.dispatch(ctx, req)

	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeFailed
		observability.SetSpanError(ctx, err)
		if appErr, ok := errors.AsAppError(err); ok {
			span.SetAttributes(attribute.String(observability.AttrErrorCode, string(appErr.Code)))
		}
	}
	if resp != nil && resp.HasStatus() {
		span.SetAttributes(attribute.Int(observability.AttrStatusCode, resp.StatusCode))
	}
	span.SetAttributes(
		attribute.String(observability.AttrRequestID, req.ID),
		attribute.Int(observability.AttrAttempt, attempts),
	)
	d.metrics.RecordDispatch(ctx, req.Method, outcome, attempts, time.Since(start))

	return resp, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (*Response, int, error) {
	if d.bulkhead != nil {
		release, err := d.bulkhead.Acquire(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, 0, errors.Cancelled(ctxErr)
			}
			return nil, 0, errors.New(errors.ErrCodeRateLimited, "Too many requests in progress.", 0).WithCause(err)
		}
		defer release()
	}

	used := 0
	for {
		resp, result := d.roundTrip(ctx, req, used)
		log := d.log.WithContext(ctx)

		switch result.Kind() {
		case ResultFail:
			log.Debug("request failed in pipeline", logger.MergeWithError(attemptFields(req, resp), result.Err()))
			return resp, used, result.Err()

		case ResultRetry:
			policy := result.Policy()
			if used >= policy.maxAttempts() {
				err := errors.RetryExhausted(used, responseError(resp))
				policy.exhausted(err)
				d.metrics.RecordRetry(ctx, retryExhausted)
				log.Info("retry policy exhausted", attemptFields(req, resp, "policy", policy.Name))
				return resp, used, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				policy.exhausted(ctxErr)
				d.metrics.RecordRetry(ctx, retryCancelled)
				return resp, used, errors.Cancelled(ctxErr)
			}
			if err := policy.recover(ctx); err != nil {
				policy.exhausted(err)
				d.metrics.RecordRetry(ctx, retryRecoveryFailed)
				log.Info("recovery failed", logger.MergeWithError(attemptFields(req, resp, "policy", policy.Name), err))
				return resp, used, err
			}

			used++
			d.metrics.RecordRetry(ctx, retryResubmitted)
			observability.AddSpanEvent(ctx, "resubmit",
				attribute.Int(observability.AttrAttempt, used),
				attribute.String("policy", policy.Name),
			)
			log.Debug("resubmitting request", attemptFields(req, resp, "policy", policy.Name))
			if err := resilience.Sleep(ctx, policy.Backoff.Delay(used)); err != nil {
				return resp, used, errors.Cancelled(err)
			}

		default:
			return resp, used, finalError(resp)
		}
	}
}

// roundTrip runs the request chain, one transport attempt and the response
// chain. The returned Result is Success only if every matching middleware
// passed the response on.
func (d *Dispatcher) roundTrip(ctx context.Context, req *Request, attempt int) (*Response, Result) {
	out := req
	for _, mw := range d.middlewares {
		next, err := applyRequest(mw, out)
		if err != nil {
			return nil, Fail(err)
		}
		out = next
	}

	resp := d.execute(ctx, out)
	resp.Attempt = attempt

	for _, mw := range d.middlewares {
		result := applyResponse(ctx, mw, resp)
		if result.Kind() != ResultSuccess {
			return resp, result
		}
		if r := result.Response(); r != nil {
			resp = r
		}
	}
	return resp, Success(resp)
}

func (d *Dispatcher) execute(ctx context.Context, req *Request) *Response {
	start := time.Now()
	resp, err := d.executor.Execute(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		return &Response{Request: req, Err: transportError(err), Elapsed: elapsed}
	}
	if resp == nil {
		return &Response{Request: req, Err: errors.Internal(fmt.Errorf("executor returned no response")), Elapsed: elapsed}
	}
	if resp.Request == nil {
		resp.Request = req
	}
	if resp.Elapsed == 0 {
		resp.Elapsed = elapsed
	}
	return resp
}

func applyRequest(mw Middleware, req *Request) (out *Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Errorf("middleware %s panicked on request: %v", middlewareName(mw), r))
		}
	}()
	if !mw.ShouldProcessRequest(req) {
		return req, nil
	}
	if g, ok := mw.(Guard); ok {
		if err := g.CheckRequest(req); err != nil {
			return nil, err
		}
	}
	if next := mw.ProcessRequest(req); next != nil {
		return next, nil
	}
	return req, nil
}

func applyResponse(ctx context.Context, mw Middleware, resp *Response) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Fail(errors.Internal(fmt.Errorf("middleware %s panicked on response: %v", middlewareName(mw), r)))
		}
	}()
	if !mw.ShouldProcessResponse(resp) {
		return Success(resp)
	}
	return mw.ProcessResponse(ctx, resp)
}

func transportError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout(err)
	}
	return errors.Transport(err)
}

// finalError is the error for a response every middleware passed on.
func finalError(resp *Response) error {
	if !resp.HasStatus() {
		if resp.Err != nil {
			return resp.Err
		}
		return errors.Transport(fmt.Errorf("no response"))
	}
	if appErr := errors.ClassifyStatus(resp.StatusCode, resp.Body); appErr != nil {
		return appErr
	}
	return nil
}

// responseError describes what the last attempt produced, for wrapping in
// RETRY_EXHAUSTED.
func responseError(resp *Response) error {
	if resp == nil {
		return nil
	}
	if !resp.HasStatus() {
		return resp.Err
	}
	if appErr := errors.ClassifyStatus(resp.StatusCode, resp.Body); appErr != nil {
		return appErr
	}
	return nil
}

func attemptFields(req *Request, resp *Response, kv ...interface{}) map[string]interface{} {
	fields := logger.RequestFields(req.ID, req.Method, req.Path)
	if resp != nil {
		fields[logger.FieldAttempt] = resp.Attempt
		if resp.HasStatus() {
			fields[logger.FieldStatusCode] = resp.StatusCode
		}
	}
	for k, v := range logger.Fields(kv...) {
		fields[k] = v
	}
	return fields
}

// Outcome is the result of one request in a batch.
type Outcome struct {
	Response *Response
	Err      error
}

// DoAll dispatches reqs concurrently and waits for all of them. Outcomes are
// in the order of reqs; one request failing does not affect the others.
func (d *Dispatcher) DoAll(ctx context.Context, reqs []*Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := d.Dispatch(ctx, req)
			outcomes[i] = Outcome{Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// DispatchAll dispatches reqs concurrently and returns their responses in
// order. The first failure cancels the requests still in progress and is
// returned.
func (d *Dispatcher) DispatchAll(ctx context.Context, reqs []*Request) ([]*Response, error) {
	responses := make([]*Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := d.Dispatch(gctx, req)
			responses[i] = resp
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return responses, err
	}
	return responses, nil
}
