package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http2"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/observability"
	"github.com/kbukum/shopkit/pipeline"
	"github.com/kbukum/shopkit/resilience"
)

// Adapter executes pipeline requests over net/http.
type Adapter struct {
	httpClient *http.Client
	config     Config
	baseURL    *url.URL
	cb         *resilience.CircuitBreaker
	rl         *resilience.RateLimiter
	log        *logger.Logger
}

var _ pipeline.Executor = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) { a.log = l.WithComponent("httpclient") }
}

// WithTransport replaces the HTTP transport, e.g. with a test round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Adapter) { a.httpClient.Transport = rt }
}

// New creates an adapter for cfg.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpclient: parse base_url: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("httpclient: configure http2: %w", err)
		}
	}

	a := &Adapter{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config:  cfg,
		baseURL: base,
		log:     logger.Nop(),
	}

	if cfg.CircuitBreaker != nil {
		cbCfg := cfg.circuitBreaker()
		cbCfg.IsFailure = isBackendFailure
		cbCfg.OnStateChange = func(name string, from, to resilience.State) {
			a.log.Warn("circuit breaker state changed", logger.Fields("breaker", name, "from", from.String(), "to", to.String()))
		}
		a.cb = resilience.NewCircuitBreaker(cbCfg)
	}
	if cfg.RateLimit != nil {
		a.rl = resilience.NewRateLimiter(cfg.rateLimiter())
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Execute performs one HTTP round trip. Any received status, including 4xx
// and 5xx, is returned with a nil error. An error means no status was
// received.
func (a *Adapter) Execute(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if a.rl != nil {
		if err := a.rl.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if a.cb == nil {
		return a.roundTrip(ctx, req)
	}
	if err := a.cb.Allow(); err != nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "The service is temporarily unavailable. Please try again.", 0).WithCause(err)
	}
	resp, err := a.roundTrip(ctx, req)
	if err == nil && resp.StatusCode >= http.StatusInternalServerError {
		a.cb.Record(errors.ServiceUnavailable(resp.StatusCode, nil))
	} else {
		a.cb.Record(err)
	}
	return resp, err
}

func (a *Adapter) roundTrip(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanTransport,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrMethod, req.Method),
			attribute.String(observability.AttrPath, req.Path),
		),
	)
	defer span.End()

	httpReq, err := a.buildRequest(ctx, req)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		observability.SetSpanError(ctx, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ctxErr)
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.config.MaxBodyBytes))
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, fmt.Errorf("read response body: %w", err)
	}
	span.SetAttributes(attribute.Int(observability.AttrStatusCode, resp.StatusCode))

	return &pipeline.Response{
		StatusCode: resp.StatusCode,
		Request:    req,
		Headers:    resp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}, nil
}

// buildRequest constructs an *http.Request from the adapter config and req.
func (a *Adapter) buildRequest(ctx context.Context, req *pipeline.Request) (*http.Request, error) {
	target, err := a.resolve(req)
	if err != nil {
		return nil, errors.InvalidInput("path", err.Error())
	}

	var body io.Reader
	if req.BodyParameters != nil {
		data, err := json.Marshal(req.BodyParameters)
		if err != nil {
			return nil, errors.InvalidInput("body", fmt.Sprintf("encode body: %v", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, errors.InvalidInput("request", fmt.Sprintf("create request: %v", err))
	}

	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for _, h := range req.Headers.All() {
		httpReq.Header.Set(h.Key, h.Value)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	return httpReq, nil
}

// resolve joins req's path and query onto the base URL. Absolute URLs are
// used as they are.
func (a *Adapter) resolve(req *pipeline.Request) (string, error) {
	var u *url.URL
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		parsed, err := url.Parse(req.Path)
		if err != nil {
			return "", err
		}
		u = parsed
	} else {
		ref, err := url.Parse(strings.TrimLeft(req.Path, "/"))
		if err != nil {
			return "", err
		}
		joined := *a.baseURL
		joined.Path = a.baseURL.Path + "/" + ref.Path
		joined.RawQuery = ref.RawQuery
		u = &joined
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Close releases idle connections.
func (a *Adapter) Close(_ context.Context) error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// IsAvailable reports whether the circuit breaker lets requests through.
func (a *Adapter) IsAvailable(_ context.Context) bool {
	return a.cb == nil || a.cb.State() != resilience.StateOpen
}

// BreakerState returns the circuit breaker state, StateClosed without one.
func (a *Adapter) BreakerState() resilience.State {
	if a.cb == nil {
		return resilience.StateClosed
	}
	return a.cb.State()
}

// isBackendFailure counts transport errors and 5xx responses against the
// breaker. Cancellation by the caller does not count.
func isBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeInvalidInput {
		return false
	}
	return true
}
