package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/kbukum/shopkit/authapi"
	"github.com/kbukum/shopkit/component"
	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/events"
	"github.com/kbukum/shopkit/httpclient"
	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/middleware"
	"github.com/kbukum/shopkit/observability"
	"github.com/kbukum/shopkit/pipeline"
	"github.com/kbukum/shopkit/resilience"
	"github.com/kbukum/shopkit/rest"
	"github.com/kbukum/shopkit/session"
)

// Client sends shop API requests through the middleware pipeline and owns
// the current session.
type Client struct {
	cfg       Config
	log       *logger.Logger
	bus       *events.Bus
	store     session.TokenStore
	metrics   *observability.PipelineMetrics
	registry  *component.Registry
	http      *httpclient.Component
	bulkhead  *resilience.Bulkhead
	force     *middleware.ForceUpdate
	transport http.RoundTripper

	mu         sync.RWMutex
	auth       *authapi.Client
	guest      *pipeline.Dispatcher
	coord      *session.Coordinator
	dispatcher *pipeline.Dispatcher
}

var (
	_ component.Component = (*Client)(nil)
	_ rest.Doer           = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTokenStore sets where refreshed tokens are saved.
func WithTokenStore(s session.TokenStore) Option {
	return func(c *Client) { c.store = s }
}

// WithTransport replaces the HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithMetrics sets the metric instruments. Without it, instruments are
// created from the global meter when observability is enabled.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New validates cfg and prepares a client. Nothing is connected until Start.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		log: logger.Nop(),
		bus: events.NewBus(events.DefaultPublishTimeout, 16),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil && cfg.Observability.Enabled {
		m, err := observability.NewPipelineMetrics(observability.Meter(cfg.Name))
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		c.metrics = m
	}

	httpOpts := []httpclient.Option{httpclient.WithLogger(c.log)}
	if c.transport != nil {
		httpOpts = append(httpOpts, httpclient.WithTransport(c.transport))
	}
	c.http = httpclient.NewComponent(cfg.HTTP, httpOpts...)
	c.force = middleware.NewForceUpdate(cfg.ForceUpdate, c.bus)
	if cfg.Pipeline.MaxInFlight > 0 {
		c.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          cfg.Name,
			MaxConcurrent: cfg.Pipeline.MaxInFlight,
			MaxWait:       cfg.Pipeline.MaxWait,
		})
	}

	c.registry = component.NewRegistry(c.log)
	if err := c.registry.Register(&telemetry{
		cfg:         cfg.Observability,
		service:     cfg.Name,
		environment: cfg.Environment,
		log:         c.log.WithComponent("telemetry"),
	}); err != nil {
		return nil, err
	}
	if err := c.registry.Register(c.http); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the service name.
func (c *Client) Name() string { return c.cfg.Name }

// Start starts telemetry and the HTTP adapter and builds the guest
// pipeline. Requests that need a session fail until Login or Resume.
func (c *Client) Start(ctx context.Context) error {
	if err := c.registry.StartAll(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = authapi.New(c.http.Adapter(), c.cfg.Auth)
	c.guest = c.newDispatcher(nil)
	return nil
}

// Stop closes the open session, logging out remotely, and stops every
// component.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	coord := c.coord
	c.coord, c.dispatcher = nil, nil
	c.mu.Unlock()

	if coord != nil {
		_ = coord.Close(ctx)
	}
	err := c.registry.StopAll(ctx)
	c.bus.Close()
	return err
}

// Health reports the session together with every component.
func (c *Client) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	for _, ch := range c.registry.HealthAll(ctx) {
		if ch.Status != component.StatusHealthy {
			h.Status = ch.Status
			h.Message = fmt.Sprintf("%s: %s", ch.Name, ch.Message)
			if ch.Status == component.StatusUnhealthy {
				return h
			}
		}
	}
	if h.Status == component.StatusHealthy {
		h.Message = "session " + c.Phase().String()
	}
	return h
}

// Events returns the bus carrying SessionClosed and ForceUpdateRequired.
func (c *Client) Events() *events.Bus { return c.bus }

// Session returns the coordinator of the current session, or nil.
func (c *Client) Session() *session.Coordinator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coord
}

// Phase returns the phase of the current session. Without one it is
// PhaseClosed.
func (c *Client) Phase() session.Phase {
	if coord := c.Session(); coord != nil {
		return coord.Phase()
	}
	return session.PhaseClosed
}

// Login exchanges credentials for tokens and opens a new session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	auth, err := c.authClient()
	if err != nil {
		return err
	}
	tok, err := auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return errors.Unauthorized(nil)
	}
	return c.Resume(ctx, session.NewTokens(tok.AccessToken, tok.RefreshToken))
}

// Resume opens a session from tokens kept from an earlier run. An open
// session is closed first.
func (c *Client) Resume(ctx context.Context, tokens session.Tokens) error {
	if tokens.RefreshToken == "" {
		return errors.InvalidInput("refresh_token", "no refresh token")
	}
	auth, err := c.authClient()
	if err != nil {
		return err
	}

	opts := []session.CoordinatorOption{
		session.WithLogoutClient(auth),
		session.WithPublisher(c.bus),
		session.WithLogger(c.log),
		session.WithMetrics(c.metrics),
		session.WithDeviceToken(c.cfg.Session.DeviceToken),
		session.WithLogoutTimeout(c.cfg.Session.LogoutTimeout),
	}
	if c.store != nil {
		opts = append(opts, session.WithTokenStore(c.store))
	}
	coord := session.NewCoordinator(tokens, auth, opts...)
	d := c.newDispatcher(session.NewMiddleware(coord, c.cfg.Session))

	c.mu.Lock()
	previous := c.coord
	c.coord, c.dispatcher = coord, d
	c.mu.Unlock()

	if previous != nil {
		_ = previous.Close(ctx)
	}
	c.log.Info("session opened", logger.Fields(logger.FieldPhase, coord.Phase().String()))
	return nil
}

// Logout closes the current session. It is a no-op without one.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	coord := c.coord
	c.coord, c.dispatcher = nil, nil
	c.mu.Unlock()

	if coord == nil {
		return nil
	}
	return coord.Close(ctx)
}

// Dispatch sends req through the pipeline. Requests that need a session
// fail with SESSION_CLOSED when none is open.
func (c *Client) Dispatch(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	d, err := c.dispatcherFor(req)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, req)
}

// DoAll dispatches reqs concurrently and returns every outcome in order.
func (c *Client) DoAll(ctx context.Context, reqs []*pipeline.Request) []pipeline.Outcome {
	out := make([]pipeline.Outcome, len(reqs))
	for i, req := range reqs {
		if _, err := c.dispatcherFor(req); err != nil {
			out[i] = pipeline.Outcome{Err: err}
		}
	}

	c.mu.RLock()
	d := c.dispatcher
	if d == nil {
		d = c.guest
	}
	c.mu.RUnlock()
	if d == nil {
		return out
	}

	pending := make([]*pipeline.Request, 0, len(reqs))
	index := make([]int, 0, len(reqs))
	for i, req := range reqs {
		if out[i].Err == nil {
			pending = append(pending, req)
			index = append(index, i)
		}
	}
	for j, o := range d.DoAll(ctx, pending) {
		out[index[j]] = o
	}
	return out
}

func (c *Client) dispatcherFor(req *pipeline.Request) (*pipeline.Dispatcher, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.guest == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "The client is not started.", 0)
	}
	if req != nil && req.RequiresSession {
		if c.dispatcher == nil || c.coord == nil || c.coord.Phase() == session.PhaseClosed {
			return nil, errors.SessionClosed()
		}
		return c.dispatcher, nil
	}
	if c.dispatcher != nil {
		return c.dispatcher, nil
	}
	return c.guest, nil
}

func (c *Client) authClient() (*authapi.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.auth == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "The client is not started.", 0)
	}
	return c.auth, nil
}

// newDispatcher builds the middleware chain. sess is nil for the guest
// pipeline.
func (c *Client) newDispatcher(sess *session.Middleware) *pipeline.Dispatcher {
	chain := []pipeline.Middleware{
		middleware.NewRequestID(),
		middleware.NewAppVersion(c.cfg.Name),
		middleware.NewLogging(c.log),
		c.force,
	}
	if sess != nil {
		chain = append(chain, sess)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(c.log),
		pipeline.WithMetrics(c.metrics),
		pipeline.WithConcurrency(c.cfg.Pipeline.Concurrency),
	}
	if c.bulkhead != nil {
		opts = append(opts, pipeline.WithBulkhead(c.bulkhead))
	}
	return pipeline.NewDispatcher(c.http.Adapter(), chain, opts...)
}
