package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/events"
	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/observability"
	"github.com/kbukum/shopkit/pipeline"
)

// Roles a caller can take in a refresh flight.
const (
	RoleLeader   = "leader"
	RoleFollower = "follower"
)

// Coordinator owns the session state and runs at most one refresh at a time.
// All state, including the waiter list, is guarded by one mutex.
type Coordinator struct {
	refresher     Refresher
	logout        LogoutClient
	store         TokenStore
	publisher     events.Publisher
	log           *logger.Logger
	metrics       *observability.PipelineMetrics
	deviceToken   string
	logoutTimeout time.Duration
	now           func() time.Time

	mu     sync.Mutex
	tokens Tokens
	phase  Phase
	// inFlight is true from the moment a leader is chosen until its flight
	// resolves. waiters is non-empty only while inFlight.
	inFlight bool
	// flight numbers refresh flights so a stale leader cannot touch a newer one.
	flight uint64
	// started is set once the current leader has called the refresher.
	started bool
	waiters []chan error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogoutClient sets the remote logout client. Without one, closing a
// session is local only.
func WithLogoutClient(l LogoutClient) CoordinatorOption {
	return func(c *Coordinator) { c.logout = l }
}

// WithTokenStore sets a store that is updated after every refresh and
// cleared on close.
func WithTokenStore(s TokenStore) CoordinatorOption {
	return func(c *Coordinator) { c.store = s }
}

// WithPublisher sets where SessionClosed is published.
func WithPublisher(p events.Publisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l.WithComponent("session") }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.PipelineMetrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithDeviceToken sets the device token sent on logout.
func WithDeviceToken(token string) CoordinatorOption {
	return func(c *Coordinator) { c.deviceToken = token }
}

// WithLogoutTimeout bounds the remote logout call.
func WithLogoutTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.logoutTimeout = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator for an open session.
func NewCoordinator(tokens Tokens, refresher Refresher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		refresher:     refresher,
		publisher:     events.Nop,
		log:           logger.Nop(),
		logoutTimeout: 5 * time.Second,
		now:           time.Now,
		tokens:        tokens,
		phase:         PhaseOpen,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Tokens: c.tokens, Phase: c.phase}
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Waiters returns the number of followers waiting on the current flight.
func (c *Coordinator) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Acquire joins the refresh for a request rejected as unauthorized. The first
// caller while no refresh is in flight becomes the leader, later callers
// become followers of that flight. The returned Retry carries base's limits;
// its recovery action performs or awaits the refresh.
//
// On a closed session Acquire returns Fail(SESSION_CLOSED).
func (c *Coordinator) Acquire(base pipeline.RetryPolicy) pipeline.Result {
	return c.AcquireFor(base, "")
}

// AcquireFor is Acquire for a request that was sent with sentToken. If no
// refresh is in flight and the session already holds a different access
// token, an earlier flight has replaced the one the request used and it is
// resubmitted without a new refresh. An empty sentToken always joins.
func (c *Coordinator) AcquireFor(base pipeline.RetryPolicy, sentToken string) pipeline.Result {
	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return pipeline.Fail(errors.SessionClosed())
	}

	if !c.inFlight && sentToken != "" && c.tokens.AccessToken != "" && sentToken != c.tokens.AccessToken {
		flight := c.flight
		c.mu.Unlock()

		c.log.Debug("request used a replaced token, resubmitting", logger.Fields(logger.FieldFlight, flight))
		policy := base
		policy.Name = "session-replaced-token"
		policy.Recover = nil
		policy.OnExhausted = nil
		return pipeline.Retry(policy)
	}

	if !c.inFlight {
		c.inFlight = true
		c.started = false
		c.flight++
		c.phase = PhaseRefreshing
		flight := c.flight
		c.mu.Unlock()

		c.log.Debug("refresh leader elected", logger.Fields(logger.FieldRole, RoleLeader, logger.FieldFlight, flight))
		policy := base
		policy.Name = "session-" + RoleLeader
		policy.Recover = func(ctx context.Context) error { return c.lead(ctx, flight) }
		policy.OnExhausted = func(err error) { c.abandon(flight, err) }
		return pipeline.Retry(policy)
	}

	ch := make(chan error, 1)
	c.waiters = append(c.waiters, ch)
	flight := c.flight
	c.mu.Unlock()

	c.metrics.RecordRefresh(context.Background(), observability.RefreshJoined)
	c.log.Debug("joined refresh in flight", logger.Fields(logger.FieldRole, RoleFollower, logger.FieldFlight, flight))
	policy := base
	policy.Name = "session-" + RoleFollower
	policy.Recover = func(ctx context.Context) error { return c.follow(ctx, ch) }
	policy.OnExhausted = func(error) { c.forget(ch) }
	return pipeline.Retry(policy)
}

// lead performs the refresh for flight and resolves its followers.
func (c *Coordinator) lead(ctx context.Context, flight uint64) error {
	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return errors.SessionClosed()
	}
	if !c.inFlight || c.flight != flight {
		c.mu.Unlock()
		return errors.RefreshCancelled(nil)
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		c.abandon(flight, err)
		return errors.Cancelled(err)
	}
	c.started = true
	refreshToken := c.tokens.RefreshToken
	c.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, observability.SpanRefresh)
	defer span.End()
	span.SetAttributes(attribute.Int64(observability.AttrFlight, int64(flight)))

	start := c.now()
	tok, err := c.refresher.RefreshToken(ctx, refreshToken)
	log := c.log.WithContext(ctx)

	switch {
	case err != nil && ctx.Err() != nil:
		cancelled := errors.RefreshCancelled(ctx.Err())
		c.cancelFlight(flight, cancelled)
		c.metrics.RecordRefresh(ctx, observability.RefreshCancelled)
		log.Info("refresh cancelled by leader", logger.Fields(logger.FieldFlight, flight))
		return errors.Cancelled(ctx.Err())

	case err != nil:
		failure := errors.SessionRefreshFailed(err)
		observability.SetSpanError(ctx, failure)
		c.metrics.RecordRefresh(ctx, observability.RefreshFailure)
		log.Warn("refresh failed, closing session", logger.MergeWithError(logger.Fields(logger.FieldFlight, flight), err))
		c.closeFlight(ctx, flight, refreshToken, failure)
		return failure

	case tok == nil || tok.AccessToken == "":
		failure := errors.SessionRefreshFailed(fmt.Errorf("refresh returned no access token"))
		c.metrics.RecordRefresh(ctx, observability.RefreshFailure)
		log.Warn("refresh returned no access token, closing session", logger.Fields(logger.FieldFlight, flight))
		c.closeFlight(ctx, flight, refreshToken, failure)
		return failure
	}

	next := tokensFrom(tok, refreshToken)
	c.mu.Lock()
	if c.phase == PhaseClosed || c.flight != flight {
		c.mu.Unlock()
		return errors.SessionClosed()
	}
	c.tokens = next
	c.phase = PhaseOpen
	waiters := c.takeWaitersLocked()
	c.mu.Unlock()

	resolve(waiters, nil)
	c.metrics.RecordRefresh(ctx, observability.RefreshSuccess)
	log.Info("session refreshed", logger.Fields(
		logger.FieldFlight, flight,
		"followers", len(waiters),
		logger.FieldDuration, c.now().Sub(start).Milliseconds(),
	))

	if c.store != nil {
		if err := c.store.Save(ctx, next); err != nil {
			log.Warn("failed to save refreshed tokens", logger.ErrorFields("token_store.save", err))
		}
	}
	return nil
}

// follow waits for the flight the caller joined.
func (c *Coordinator) follow(ctx context.Context, ch chan error) error {
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.forget(ch)
		return errors.Cancelled(ctx.Err())
	}
}

// abandon resets flight if its leader gave up before calling the refresher.
func (c *Coordinator) abandon(flight uint64, err error) {
	c.mu.Lock()
	if !c.inFlight || c.flight != flight || c.started {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.cancelFlight(flight, errors.RefreshCancelled(err))
	c.log.Info("refresh abandoned by leader", logger.MergeWithError(logger.Fields(logger.FieldFlight, flight), err))
}

// cancelFlight ends flight without a result. The session stays open.
func (c *Coordinator) cancelFlight(flight uint64, err error) {
	c.mu.Lock()
	if !c.inFlight || c.flight != flight {
		c.mu.Unlock()
		return
	}
	if c.phase == PhaseRefreshing {
		c.phase = PhaseOpen
	}
	waiters := c.takeWaitersLocked()
	c.mu.Unlock()
	resolve(waiters, err)
}

// closeFlight closes the session after flight failed. Only the caller that
// moves the session to PhaseClosed logs out remotely, then resolves the
// flight's followers with failure.
func (c *Coordinator) closeFlight(ctx context.Context, flight uint64, refreshToken string, failure error) {
	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return
	}
	c.tokens = Tokens{}
	c.phase = PhaseClosed
	var waiters []chan error
	if c.inFlight && c.flight == flight {
		waiters = c.takeWaitersLocked()
	}
	c.mu.Unlock()

	c.remoteLogout(ctx, refreshToken)
	resolve(waiters, failure)
	c.closed(ctx, events.ReasonRefreshFailed, failure)
}

// Close ends the session at the user's request. A remote logout is
// attempted, local tokens are cleared and any waiting requests fail with
// SESSION_CLOSED. Closing a closed session does nothing.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseClosed {
		c.mu.Unlock()
		return nil
	}
	refreshToken := c.tokens.RefreshToken
	c.tokens = Tokens{}
	c.phase = PhaseClosed
	var waiters []chan error
	if c.inFlight {
		waiters = c.takeWaitersLocked()
	}
	c.mu.Unlock()

	resolve(waiters, errors.SessionClosed())
	c.remoteLogout(ctx, refreshToken)
	c.closed(ctx, events.ReasonLogout, nil)
	c.log.Info("session closed by user")
	return nil
}

// closed runs once per session, after the transition to PhaseClosed.
func (c *Coordinator) closed(ctx context.Context, reason string, err error) {
	c.publisher.Publish(events.SessionClosed{Reason: reason, Err: err, At: c.now()})
	if c.store != nil {
		if clearErr := c.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			c.log.Warn("failed to clear tokens", logger.ErrorFields("token_store.clear", clearErr))
		}
	}
}

// remoteLogout tells the server the session is over. It runs detached from
// the caller's cancellation and never fails the caller.
func (c *Coordinator) remoteLogout(ctx context.Context, refreshToken string) {
	if c.logout == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.logoutTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, observability.SpanLogout)
	defer span.End()

	if err := c.logout.LogOut(ctx, refreshToken, c.deviceToken); err != nil {
		observability.SetSpanError(ctx, err)
		c.log.WithContext(ctx).Warn("remote logout failed", logger.ErrorFields("logout", err))
	}
}

// forget drops a follower that stopped waiting.
func (c *Coordinator) forget(ch chan error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// takeWaitersLocked ends the flight and returns its waiters.
// c.mu must be held.
func (c *Coordinator) takeWaitersLocked() []chan error {
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.started = false
	return waiters
}

func resolve(waiters []chan error, err error) {
	for _, ch := range waiters {
		ch <- err
	}
}
