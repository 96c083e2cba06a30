package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/events"
	"github.com/kbukum/shopkit/pipeline"
)

// ForceUpdateConfig is the force_update section of the client configuration.
type ForceUpdateConfig struct {
	// StatusCode is the status the server uses to reject outdated clients.
	StatusCode int `yaml:"status_code" mapstructure:"status_code" validate:"gte=400,lte=599"`
}

// ApplyDefaults applies default values.
func (c *ForceUpdateConfig) ApplyDefaults() {
	if c.StatusCode == 0 {
		c.StatusCode = http.StatusUpgradeRequired
	}
}

// Validate validates the configuration.
func (c *ForceUpdateConfig) Validate() error {
	if c.StatusCode < 400 || c.StatusCode > 599 {
		return fmt.Errorf("force_update.status_code must be a 4xx or 5xx status (got: %d)", c.StatusCode)
	}
	return nil
}

// ForceUpdate fails every response carrying the force-update status with
// APP_UPDATE_REQUIRED. The first one also publishes ForceUpdateRequired so
// the app can show its update screen once.
type ForceUpdate struct {
	pipeline.PassThrough
	status    int
	publisher events.Publisher
	now       func() time.Time
	once      sync.Once
}

// NewForceUpdate creates the force-update middleware. A nil publisher drops
// the notification.
func NewForceUpdate(cfg ForceUpdateConfig, publisher events.Publisher) *ForceUpdate {
	cfg.ApplyDefaults()
	if publisher == nil {
		publisher = events.Nop
	}
	return &ForceUpdate{status: cfg.StatusCode, publisher: publisher, now: time.Now}
}

// Name returns "force_update".
func (m *ForceUpdate) Name() string { return "force_update" }

// ShouldProcessResponse matches the force-update status.
func (m *ForceUpdate) ShouldProcessResponse(resp *pipeline.Response) bool {
	return resp.StatusCode == m.status
}

// ProcessResponse fails the request. It never retries.
func (m *ForceUpdate) ProcessResponse(_ context.Context, resp *pipeline.Response) pipeline.Result {
	m.once.Do(func() {
		ev := events.ForceUpdateRequired{StatusCode: resp.StatusCode, At: m.now()}
		if resp.Request != nil {
			ev.Path = resp.Request.Path
		}
		m.publisher.Publish(ev)
	})
	return pipeline.Fail(errors.AppUpdateRequired(resp.StatusCode))
}
