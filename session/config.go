package session

import (
	"fmt"
	"time"

	"github.com/kbukum/shopkit/resilience"
	"github.com/kbukum/shopkit/validation"
)

// Config is the session section of the client configuration.
type Config struct {
	// MaxAttempts bounds how many times one request is resubmitted after a
	// refresh.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	// LogoutTimeout bounds the best-effort remote logout.
	LogoutTimeout time.Duration `yaml:"logout_timeout" mapstructure:"logout_timeout"`
	// DeviceToken is sent with the logout call so the server can stop
	// pushing to this device.
	DeviceToken string `yaml:"device_token" mapstructure:"device_token"`
	// Backoff delays a resubmission after a successful refresh.
	Backoff resilience.Backoff `yaml:"backoff" mapstructure:"backoff"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	if c.LogoutTimeout == 0 {
		c.LogoutTimeout = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.LogoutTimeout < 0 {
		return fmt.Errorf("session.logout_timeout must not be negative (got: %v)", c.LogoutTimeout)
	}
	return nil
}
