package client

import (
	"fmt"
	"time"

	"github.com/kbukum/shopkit/authapi"
	"github.com/kbukum/shopkit/config"
	"github.com/kbukum/shopkit/httpclient"
	"github.com/kbukum/shopkit/middleware"
	"github.com/kbukum/shopkit/observability"
	"github.com/kbukum/shopkit/session"
	"github.com/kbukum/shopkit/validation"
)

// Config is the complete client configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	HTTP          httpclient.Config            `yaml:"http" mapstructure:"http"`
	Pipeline      PipelineConfig               `yaml:"pipeline" mapstructure:"pipeline"`
	Session       session.Config               `yaml:"session" mapstructure:"session"`
	ForceUpdate   middleware.ForceUpdateConfig `yaml:"force_update" mapstructure:"force_update"`
	Auth          authapi.Config               `yaml:"auth" mapstructure:"auth"`
	Observability observability.Config         `yaml:"observability" mapstructure:"observability"`
}

// PipelineConfig bounds the dispatcher.
type PipelineConfig struct {
	// Concurrency bounds the goroutines started by DoAll. 0 means one per
	// request.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=0"`
	// MaxInFlight bounds dispatches in progress. 0 disables the bulkhead.
	MaxInFlight int `yaml:"max_in_flight" mapstructure:"max_in_flight" validate:"gte=0"`
	// MaxWait is how long a dispatch waits for a free slot. 0 fails at once,
	// negative waits until the context ends.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// ApplyDefaults applies default values to every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.ForceUpdate.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Pipeline.MaxInFlight > 0 && c.Pipeline.MaxWait == 0 {
		c.Pipeline.MaxWait = -1
	}
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := validation.Struct(&c.Pipeline); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.ForceUpdate.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// Load reads the configuration for serviceName, applies defaults and
// validates it.
func Load(serviceName string, opts ...config.LoaderOption) (*Config, error) {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
