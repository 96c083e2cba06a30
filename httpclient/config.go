package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/shopkit/resilience"
	"github.com/kbukum/shopkit/validation"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

// Config is the http section of the client configuration.
type Config struct {
	// Name identifies the backend in logs and metrics. Defaults to "http".
	Name string `yaml:"name" mapstructure:"name"`

	// BaseURL is prepended to every request path.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Timeout bounds one transport attempt when the request sets none.
	// Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxBodyBytes caps how much of a response body is read. Defaults to 10 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=0"`

	// HTTP2 enables HTTP/2 on the TLS transport.
	HTTP2 bool `yaml:"http2" mapstructure:"http2"`

	// TLS configures the transport's TLS settings.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// Headers are sent with every request. Request headers override them.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// CircuitBreaker fails requests fast while the backend is down. Nil
	// disables it.
	CircuitBreaker *BreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`

	// RateLimit bounds the request rate. Nil disables it.
	RateLimit *RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// BreakerConfig configures the transport circuit breaker.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures" mapstructure:"max_failures" validate:"gte=0"`
	OpenTimeout time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
}

// RateLimitConfig configures the transport rate limiter.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate" mapstructure:"rate" validate:"gte=0"`
	Burst int     `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "http"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("httpclient: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return c.TLS.Validate()
}

func (c *Config) circuitBreaker() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig(c.Name)
	if c.CircuitBreaker.MaxFailures > 0 {
		cfg.MaxFailures = c.CircuitBreaker.MaxFailures
	}
	if c.CircuitBreaker.OpenTimeout > 0 {
		cfg.Timeout = c.CircuitBreaker.OpenTimeout
	}
	return cfg
}

func (c *Config) rateLimiter() resilience.RateLimiterConfig {
	cfg := resilience.DefaultRateLimiterConfig(c.Name)
	if c.RateLimit.Rate > 0 {
		cfg.Rate = c.RateLimit.Rate
	}
	if c.RateLimit.Burst > 0 {
		cfg.Burst = c.RateLimit.Burst
	}
	return cfg
}
