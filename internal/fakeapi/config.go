package fakeapi

import (
	"errors"
	"time"

	"github.com/kbukum/shopkit/version"
)

// Config configures the fake backend.
type Config struct {
	// Secret is the HMAC key tokens are signed with.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Issuer is the "iss" claim (default: shopkit-fakeapi).
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// AccessTokenTTL is the lifetime of access tokens (default: 15m).
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" mapstructure:"access_token_ttl"`
	// RefreshTokenTTL is the lifetime of refresh tokens (default: 24h).
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" mapstructure:"refresh_token_ttl"`
	// RefreshDelay holds every refresh response for this long.
	RefreshDelay time.Duration `yaml:"refresh_delay" mapstructure:"refresh_delay"`
	// FailRefresh makes the refresh endpoint answer 401.
	FailRefresh bool `yaml:"fail_refresh" mapstructure:"fail_refresh"`
	// MinAppVersion, when set, answers 426 to clients sending an older
	// X-App-Version.
	MinAppVersion string `yaml:"min_app_version" mapstructure:"min_app_version"`
	// Users maps usernames to passwords accepted by /auth/login. Empty
	// accepts any non-empty credentials.
	Users map[string]string `yaml:"users" mapstructure:"users"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Secret == "" {
		c.Secret = "shopkit-dev-secret"
	}
	if c.Issuer == "" {
		c.Issuer = "shopkit-fakeapi"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 24 * time.Hour
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AccessTokenTTL < 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("fakeapi: token ttl must be positive")
	}
	if c.RefreshDelay < 0 {
		return errors.New("fakeapi: refresh_delay must not be negative")
	}
	if c.MinAppVersion != "" && !version.IsValid(c.MinAppVersion) {
		return errors.New("fakeapi: min_app_version is not a semantic version")
	}
	return nil
}
