package authapi

import (
	"fmt"
	"strings"
)

// Config is the auth section of the client configuration.
type Config struct {
	LoginPath   string `yaml:"login_path" mapstructure:"login_path"`
	RefreshPath string `yaml:"refresh_path" mapstructure:"refresh_path"`
	LogoutPath  string `yaml:"logout_path" mapstructure:"logout_path"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/auth/login"
	}
	if c.RefreshPath == "" {
		c.RefreshPath = "/auth/refresh"
	}
	if c.LogoutPath == "" {
		c.LogoutPath = "/auth/logout"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for name, path := range map[string]string{
		"login_path":   c.LoginPath,
		"refresh_path": c.RefreshPath,
		"logout_path":  c.LogoutPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("auth.%s must start with / (got: %q)", name, path)
		}
	}
	return nil
}
