// Package config loads shopkit configuration with Viper.
//
// A config.yml is searched for in the usual cmd/<service> and config/
// locations, a matching .env file is loaded with godotenv, and environment
// variables carrying the configured prefix override file values:
//
//	var cfg client.Config
//	err := config.LoadConfig("shopdemo", &cfg, config.WithEnvPrefix("SHOP"))
//
// With the SHOP prefix, SHOP_SESSION_MAX_ATTEMPTS overrides session.max_attempts.
package config
