// Package validation checks configuration structs against their
// `validate:"..."` tags with go-playground/validator. Field names in errors
// use the mapstructure key, so a message points at the YAML key to fix:
//
//	type Config struct {
//	    MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`
//	}
//	err := validation.Struct(cfg) // "max_attempts: must be at least 1"
package validation
