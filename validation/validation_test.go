package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/shopkit/errors"
)

type sessionSection struct {
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"min=1,max=5"`
	LogoutTimeout time.Duration `mapstructure:"logout_timeout" validate:"gte=0"`
}

type testConfig struct {
	BaseURL string         `mapstructure:"base_url" validate:"required,url"`
	Format  string         `mapstructure:"format" validate:"oneof=json console"`
	Session sessionSection `mapstructure:"session"`
}

func validConfig() testConfig {
	return testConfig{
		BaseURL: "https://shop.example.com",
		Format:  "json",
		Session: sessionSection{MaxAttempts: 1},
	}
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestStruct_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*testConfig)
		field  string
		msg    string
	}{
		{"missing url", func(c *testConfig) { c.BaseURL = "" }, "base_url", "is required"},
		{"bad url", func(c *testConfig) { c.BaseURL = "not a url" }, "base_url", "must be a valid URL"},
		{"bad format", func(c *testConfig) { c.Format = "xml" }, "format", "must be one of: json console"},
		{"zero attempts", func(c *testConfig) { c.Session.MaxAttempts = 0 }, "session.max_attempts", "must be at least 1"},
		{"too many attempts", func(c *testConfig) { c.Session.MaxAttempts = 9 }, "session.max_attempts", "must be at most 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Struct(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			appErr, ok := errors.AsAppError(err)
			if !ok {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.Code != errors.ErrCodeInvalidInput {
				t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
			}
			if appErr.Details["field"] != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, appErr.Details["field"])
			}
			if !strings.Contains(appErr.Message, tt.field+": "+tt.msg) {
				t.Errorf("expected message to contain %q, got %q", tt.field+": "+tt.msg, appErr.Message)
			}
		})
	}
}

func TestStruct_CollectsAllFields(t *testing.T) {
	cfg := validConfig()
	cfg.BaseURL = ""
	cfg.Session.MaxAttempts = 0

	appErr, _ := errors.AsAppError(Struct(cfg))
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		t.Fatalf("expected []FieldError, got %T", appErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(fields), fields)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"MaxAttempts": "max_attempts",
		"URL":         "u_r_l",
		"name":        "name",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
