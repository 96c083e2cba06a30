package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", 0)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestAppError_Error_WithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Transport(cause)
	msg := err.Error()
	if !strings.Contains(msg, string(ErrCodeTransport)) {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("expected cause in message, got %q", msg)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", SessionRefreshFailed(fmt.Errorf("401")))
	if !stderrors.Is(err, SessionRefreshFailed(nil)) {
		t.Error("expected errors.Is to match SESSION_REFRESH_FAILED by code")
	}
	if stderrors.Is(err, SessionClosed()) {
		t.Error("did not expect SESSION_CLOSED to match")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Internal(nil).
		WithDetail("stage", "response").
		WithDetails(map[string]any{"middleware": "session"})
	if err.Details["stage"] != "response" {
		t.Errorf("expected stage=response, got %v", err.Details["stage"])
	}
	if err.Details["middleware"] != "session" {
		t.Errorf("expected middleware=session, got %v", err.Details["middleware"])
	}
}

func TestAppError_RetryExhausted(t *testing.T) {
	last := Unauthorized(nil)
	err := RetryExhausted(2, last)
	if err.Code != ErrCodeRetryExhausted {
		t.Errorf("expected RETRY_EXHAUSTED, got %s", err.Code)
	}
	if err.Details["attempts"] != 2 {
		t.Errorf("expected attempts=2, got %v", err.Details["attempts"])
	}
	if !IsRetryExhausted(err) {
		t.Error("IsRetryExhausted should be true")
	}
	if !HasCode(stderrors.Unwrap(err), ErrCodeUnauthorized) {
		t.Error("expected last failure to be the cause")
	}
}

func TestAppError_Terminal(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
	}{
		{"app update", AppUpdateRequired(http.StatusUpgradeRequired)},
		{"refresh failed", SessionRefreshFailed(nil)},
		{"session closed", SessionClosed()},
		{"exhausted", RetryExhausted(1, nil)},
		{"internal", Internal(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Retryable {
				t.Errorf("%s should not be retryable", tt.err.Code)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusUnauthorized, ErrCodeUnauthorized},
		{http.StatusForbidden, ErrCodeForbidden},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusTooManyRequests, ErrCodeRateLimited},
		{http.StatusConflict, ErrCodeInvalidInput},
		{http.StatusBadGateway, ErrCodeServiceUnavailable},
		{http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{http.StatusMultipleChoices, ErrCodeHTTPStatus},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ClassifyStatus(tt.status, []byte(`{"error":"x"}`))
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Code != tt.want {
				t.Errorf("expected %s, got %s", tt.want, err.Code)
			}
			if err.HTTPStatus != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, err.HTTPStatus)
			}
			if err.Details["body"] != `{"error":"x"}` {
				t.Errorf("expected body detail, got %v", err.Details["body"])
			}
		})
	}
}

func TestClassifyStatus_Success(t *testing.T) {
	for _, s := range []int{200, 201, 204} {
		if err := ClassifyStatus(s, nil); err != nil {
			t.Errorf("status %d: expected nil, got %v", s, err)
		}
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", AppUpdateRequired(426))
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to succeed")
	}
	if appErr.HTTPStatus != 426 {
		t.Errorf("expected 426, got %d", appErr.HTTPStatus)
	}
	if !IsAppUpdateRequired(wrapped) {
		t.Error("IsAppUpdateRequired should see through wrapping")
	}

	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("plain error should not convert")
	}
	if IsAppError(nil) {
		t.Error("nil should not be an AppError")
	}
}

func TestIsTransport(t *testing.T) {
	if !IsTransport(Transport(nil)) {
		t.Error("Transport should be transport")
	}
	if !IsTransport(Timeout(nil)) {
		t.Error("Timeout should be transport")
	}
	if IsTransport(Unauthorized(nil)) {
		t.Error("Unauthorized should not be transport")
	}
}

func TestIsRetryableCode(t *testing.T) {
	if !IsRetryableCode(ErrCodeRefreshCancelled) {
		t.Error("REFRESH_CANCELLED should be retryable")
	}
	if IsRetryableCode(ErrCodeSessionRefreshFailed) {
		t.Error("SESSION_REFRESH_FAILED should not be retryable")
	}
}

func TestCancelled_WrapsContextError(t *testing.T) {
	err := Cancelled(context.Canceled)
	if !stderrors.Is(err, context.Canceled) {
		t.Error("expected context.Canceled to be visible through Cancelled")
	}
	if !HasCode(err, ErrCodeCancelled) {
		t.Errorf("expected CANCELLED, got %s", err.Code)
	}
}
