package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified pipeline error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if an explicit retry policy could recover.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status code that produced this error, 0 if none.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an *AppError with the same code, so that
// errors.Is(err, errors.SessionClosed()) matches any closed-session error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Transport ---

// Transport creates an AppError for a request that failed before any HTTP
// status was received.
func Transport(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransport, Message: "The request could not reach the server.",
		Retryable: true, Cause: cause,
	}
}

// Timeout creates an AppError for a transport call that timed out.
func Timeout(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long.",
		Retryable: true, Cause: cause,
	}
}

// --- Pipeline ---

// AppUpdateRequired creates an AppError for a response telling the client
// it must update before talking to the server again.
func AppUpdateRequired(status int) *AppError {
	return &AppError{
		Code: ErrCodeAppUpdateRequired, Message: "A newer version of the app is required.",
		HTTPStatus: status, Retryable: false,
	}
}

// RetryExhausted creates an AppError for a retry policy that used all of
// its attempts. cause is the last failure observed, if any.
func RetryExhausted(attempts int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeRetryExhausted, Message: fmt.Sprintf("Gave up after %d retries.", attempts),
		Retryable: false, Cause: cause,
		Details: map[string]any{"attempts": attempts},
	}
}

// Internal creates an AppError for an unexpected failure inside the pipeline.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: 0, Retryable: false, Cause: cause,
	}
}

// Cancelled creates an AppError for a dispatch abandoned because the
// caller's context ended. cause is the context error.
func Cancelled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "The request was cancelled.",
		Retryable: false, Cause: cause,
	}
}

// --- Session ---

// SessionRefreshFailed creates an AppError for a failed refresh-token call.
func SessionRefreshFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeSessionRefreshFailed, Message: "Your session has expired. Please log in again.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false, Cause: cause,
	}
}

// SessionClosed creates an AppError for a request made on a closed session.
func SessionClosed() *AppError {
	return &AppError{
		Code: ErrCodeSessionClosed, Message: "You have been logged out.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// RefreshCancelled creates an AppError for a refresh that was abandoned
// before it resolved.
func RefreshCancelled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeRefreshCancelled, Message: "The session refresh was cancelled.",
		Retryable: true, Cause: cause,
	}
}

// --- HTTP status ---

// Unauthorized creates an AppError for a 401 response.
func Unauthorized(body []byte) *AppError {
	return statusError(ErrCodeUnauthorized, "Authentication required.", http.StatusUnauthorized, body)
}

// Forbidden creates an AppError for a 403 response.
func Forbidden(body []byte) *AppError {
	return statusError(ErrCodeForbidden, "You don't have permission to perform this action.", http.StatusForbidden, body)
}

// NotFound creates an AppError for a 404 response.
func NotFound(body []byte) *AppError {
	return statusError(ErrCodeNotFound, "The requested resource was not found.", http.StatusNotFound, body)
}

// RateLimited creates an AppError for a 429 response.
func RateLimited(body []byte) *AppError {
	return statusError(ErrCodeRateLimited, "Too many requests. Please wait a moment and try again.", http.StatusTooManyRequests, body)
}

// InvalidInput creates an AppError for a client-side validation failure.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// ServiceUnavailable creates an AppError for a 5xx response.
func ServiceUnavailable(status int, body []byte) *AppError {
	return statusError(ErrCodeServiceUnavailable, "The service is temporarily unavailable. Please try again.", status, body)
}

func statusError(code ErrorCode, msg string, status int, body []byte) *AppError {
	e := New(code, msg, status)
	if len(body) > 0 {
		e.Details = map[string]any{"body": string(body)}
	}
	return e
}

// ClassifyStatus converts an HTTP status code into a typed error.
// Returns nil for 2xx status codes.
func ClassifyStatus(status int, body []byte) *AppError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return Unauthorized(body)
	case status == http.StatusForbidden:
		return Forbidden(body)
	case status == http.StatusNotFound:
		return NotFound(body)
	case status == http.StatusTooManyRequests:
		return RateLimited(body)
	case status >= 400 && status < 500:
		return statusError(ErrCodeInvalidInput, fmt.Sprintf("HTTP %d", status), status, body)
	case status >= 500:
		return ServiceUnavailable(status, body)
	default:
		return statusError(ErrCodeHTTPStatus, fmt.Sprintf("HTTP %d", status), status, body)
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is or wraps an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsAppUpdateRequired reports whether err demands a client update.
func IsAppUpdateRequired(err error) bool { return HasCode(err, ErrCodeAppUpdateRequired) }

// IsRetryExhausted reports whether err is a spent retry policy.
func IsRetryExhausted(err error) bool { return HasCode(err, ErrCodeRetryExhausted) }

// IsSessionRefreshFailed reports whether err is a failed session refresh.
func IsSessionRefreshFailed(err error) bool { return HasCode(err, ErrCodeSessionRefreshFailed) }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	return HasCode(err, ErrCodeTransport) || HasCode(err, ErrCodeTimeout)
}
