package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Transport errors
const (
	// ErrCodeTransport indicates the request never produced an HTTP status
	// (connection refused, DNS, TLS, reset).
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrCodeTimeout indicates the transport call timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Pipeline errors
const (
	// ErrCodeAppUpdateRequired indicates the server refused the client version.
	ErrCodeAppUpdateRequired ErrorCode = "APP_UPDATE_REQUIRED"
	// ErrCodeRetryExhausted indicates a retry policy ran out of attempts.
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	// ErrCodeInternal indicates a programming error inside the pipeline.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeCancelled indicates the caller's context ended mid-dispatch.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Session errors
const (
	// ErrCodeSessionRefreshFailed indicates the refresh-token call failed and
	// the session was closed.
	ErrCodeSessionRefreshFailed ErrorCode = "SESSION_REFRESH_FAILED"
	// ErrCodeSessionClosed indicates the session is closed and cannot be refreshed.
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"
	// ErrCodeRefreshCancelled indicates the refresh a caller was waiting on
	// was abandoned before it resolved.
	ErrCodeRefreshCancelled ErrorCode = "REFRESH_CANCELLED"
)

// HTTP status errors
const (
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeHTTPStatus         ErrorCode = "HTTP_STATUS"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransport:          true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeServiceUnavailable: true,
	ErrCodeRefreshCancelled:   true,
}

// IsRetryableCode returns true if the error code describes a condition an
// explicit retry policy could recover from. Nothing retries on this basis
// automatically.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
