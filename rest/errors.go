package rest

import "github.com/kbukum/shopkit/errors"

// Convenience checks so REST callers need not import errors for the
// common cases.

// IsNotFound checks if the error is a 404 Not Found.
func IsNotFound(err error) bool { return errors.HasCode(err, errors.ErrCodeNotFound) }

// IsAuth checks if the error ended the request for session reasons.
func IsAuth(err error) bool {
	return errors.HasCode(err, errors.ErrCodeUnauthorized) ||
		errors.HasCode(err, errors.ErrCodeForbidden) ||
		errors.HasCode(err, errors.ErrCodeSessionClosed) ||
		errors.IsSessionRefreshFailed(err)
}

// IsUpdateRequired checks if the server rejected the client version.
func IsUpdateRequired(err error) bool { return errors.IsAppUpdateRequired(err) }

// IsRetryable checks if the error may succeed when the user tries again.
func IsRetryable(err error) bool {
	appErr, ok := errors.AsAppError(err)
	return ok && appErr.Retryable
}
