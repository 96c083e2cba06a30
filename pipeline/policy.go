package pipeline

import (
	"context"

	"github.com/kbukum/shopkit/resilience"
)

// RecoveryFunc is the asynchronous action run before a resubmission, such
// as refreshing the session. A non-nil error fails the request with it.
type RecoveryFunc func(ctx context.Context) error

// RetryPolicy tells the dispatcher how to retry a request.
type RetryPolicy struct {
	// Name labels the policy in logs, e.g. "session-leader".
	Name string
	// MaxAttempts bounds resubmissions of one dispatch. Values below 1 are
	// treated as 1.
	MaxAttempts int
	// Recover runs before each resubmission. Nil means resubmit directly.
	Recover RecoveryFunc
	// OnExhausted is called once if the dispatcher gives up on the policy
	// without running Recover to success: attempts used up, caller
	// cancelled, or Recover failed.
	OnExhausted func(err error)
	// Backoff delays each resubmission after a successful recovery.
	Backoff resilience.Backoff
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) recover(ctx context.Context) error {
	if p.Recover == nil {
		return nil
	}
	return p.Recover(ctx)
}

func (p RetryPolicy) exhausted(err error) {
	if p.OnExhausted != nil {
		p.OnExhausted(err)
	}
}
