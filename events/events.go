package events

import "time"

// Publisher delivers notifications. Publish must not block the caller for
// long; the pipeline calls it while completing a request.
type Publisher interface {
	Publish(v any)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(v any)

// Publish calls f(v).
func (f PublisherFunc) Publish(v any) { f(v) }

// Nop is a Publisher that drops everything.
var Nop Publisher = PublisherFunc(func(any) {})

// Reasons a session was closed.
const (
	ReasonRefreshFailed = "refresh_failed"
	ReasonLogout        = "logout"
)

// SessionClosed is published once when a session moves to closed.
type SessionClosed struct {
	Reason string
	// Err is the refresh failure for ReasonRefreshFailed, nil otherwise.
	Err error
	At  time.Time
}

// ForceUpdateRequired is published once per force-update middleware, the
// first time the server rejects the client version.
type ForceUpdateRequired struct {
	StatusCode int
	Path       string
	At         time.Time
}
