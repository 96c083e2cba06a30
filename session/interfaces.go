package session

import (
	"context"

	"golang.org/x/oauth2"
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// RefreshToken calls f.
func (f RefresherFunc) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return f(ctx, refreshToken)
}

// LogoutClient ends the session on the server. Errors are logged and
// otherwise ignored.
type LogoutClient interface {
	LogOut(ctx context.Context, refreshToken, deviceToken string) error
}

// LogoutFunc adapts a function to LogoutClient.
type LogoutFunc func(ctx context.Context, refreshToken, deviceToken string) error

// LogOut calls f.
func (f LogoutFunc) LogOut(ctx context.Context, refreshToken, deviceToken string) error {
	return f(ctx, refreshToken, deviceToken)
}

// TokenStore persists tokens across app launches. Both methods are called
// outside the coordinator lock.
type TokenStore interface {
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}
