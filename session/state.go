package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Phase is the lifecycle phase of a session.
type Phase int

const (
	// PhaseOpen is a usable session.
	PhaseOpen Phase = iota
	// PhaseRefreshing means a refresh is in flight.
	PhaseRefreshing
	// PhaseClosed is terminal. Sign in again with a new session.
	PhaseClosed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Tokens is a session's credential pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// Expiry is when the access token expires. Zero if unknown.
	Expiry time.Time
}

// Expired reports whether the access token is known to have expired at now.
func (t Tokens) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Tokens
	Phase Phase
}

// NewTokens builds Tokens, taking Expiry from the access token's exp claim.
func NewTokens(accessToken, refreshToken string) Tokens {
	return Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       accessTokenExpiry(accessToken),
	}
}

// tokensFrom converts a refresh response. A response without a refresh token
// keeps the previous one.
func tokensFrom(tok *oauth2.Token, previousRefresh string) Tokens {
	t := Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if t.RefreshToken == "" {
		t.RefreshToken = previousRefresh
	}
	if t.Expiry.IsZero() {
		t.Expiry = accessTokenExpiry(tok.AccessToken)
	}
	return t
}

// accessTokenExpiry reads the exp claim without verifying the signature. The
// client cannot verify server tokens; the value only schedules refreshes.
func accessTokenExpiry(accessToken string) time.Time {
	if accessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
