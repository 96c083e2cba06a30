package fakeapi

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "typ" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims are the claims of every token the backend issues.
type Claims struct {
	gojwt.RegisteredClaims
	Kind string `json:"typ"`
}

// TokenPair is the body returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// issuer signs and parses tokens.
type issuer struct {
	secret []byte
	name   string
	now    func() time.Time
}

func (i *issuer) sign(subject, kind string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.name,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("fakeapi: sign token: %w", err)
	}
	return signed, nil
}

// pair issues an access and refresh token for subject. A non-positive
// accessTTL yields an access token that is already expired.
func (i *issuer) pair(subject string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	if accessTTL <= 0 {
		accessTTL = -time.Minute
	}
	access, err := i.sign(subject, KindAccess, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(subject, KindRefresh, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	expiresIn := int64(accessTTL / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer", ExpiresIn: expiresIn}, nil
}

// parse validates token and checks it is of the wanted kind.
func (i *issuer) parse(token, kind string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, i.keyFunc,
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(i.name),
		gojwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("fakeapi: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("fakeapi: invalid token")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("fakeapi: expected %s token, got %q", kind, claims.Kind)
	}
	return claims, nil
}

func (i *issuer) keyFunc(token *gojwt.Token) (interface{}, error) {
	if token.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("fakeapi: unexpected signing method: %s", token.Method.Alg())
	}
	return i.secret, nil
}
