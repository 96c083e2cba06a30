package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/pipeline"
	"github.com/kbukum/shopkit/session"
)

// TokenResponse is the body of a successful login or refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds. 0 if not sent.
	ExpiresIn int64 `json:"expires_in"`
}

// Client calls the authentication endpoints.
type Client struct {
	exec   pipeline.Executor
	config Config
	now    func() time.Time
}

var (
	_ session.Refresher    = (*Client)(nil)
	_ session.LogoutClient = (*Client)(nil)
)

// New creates a client sending requests through exec.
func New(exec pipeline.Executor, cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{exec: exec, config: cfg, now: time.Now}
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	return c.token(ctx, pipeline.Post(c.config.LoginPath, map[string]any{
		"username": username,
		"password": password,
	}))
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.InvalidInput("refresh_token", "no refresh token")
	}
	return c.token(ctx, pipeline.Post(c.config.RefreshPath, map[string]any{
		"refresh_token": refreshToken,
	}))
}

// LogOut revokes the refresh token on the server and unregisters the
// device from push notifications.
func (c *Client) LogOut(ctx context.Context, refreshToken, deviceToken string) error {
	body := map[string]any{"refresh_token": refreshToken}
	if deviceToken != "" {
		body["device_token"] = deviceToken
	}
	_, err := c.send(ctx, pipeline.Post(c.config.LogoutPath, body))
	return err
}

func (c *Client) token(ctx context.Context, req *pipeline.Request) (*oauth2.Token, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	var tr TokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return nil, errors.Internal(fmt.Errorf("parse token response: %w", err))
	}
	if tr.AccessToken == "" {
		return nil, errors.Internal(fmt.Errorf("token response has no access_token"))
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// send performs one attempt and turns a non-2xx status into an error.
func (c *Client) send(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	resp, err := c.exec.Execute(ctx, req)
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.Transport(err)
	}
	if appErr := errors.ClassifyStatus(resp.StatusCode, resp.Body); appErr != nil {
		return resp, appErr
	}
	return resp, nil
}
