package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"canteen/internal/model"
)

type authEnvelope model.AuthResponse

func (a *authEnvelope) Validate() error {
	if a.AccessToken == "" {
		return fmt.Errorf("missing access_token")
	}
	return a.User.Validate()
}

// Login authenticates with either email or roll number. The server answers
// with an HTTP-only session cookie which lands in the client's jar.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	resp, err := send[authEnvelope](ctx, c, http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, err
	}
	return (*model.AuthResponse)(resp), nil
}

// ExchangeToken trades a one-time OAuth callback token for a session.
func (c *Client) ExchangeToken(ctx context.Context, token string) (*model.AuthResponse, error) {
	if token == "" {
		return nil, invalid(fmt.Errorf("token required"))
	}
	body := map[string]string{"token": token}
	resp, err := send[authEnvelope](ctx, c, http.MethodPost, "/auth/exchange-token", body)
	if err != nil {
		return nil, err
	}
	return (*model.AuthResponse)(resp), nil
}

// Logout asks the server to invalidate the session cookie. The client
// cannot clear an HTTP-only cookie on its own.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	return getOne[model.User](ctx, c, "/auth/me", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error) {
	if err := upd.Validate(); err != nil {
		return nil, invalid(err)
	}
	return send[model.User](ctx, c, http.MethodPut, "/profile", upd)
}

func (c *Client) ChangePassword(ctx context.Context, req model.PasswordChange) error {
	if err := req.Validate(); err != nil {
		return invalid(err)
	}
	return c.do(ctx, http.MethodPost, "/profile/change-password", nil, req, nil)
}
