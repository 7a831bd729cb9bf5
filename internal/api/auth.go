package api

import (
	"context"
	"errors"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var out LoginResult
	if err := c.post(ctx, "", "/auth/login", creds, &out); err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, errors.New("api: login response missing token")
	}
	return out, nil
}

// Logout revokes the token. A 401 is not an error here.
func (c *Client) Logout(ctx context.Context, token string) error {
	err := c.post(ctx, token, "/auth/logout", struct{}{}, nil)
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, token, "/auth/me", nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}
