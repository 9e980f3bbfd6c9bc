package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

// LoginURL asks the backend where to send the browser for Google sign-in.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := c.do(ctx, false, http.MethodGet, "/auth/google/login", nil, &resp); err != nil {
		return "", err
	}
	if resp.AuthorizationURL == "" {
		return "", errors.New("backend returned no authorization url")
	}
	return resp.AuthorizationURL, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, true, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, true, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) CheckPermissions(ctx context.Context) (*models.Permissions, error) {
	var perms models.Permissions
	if err := c.do(ctx, true, http.MethodGet, "/auth/check-permissions", nil, &perms); err != nil {
		return nil, err
	}
	return &perms, nil
}
