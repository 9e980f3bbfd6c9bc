package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/mailpilot-bot/internal/api"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"github.com/xaenox/mailpilot-bot/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrSignIn wraps every failure of the sign-in callback.
	ErrSignIn = errors.New("sign-in failed")
)

// Backend is the part of the API client the session needs.
type Backend interface {
	LoginURL(ctx context.Context) (string, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	CheckPermissions(ctx context.Context) (*models.Permissions, error)
}

// Session owns the process-wide bearer token: it stores it after sign-in and
// drops it on logout.
type Session struct {
	api    Backend
	tokens storage.TokenStore
	logger *zap.Logger
}

func NewSession(backend Backend, tokens storage.TokenStore, logger *zap.Logger) *Session {
	return &Session{
		api:    backend,
		tokens: tokens,
		logger: logger,
	}
}

func (s *Session) LoginURL(ctx context.Context) (string, error) {
	url, err := s.api.LoginURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get login url: %w", err)
	}
	return url, nil
}

// Complete finishes the redirect callback. errParam is the callback's error
// query parameter. The token is kept only if the profile fetch with it succeeds.
func (s *Session) Complete(ctx context.Context, token, errParam string) (*models.User, error) {
	if errParam != "" {
		return nil, fmt.Errorf("%w: %s", ErrSignIn, errParam)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no token received", ErrSignIn)
	}

	if err := s.tokens.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: failed to store token: %v", ErrSignIn, err)
	}

	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		if clearErr := s.tokens.ClearToken(ctx); clearErr != nil {
			s.logger.Error("Failed to clear token", zap.Error(clearErr))
		}
		return nil, fmt.Errorf("%w: failed to get user info: %v", ErrSignIn, err)
	}

	s.logger.Info("User signed in", zap.String("email", user.Email))
	return user, nil
}

func (s *Session) HasToken(ctx context.Context) (bool, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// CurrentUser returns ErrNotAuthenticated when there is no token or the
// backend no longer accepts it.
func (s *Session) CurrentUser(ctx context.Context) (*models.User, error) {
	ok, err := s.HasToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}

	user, err := s.api.CurrentUser(ctx)
	if api.IsAuthError(err) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout tells the backend and clears the stored token even if that call fails.
func (s *Session) Logout(ctx context.Context) error {
	apiErr := s.api.Logout(ctx)
	if apiErr != nil && !api.IsAuthError(apiErr) {
		s.logger.Warn("Backend logout failed", zap.Error(apiErr))
	}

	if err := s.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

func (s *Session) CheckPermissions(ctx context.Context) (*models.Permissions, error) {
	perms, err := s.api.CheckPermissions(ctx)
	if api.IsAuthError(err) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check permissions: %w", err)
	}
	return perms, nil
}
