package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xaenox/mailpilot-bot/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrUnauthorized matches any 401 from the backend.
	ErrUnauthorized = errors.New("session expired")
	ErrNoToken      = errors.New("no auth token")
)

// Error is a non-success answer from the backend. Message carries the
// server's detail when it sent one.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// IsAuthError reports whether err means the session is gone: no token is
// stored or the backend rejected it.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoToken)
}

// Client talks to the email-processing backend. Authenticated calls carry the
// bearer token kept in the token store; a 401 on any of them clears it.
type Client struct {
	baseURL string
	authed  *http.Client
	anon    *http.Client
	tokens  storage.TokenStore
	logger  *zap.Logger
}

// NewClient builds a client for baseURL. A zero timeout means requests wait
// for as long as their context allows.
func NewClient(baseURL string, tokens storage.TokenStore, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		authed: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: &storeTokenSource{store: tokens},
				Base:   http.DefaultTransport,
			},
		},
		anon:   &http.Client{Timeout: timeout},
		tokens: tokens,
		logger: logger,
	}
}

// storeTokenSource hands the persisted token to oauth2.Transport.
type storeTokenSource struct {
	store storage.TokenStore
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.store.Token(context.Background())
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	switch d := b.Detail.(type) {
	case string:
		return d
	case nil:
	default:
		if data, err := json.Marshal(d); err == nil {
			return string(data)
		}
	}
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

func (c *Client) do(ctx context.Context, authenticated bool, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.anon
	if authenticated {
		client = c.authed
	}

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && errors.Is(uerr.Err, ErrNoToken) {
			return ErrNoToken
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&eb)
		apiErr := &Error{StatusCode: resp.StatusCode, Message: eb.text()}

		if resp.StatusCode == http.StatusUnauthorized {
			if apiErr.Message == "" {
				apiErr.Message = ErrUnauthorized.Error()
			}
			c.logger.Warn("Backend rejected token, clearing session", zap.String("path", path))
			if err := c.tokens.ClearToken(ctx); err != nil {
				c.logger.Error("Failed to clear token", zap.Error(err))
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// ack is the {success, message} envelope of the mutating endpoints
type ack struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (a ack) err() error {
	if a.Success == nil || *a.Success {
		return nil
	}
	msg := a.Error
	if msg == "" {
		msg = a.Message
	}
	return &Error{StatusCode: http.StatusOK, Message: msg}
}
