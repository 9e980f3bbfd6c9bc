package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xaenox/mailpilot-bot/internal/auth"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap/zaptest"
)

type fakeSession struct {
	user      *models.User
	loginErr  error
	logoutErr error
	completed []string
	loggedOut bool
}

func (f *fakeSession) LoginURL(ctx context.Context) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "https://accounts.example/o/auth", nil
}

func (f *fakeSession) Complete(ctx context.Context, token, errParam string) (*models.User, error) {
	f.completed = append(f.completed, token)
	if errParam != "" {
		return nil, fmt.Errorf("%w: %s", auth.ErrSignIn, errParam)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no token received", auth.ErrSignIn)
	}
	f.user = &models.User{Name: "Ann", Email: "ann@example.com"}
	return f.user, nil
}

func (f *fakeSession) CurrentUser(ctx context.Context) (*models.User, error) {
	if f.user == nil {
		return nil, auth.ErrNotAuthenticated
	}
	return f.user, nil
}

func (f *fakeSession) Logout(ctx context.Context) error {
	f.loggedOut = true
	f.user = nil
	return f.logoutErr
}

func body(t *testing.T, r io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSignInRedirects(t *testing.T) {
	srv := NewServer(&fakeSession{}, zaptest.NewLogger(t))

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/signin", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 302 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://accounts.example/o/auth" {
		t.Errorf("Location = %q", loc)
	}
}

func TestSignInBackendDown(t *testing.T) {
	srv := NewServer(&fakeSession{loginErr: errors.New("connection refused")}, zaptest.NewLogger(t))

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/signin", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 502 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAuthSuccess(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		status  int
		refresh string
		text    string
	}{
		{"token", "?token=abc", 200, "1; url=/", "Welcome, Ann"},
		{"provider error", "?error=access_denied", 401, "3; url=/signin", "access_denied"},
		{"no token", "", 401, "3; url=/signin", "no token received"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{}
			srv := NewServer(session, zaptest.NewLogger(t))

			resp, err := srv.App().Test(httptest.NewRequest("GET", "/auth/success"+tt.query, nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := resp.Header.Get("Refresh"); got != tt.refresh {
				t.Errorf("Refresh = %q, want %q", got, tt.refresh)
			}
			if got := body(t, resp.Body); !strings.Contains(got, tt.text) {
				t.Errorf("body %q does not mention %q", got, tt.text)
			}
		})
	}
}

func TestStatusAndLogout(t *testing.T) {
	session := &fakeSession{user: &models.User{Name: "Ann", Email: "ann@example.com"}}
	srv := NewServer(session, zaptest.NewLogger(t))

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := body(t, resp.Body); !strings.Contains(got, "ann@example.com") {
		t.Errorf("status page = %q", got)
	}

	resp, err = srv.App().Test(httptest.NewRequest("POST", "/logout", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 303 || !session.loggedOut {
		t.Fatalf("logout status = %d, loggedOut = %v", resp.StatusCode, session.loggedOut)
	}

	resp, err = srv.App().Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := body(t, resp.Body); !strings.Contains(got, "Not signed in") {
		t.Errorf("status page after logout = %q", got)
	}
}
