package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/xaenox/mailpilot-bot/internal/api"
	"github.com/xaenox/mailpilot-bot/internal/storage"
	"go.uber.org/zap/zaptest"
)

// fakeBackend serves the auth endpoints and accepts only validToken.
type fakeBackend struct {
	validToken string
	logouts    atomic.Int32
	logoutCode int
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authorized := r.Header.Get("Authorization") == "Bearer "+f.validToken

	switch r.URL.Path {
	case "/auth/google/login":
		json.NewEncoder(w).Encode(map[string]string{"authorization_url": "https://accounts.example/o/auth?state=xyz"})
	case "/auth/me":
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "ann@example.com", "name": "Ann"})
	case "/auth/logout":
		f.logouts.Add(1)
		if f.logoutCode != 0 {
			w.WriteHeader(f.logoutCode)
			json.NewEncoder(w).Encode(map[string]string{"detail": "boom"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Logged out successfully"})
	case "/auth/check-permissions":
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"has_permissions": false,
			"granted_scopes":  []string{"openid"},
			"missing_scopes":  []string{"https://www.googleapis.com/auth/gmail.modify"},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestSession(t *testing.T, backend *fakeBackend) (*Session, *storage.MemoryStorage) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t)
	client := api.NewClient(srv.URL, store, 0, logger)
	return NewSession(client, store, logger), store
}

func storedToken(t *testing.T, store storage.TokenStore) string {
	t.Helper()
	token, err := store.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	return token
}

func TestLoginURL(t *testing.T) {
	session, _ := newTestSession(t, &fakeBackend{validToken: "good"})

	got, err := session.LoginURL(context.Background())
	if err != nil {
		t.Fatalf("LoginURL: %v", err)
	}
	if got != "https://accounts.example/o/auth?state=xyz" {
		t.Errorf("LoginURL = %q", got)
	}
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores token", func(t *testing.T) {
		session, store := newTestSession(t, &fakeBackend{validToken: "good"})

		user, err := session.Complete(ctx, "good", "")
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if user.Email != "ann@example.com" {
			t.Errorf("user = %+v", user)
		}
		if got := storedToken(t, store); got != "good" {
			t.Errorf("stored token = %q", got)
		}
	})

	tests := []struct {
		name     string
		token    string
		errParam string
	}{
		{"error param", "good", "access_denied"},
		{"missing token", "", ""},
		{"rejected token", "forged", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, store := newTestSession(t, &fakeBackend{validToken: "good"})

			_, err := session.Complete(ctx, tt.token, tt.errParam)
			if !errors.Is(err, ErrSignIn) {
				t.Fatalf("err = %v, want ErrSignIn", err)
			}
			if got := storedToken(t, store); got != "" {
				t.Errorf("token %q left behind after failed sign-in", got)
			}
		})
	}
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		session, _ := newTestSession(t, &fakeBackend{validToken: "good"})
		if _, err := session.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("err = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		session, store := newTestSession(t, &fakeBackend{validToken: "good"})
		store.SaveToken(ctx, "good")

		user, err := session.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("CurrentUser: %v", err)
		}
		if user.Name != "Ann" {
			t.Errorf("user = %+v", user)
		}
	})
}

func TestUnauthorizedClearsSession(t *testing.T) {
	ctx := context.Background()
	session, store := newTestSession(t, &fakeBackend{validToken: "good"})
	store.SaveToken(ctx, "expired")

	if _, err := session.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if got := storedToken(t, store); got != "" {
		t.Fatalf("token %q survived a 401", got)
	}

	ok, err := session.HasToken(ctx)
	if err != nil || ok {
		t.Errorf("HasToken = %v, %v after 401", ok, err)
	}
	if _, err := session.CurrentUser(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("next CurrentUser err = %v, want ErrNotAuthenticated", err)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	for _, code := range []int{0, http.StatusInternalServerError} {
		backend := &fakeBackend{validToken: "good", logoutCode: code}
		session, store := newTestSession(t, backend)
		store.SaveToken(ctx, "good")

		if err := session.Logout(ctx); err != nil {
			t.Fatalf("Logout (backend status %d): %v", code, err)
		}
		if got := storedToken(t, store); got != "" {
			t.Errorf("token %q not cleared (backend status %d)", got, code)
		}
		if backend.logouts.Load() != 1 {
			t.Errorf("backend logout called %d times", backend.logouts.Load())
		}
	}
}

func TestCheckPermissions(t *testing.T) {
	ctx := context.Background()
	session, store := newTestSession(t, &fakeBackend{validToken: "good"})

	if _, err := session.CheckPermissions(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v without token, want ErrNotAuthenticated", err)
	}

	store.SaveToken(ctx, "good")
	perms, err := session.CheckPermissions(ctx)
	if err != nil {
		t.Fatalf("CheckPermissions: %v", err)
	}
	if perms.HasPermissions || len(perms.MissingScopes) != 1 {
		t.Errorf("perms = %+v", perms)
	}
}
