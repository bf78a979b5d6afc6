package token

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "token.json"))
	s.now = func() time.Time { return now }
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestStore(t, now)

	saved, err := s.Save(AuthToken{AccessToken: "tok_1", Scope: "openid profile email"}, time.Hour)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.TokenType != "Bearer" {
		t.Fatalf("expected default token type, got %q", saved.TokenType)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AccessToken != "tok_1" {
		t.Fatalf("unexpected access token %q", loaded.AccessToken)
	}
	if loaded.ExpiresAt == nil || !loaded.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", loaded.ExpiresAt)
	}
	if !loaded.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at %v", loaded.CreatedAt)
	}
}

func TestSaveWritesNullExpiryAndPrivateFile(t *testing.T) {
	s := newTestStore(t, time.Now())
	if _, err := s.Save(AuthToken{AccessToken: "tok"}, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, ok := raw["expires_at"]; !ok || v != nil {
		t.Fatalf("expected explicit null expires_at, got %#v", raw["expires_at"])
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(s.Path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("expected 0600, got %o", perm)
		}
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresIn time.Duration
		store     bool
		want      bool
	}{
		{name: "no token", store: false, want: true},
		{name: "no expiry", expiresIn: 0, store: true, want: true},
		{name: "inside margin", expiresIn: 4 * time.Minute, store: true, want: true},
		{name: "exactly at margin", expiresIn: 5 * time.Minute, store: true, want: false},
		{name: "valid", expiresIn: time.Hour, store: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, now)
			if tt.store {
				if _, err := s.Save(AuthToken{AccessToken: "tok"}, tt.expiresIn); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}
			if got := s.IsExpired(); got != tt.want {
				t.Fatalf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsExpiredPastExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	if _, err := s.Save(AuthToken{AccessToken: "tok"}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	if !s.IsExpired() {
		t.Fatal("expected past token to be expired")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s := newTestStore(t, time.Now())
	if _, err := s.Save(AuthToken{AccessToken: "tok"}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	tok, err := s.Load()
	if err != nil || tok != nil {
		t.Fatalf("expected no token after clear, got %#v, %v", tok, err)
	}
}

func TestRequireAuth(t *testing.T) {
	now := time.Now()
	s := newTestStore(t, now)
	if _, err := s.RequireAuth(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	if _, err := s.Save(AuthToken{AccessToken: "tok"}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.RequireAuth(); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if _, err := s.Save(AuthToken{AccessToken: "tok"}, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tok, err := s.RequireAuth()
	if err != nil || tok.AccessToken != "tok" {
		t.Fatalf("unexpected result %#v, %v", tok, err)
	}
}

func TestSaveRejectsEmptyAccessToken(t *testing.T) {
	s := newTestStore(t, time.Now())
	if _, err := s.Save(AuthToken{}, time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
