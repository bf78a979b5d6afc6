package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExpiryMargin is how far ahead of the real expiry a token is already treated as expired.
const ExpiryMargin = 5 * time.Minute

var (
	// ErrNotAuthenticated means no token is stored.
	ErrNotAuthenticated = errors.New("not authenticated, run `ai-cli login` first")
	// ErrTokenExpired means the stored token is expired or about to expire.
	ErrTokenExpired = errors.New("session expired, run `ai-cli login` again")
)

// AuthToken is the persisted bearer credential.
type AuthToken struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether t is unusable at now. Tokens without an expiry are
// always treated as expired.
func (t *AuthToken) Expired(now time.Time) bool {
	if t == nil || t.AccessToken == "" || t.ExpiresAt == nil {
		return true
	}
	return t.ExpiresAt.Sub(now) < ExpiryMargin
}

// Store persists a single token as JSON at Path.
type Store struct {
	Path string
	now  func() time.Time
}

// NewStore returns a file-backed token store.
func NewStore(path string) *Store {
	return &Store{Path: path, now: time.Now}
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Save writes tok, computing expires_at from expiresIn. A non-positive
// expiresIn stores a null expiry.
func (s *Store) Save(tok AuthToken, expiresIn time.Duration) (*AuthToken, error) {
	if strings.TrimSpace(tok.AccessToken) == "" {
		return nil, errors.New("access token is empty")
	}
	now := s.clock().UTC()
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	tok.CreatedAt = now
	tok.ExpiresAt = nil
	if expiresIn > 0 {
		expiresAt := now.Add(expiresIn)
		tok.ExpiresAt = &expiresAt
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(s.Path, append(data, '\n'), 0o600); err != nil {
		return nil, fmt.Errorf("write token file: %w", err)
	}
	return &tok, nil
}

// Load returns the stored token, or nil when none is stored.
func (s *Store) Load() (*AuthToken, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok AuthToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.Path, err)
	}
	return &tok, nil
}

// Clear removes the token file. A missing file is success.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// IsExpired is true when no token is stored, it has no expiry, or it expires
// within ExpiryMargin. Unreadable files count as expired.
func (s *Store) IsExpired() bool {
	tok, err := s.Load()
	if err != nil {
		return true
	}
	return tok.Expired(s.clock())
}

// RequireAuth returns the stored token or an authentication error.
func (s *Store) RequireAuth() (*AuthToken, error) {
	tok, err := s.Load()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	if tok.Expired(s.clock()) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}
