package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minhyannv/ai-cli/pkg/store"
)

const sessionPath = "/api/auth/get-session"

// ErrUserNotFound means the token is valid transport-wise but maps to no user.
var ErrUserNotFound = errors.New("user not found, run `ai-cli login` again")

// Resolver looks up the user that owns a bearer token.
type Resolver struct {
	ServerURL  string
	HTTPClient *http.Client
	// Users caches resolved identities when set.
	Users interface {
		UpsertUser(ctx context.Context, user *store.User) error
	}
}

type sessionResponse struct {
	User *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Image string `json:"image"`
	} `json:"user"`
}

// Resolve returns the user for accessToken.
func (r *Resolver) Resolve(ctx context.Context, accessToken string) (*store.User, error) {
	endpoint := strings.TrimRight(r.ServerURL, "/") + sessionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch session: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var session sessionResponse
	if len(strings.TrimSpace(string(body))) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &session); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
	}
	if session.User == nil || session.User.ID == "" {
		return nil, ErrUserNotFound
	}

	user := &store.User{
		ID:        session.User.ID,
		Name:      session.User.Name,
		Email:     session.User.Email,
		Image:     session.User.Image,
		UpdatedAt: time.Now(),
	}
	if r.Users != nil {
		if err := r.Users.UpsertUser(ctx, user); err != nil {
			return nil, fmt.Errorf("cache user: %w", err)
		}
	}
	return user, nil
}
