package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minhyannv/ai-cli/pkg/agent"
	"github.com/minhyannv/ai-cli/pkg/chat"
	configpkg "github.com/minhyannv/ai-cli/pkg/config"
	"github.com/minhyannv/ai-cli/pkg/identity"
	"github.com/minhyannv/ai-cli/pkg/llm"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/token"
	"github.com/minhyannv/ai-cli/pkg/ui"
)

// model is the gateway surface used by the interactive modes.
type model interface {
	chat.Streamer
	agent.ObjectGenerator
}

// selector picks options from an interactive list.
type selector interface {
	Select(title string, options []ui.Option) (string, error)
	MultiSelect(title string, options []ui.Option) ([]string, error)
}

// App holds the process-wide dependencies handed to every command.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg        configpkg.Config
	configPath string
	logger     loggerpkg.Logger

	prompter    ui.Prompter
	menu        selector
	httpClient  *http.Client
	openBrowser func(url string) error
	sleep       func(ctx context.Context, d time.Duration) error
	newModel    func(cfg configpkg.Config, logger loggerpkg.Logger) (model, error)
	getwd       func() (string, error)
}

// newApp wires production dependencies over the given streams.
func newApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{
		in:          in,
		out:         out,
		errOut:      errOut,
		cfg:         configpkg.DefaultConfig(),
		logger:      loggerpkg.NopLogger{},
		prompter:    ui.NewLinePrompter(in, out),
		menu:        ui.Menu{Out: out},
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		openBrowser: openBrowser,
		newModel:    newGateway,
		getwd:       os.Getwd,
	}
}

func newGateway(cfg configpkg.Config, logger loggerpkg.Logger) (model, error) {
	gateway, err := llm.New(llm.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		MaxTurns: cfg.MaxTurns,
		Verbose:  cfg.Verbose,
	}, llm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return gateway, nil
}

func (a *App) tokens() *token.Store {
	return token.NewStore(a.cfg.TokenFile)
}

func (a *App) openStore() (*store.SQLiteStore, error) {
	repo, err := store.NewSQLite(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	return repo, nil
}

// resolveUser maps the stored token to a user and caches it in repo.
func (a *App) resolveUser(ctx context.Context, tok *token.AuthToken, repo store.Repository) (*store.User, error) {
	resolver := &identity.Resolver{
		ServerURL:  a.cfg.ServerURL,
		HTTPClient: a.httpClient,
	}
	if repo != nil {
		resolver.Users = repo
	}
	user, err := resolver.Resolve(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	loggerpkg.Debug(a.cfg.Verbose, a.logger, "user resolved", map[string]any{"user_id": user.ID})
	return user, nil
}

// authenticate requires a valid token and returns the user behind it.
func (a *App) authenticate(ctx context.Context, repo store.Repository) (*store.User, error) {
	tok, err := a.tokens().RequireAuth()
	if err != nil {
		return nil, err
	}
	return a.resolveUser(ctx, tok, repo)
}

func displayName(u *store.User) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}
