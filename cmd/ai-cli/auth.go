package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minhyannv/ai-cli/pkg/deviceauth"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/token"
	"github.com/minhyannv/ai-cli/pkg/ui"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with the device authorization flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.login(cmd.Context())
		},
	}
	cmd.Flags().String("client-id", "", "OAuth client ID (default $GITHUB_CLIENT_ID)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.logout()
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.whoami(cmd.Context())
		},
	}
}

// login runs the device flow and stores the granted token.
func (a *App) login(ctx context.Context) error {
	if a.cfg.ClientID == "" {
		return errors.New("client id is not set: pass --client-id or set GITHUB_CLIENT_ID")
	}
	_, _ = fmt.Fprintln(a.out, ui.Title("Auth CLI Login"))

	tokens := a.tokens()
	existing, err := tokens.Load()
	if err != nil {
		ui.Warnf(a.out, "Ignoring unreadable token file: %v", err)
	}
	if existing != nil && !existing.Expired(time.Now()) {
		again, err := a.prompter.Confirm("You are already logged in. Do you want to log in again?", false)
		if err != nil {
			return err
		}
		if !again {
			ui.Warnf(a.out, "Login cancelled")
			return nil
		}
	}

	client := &deviceauth.Client{
		ServerURL:  a.cfg.ServerURL,
		ClientID:   a.cfg.ClientID,
		Scopes:     strings.Fields(a.cfg.Scope),
		HTTPClient: a.httpClient,
		UserAgent:  "ai-cli",
	}

	spinner := ui.NewSpinner(a.out)
	spinner.Start("Requesting device authorization...")
	code, err := client.RequestCode(ctx)
	spinner.Stop("")
	if err != nil {
		return fmt.Errorf("request device authorization: %w", err)
	}
	loggerpkg.Debug(a.cfg.Verbose, a.logger, "device code issued", map[string]any{
		"expires_in": code.ExpiresIn.String(),
		"interval":   code.Interval.String(),
	})

	verificationURL := code.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = code.VerificationURI
	}
	body := fmt.Sprintf("Visit: %s\nEnter code: %s", ui.Bold(code.VerificationURI), ui.Bold(code.UserCode))
	_, _ = fmt.Fprintln(a.out, ui.Box("Device Authorization", body, ui.ColorAccent))

	open, err := a.prompter.Confirm("Open the browser automatically?", true)
	if err != nil {
		return err
	}
	if open {
		if err := a.openBrowser(verificationURL); err != nil {
			ui.Warnf(a.out, "Could not open the browser: %v", err)
		}
	}

	if code.ExpiresIn > 0 {
		ui.Dimf(a.out, "Waiting for authorization (expires in %d minutes)...", int(code.ExpiresIn.Round(time.Minute)/time.Minute))
	} else {
		ui.Dimf(a.out, "Waiting for authorization...")
	}

	polling := ui.NewSpinner(a.out)
	poller := &deviceauth.Poller{
		Exchanger: client,
		Interval:  code.Interval,
		ExpiresIn: code.ExpiresIn,
		Logger:    a.logger,
		Sleep:     a.sleep,
		OnTick: func(attempt int, state deviceauth.State) {
			loggerpkg.Debug(a.cfg.Verbose, a.logger, "device token poll", map[string]any{"attempt": attempt, "state": string(state)})
			switch state {
			case deviceauth.StatePending:
				polling.Start(fmt.Sprintf("Polling for authorization... (attempt %d)", attempt))
			case deviceauth.StateSlowed:
				polling.Start("Server asked to slow down, polling less often...")
			default:
				polling.Stop("")
			}
		},
	}
	polling.Start("Polling for authorization...")
	resp, err := poller.Poll(ctx, code.DeviceCode)
	polling.Stop("")
	if err != nil {
		switch {
		case errors.Is(err, deviceauth.ErrAccessDenied):
			return errors.New("access was denied")
		case errors.Is(err, deviceauth.ErrExpiredToken):
			return errors.New("the device code has expired, please run login again")
		}
		return fmt.Errorf("device authorization failed: %w", err)
	}

	saved, err := tokens.Save(token.AuthToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
	}, time.Duration(resp.ExpiresIn)*time.Second)
	if err != nil {
		loggerpkg.Warn(a.logger, "token not saved", map[string]any{"path": tokens.Path, "error": err.Error()})
		ui.Warnf(a.out, "Warning: could not save the token, you will need to log in again: %v", err)
		ui.Successf(a.out, "Login successful")
		return nil
	}

	var users store.Repository
	if repo, err := a.openStore(); err == nil {
		defer func() { _ = repo.Close() }()
		users = repo
	} else {
		loggerpkg.Warn(a.logger, "user cache unavailable", map[string]any{"error": err.Error()})
	}
	greeting := "Login successful"
	if user, err := a.resolveUser(ctx, saved, users); err == nil {
		greeting = fmt.Sprintf("Login successful! Welcome %s", displayName(user))
	} else {
		loggerpkg.Debug(a.cfg.Verbose, a.logger, "session lookup after login failed", map[string]any{"error": err.Error()})
	}
	ui.Successf(a.out, "%s", greeting)
	ui.Dimf(a.out, "Token saved to %s", tokens.Path)
	return nil
}

// logout clears the stored token after confirmation.
func (a *App) logout() error {
	tokens := a.tokens()
	existing, err := tokens.Load()
	if err != nil {
		return err
	}
	if existing == nil {
		ui.Warnf(a.out, "You are not logged in")
		return nil
	}
	ok, err := a.prompter.Confirm("Are you sure you want to log out?", false)
	if err != nil {
		return err
	}
	if !ok {
		ui.Warnf(a.out, "Logout cancelled")
		return nil
	}
	if err := tokens.Clear(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	ui.Successf(a.out, "Successfully logged out")
	return nil
}

// whoami prints the user behind the stored token.
func (a *App) whoami(ctx context.Context) error {
	repo, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	user, err := a.authenticate(ctx, repo)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Name: %s\nEmail: %s\nID: %s", ui.Bold(user.Name), user.Email, ui.Dim(user.ID))
	_, _ = fmt.Fprintln(a.out, ui.Box("User", body, ui.ColorSuccess))
	return nil
}
