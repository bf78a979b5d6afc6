package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/minhyannv/ai-cli/pkg/agent"
	"github.com/minhyannv/ai-cli/pkg/chat"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/prompt"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/tools"
	"github.com/minhyannv/ai-cli/pkg/ui"
	"github.com/spf13/cobra"
)

type wakeupOptions struct {
	conversationID string
	mode           string
	persona        string
	tools          stringSliceFlag
}

func newWakeupCmd(app *App) *cobra.Command {
	opts := &wakeupOptions{}
	cmd := &cobra.Command{
		Use:   "wakeup",
		Short: "Start a chat, tool or agent session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("tool") && len(app.cfg.Tools) > 0 {
				opts.tools = append(stringSliceFlag(nil), app.cfg.Tools...)
			}
			return app.wakeup(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.conversationID, "conversation", "", "Resume a conversation by ID")
	flags.StringVar(&opts.mode, "mode", "", "Session mode: chat, tool or agent (default: ask)")
	flags.StringVar(&opts.persona, "persona", "", "Persona name from the persona directory")
	flags.Var(&opts.tools, "tool", "Enable a tool in tool mode (repeatable)")
	flags.String("model", "", "Model name (default $AI_MODEL)")
	return cmd
}

var modeOptions = []ui.Option{
	{Value: string(store.ModeChat), Label: "Chat", Description: "Simple chat with AI"},
	{Value: string(store.ModeTool), Label: "Tool Calling", Description: "Chat with tools (web search, code execution, URL context)"},
	{Value: string(store.ModeAgent), Label: "Agentic Mode", Description: "Generate a complete application in the current directory"},
}

// wakeup authenticates, picks a mode and runs the matching session.
func (a *App) wakeup(ctx context.Context, opts *wakeupOptions) error {
	repo, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	user, err := a.authenticate(ctx, repo)
	if err != nil {
		return err
	}
	ui.Successf(a.out, "Welcome back, %s!", displayName(user))

	mode, err := a.selectMode(opts.mode)
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateModel(); err != nil {
		return err
	}
	persona, err := a.loadPersona(opts.persona, mode)
	if err != nil {
		return err
	}

	m, err := a.newModel(a.cfg, a.logger)
	if err != nil {
		return err
	}
	service := chat.NewService(repo, a.logger)

	switch mode {
	case store.ModeTool:
		return a.runToolMode(ctx, service, m, user, opts, persona)
	case store.ModeAgent:
		return a.runAgentMode(ctx, service, m, user, opts)
	default:
		return a.runChatMode(ctx, service, m, user, opts, persona)
	}
}

func (a *App) selectMode(flagValue string) (store.Mode, error) {
	if flagValue != "" {
		return store.ParseMode(flagValue)
	}
	choice, err := a.menu.Select("Choose a mode:", modeOptions)
	if err != nil {
		return "", err
	}
	return store.ParseMode(choice)
}

// loadPersona resolves --persona against the persona directory.
func (a *App) loadPersona(name string, mode store.Mode) (*prompt.Persona, error) {
	if name == "" {
		return nil, nil
	}
	personas, err := prompt.LoadPersonas(a.cfg.PersonaDir)
	if err != nil {
		return nil, err
	}
	persona, ok := prompt.FindPersona(personas, name)
	if !ok {
		return nil, fmt.Errorf("persona %q not found in %s", name, a.cfg.PersonaDir)
	}
	if !persona.AppliesTo(string(mode)) {
		return nil, fmt.Errorf("persona %q does not apply to %s mode", name, mode)
	}
	loggerpkg.Debug(a.cfg.Verbose, a.logger, "persona loaded", map[string]any{"name": persona.Name, "path": persona.Path})
	return persona, nil
}

func (a *App) conversation(ctx context.Context, service *chat.Service, user *store.User, id string, mode store.Mode) (*store.Conversation, error) {
	conv, err := service.GetOrCreateConversation(ctx, user.ID, id, mode)
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	return conv, nil
}

func (a *App) runChatMode(ctx context.Context, service *chat.Service, m model, user *store.User, opts *wakeupOptions, persona *prompt.Persona) error {
	conv, err := a.conversation(ctx, service, user, opts.conversationID, store.ModeChat)
	if err != nil {
		return err
	}
	loop := chat.NewLoop(service, m, a.prompter, a.out,
		chat.WithLogger(a.logger, a.cfg.Verbose),
		chat.WithSystemPrompt(prompt.BuildSystemPrompt(string(store.ModeChat), nil, persona)),
	)
	return loop.Run(ctx, conv)
}

func (a *App) runToolMode(ctx context.Context, service *chat.Service, m model, user *store.User, opts *wakeupOptions, persona *prompt.Persona) error {
	cwd, err := a.getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	registry := tools.New(tools.Context{
		Verbose:     a.cfg.Verbose,
		AllowedDirs: []string{cwd},
		Ctx:         ctx,
		Logger:      a.logger,
		HTTPClient:  a.httpClient,
	})

	if ids := opts.tools.values(); len(ids) > 0 {
		if err := registry.Enable(ids); err != nil {
			return err
		}
	} else {
		available := registry.Available()
		options := make([]ui.Option, 0, len(available))
		for _, info := range available {
			options = append(options, ui.Option{Value: info.ID, Label: info.Name, Description: info.Description, Checked: info.Enabled})
		}
		selected, err := a.menu.MultiSelect("Select tools to enable (space to toggle, enter to confirm):", options)
		if err != nil {
			return err
		}
		if err := registry.Enable(selected); err != nil {
			return err
		}
	}

	names := registry.EnabledNames()
	if len(names) == 0 {
		ui.Warnf(a.out, "No tools selected. Continuing without tools.")
	} else {
		ui.Successf(a.out, "Enabled tools: %s", strings.Join(names, ", "))
	}

	conv, err := a.conversation(ctx, service, user, opts.conversationID, store.ModeTool)
	if err != nil {
		return err
	}
	loop := chat.NewLoop(service, m, a.prompter, a.out,
		chat.WithLogger(a.logger, a.cfg.Verbose),
		chat.WithSystemPrompt(prompt.BuildSystemPrompt(string(store.ModeTool), names, persona)),
		chat.WithTools(registry),
	)
	return loop.Run(ctx, conv)
}

func (a *App) runAgentMode(ctx context.Context, service *chat.Service, m model, user *store.User, opts *wakeupOptions) error {
	cwd, err := a.getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	body := fmt.Sprintf("The agent will create a new folder with generated files in:\n%s", ui.Bold(cwd))
	_, _ = fmt.Fprintln(a.out, ui.Box("Agent Mode", body, ui.ColorWarn))
	ok, err := a.prompter.Confirm("Continue in this directory?", true)
	if err != nil {
		return err
	}
	if !ok {
		ui.Warnf(a.out, "Agent mode cancelled")
		return nil
	}

	conv, err := a.conversation(ctx, service, user, opts.conversationID, store.ModeAgent)
	if err != nil {
		return err
	}
	generator := agent.NewGenerator(m, a.out, agent.WithLogger(a.logger, a.cfg.Verbose))
	session := agent.NewSession(service, generator, a.prompter, a.out, cwd, agent.WithLogger(a.logger, a.cfg.Verbose))
	return session.Run(ctx, conv)
}
