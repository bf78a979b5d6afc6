package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/minhyannv/ai-cli/pkg/chat"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/ui"
)

// MinDescriptionRunes is the shortest description accepted in agent mode.
const MinDescriptionRunes = 10

// Session is the interactive agent loop over one conversation.
type Session struct {
	service   *chat.Service
	generator *Generator
	prompter  ui.Prompter
	out       io.Writer
	cwd       string

	logger  loggerpkg.Logger
	verbose bool
}

// NewSession wires an agent loop that writes applications under cwd.
func NewSession(service *chat.Service, generator *Generator, prompter ui.Prompter, out io.Writer, cwd string, opts ...Option) *Session {
	deps := applyOptions(opts)
	return &Session{
		service:   service,
		generator: generator,
		prompter:  prompter,
		out:       out,
		cwd:       cwd,
		logger:    deps.logger,
		verbose:   deps.verbose,
	}
}

// ValidateDescription enforces the minimum description length.
func ValidateDescription(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return &ValidationError{Field: "description", Reason: "can't be empty"}
	}
	if utf8.RuneCountInString(input) < MinDescriptionRunes {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("please provide more details (at least %d characters)", MinDescriptionRunes)}
	}
	return nil
}

// Run prompts for descriptions until the user exits or declines to continue.
func (s *Session) Run(ctx context.Context, conv *store.Conversation) error {
	s.showHelp(conv)

	for {
		input, err := s.prompter.Input("What would you like to build?")
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				ui.Warnf(s.out, "Agent session cancelled")
			}
			return err
		}
		if strings.EqualFold(input, chat.ExitCommand) {
			ui.Warnf(s.out, "Agent session ended")
			return nil
		}
		if err := ValidateDescription(input); err != nil {
			ui.Warnf(s.out, "%v", err)
			continue
		}

		again, err := s.turn(ctx, conv, input)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

// turn generates one application and reports whether to prompt again.
func (s *Session) turn(ctx context.Context, conv *store.Conversation, input string) (bool, error) {
	_, _ = fmt.Fprintln(s.out, ui.Box("Your request", input, ui.ColorAccent))
	if _, err := s.service.AddMessage(ctx, conv.ID, store.RoleUser, input); err != nil {
		return false, err
	}
	count, err := s.messageCount(ctx, conv.ID)
	if err != nil {
		return false, err
	}
	if updated, err := s.service.MaybeUpdateTitle(ctx, conv.ID, count, input); err != nil {
		return false, err
	} else if updated {
		conv.Title = chat.TitleFromInput(input)
	}

	result, genErr := s.generator.Generate(ctx, input, s.cwd)
	if genErr != nil {
		if ctx.Err() != nil {
			return false, ui.ErrCancelled
		}
		loggerpkg.Error(s.logger, "application generation failed", map[string]any{"conversation_id": conv.ID, "error": genErr.Error()})
		ui.Errorf(s.out, "Error generating application: %v", genErr)
		if _, err := s.service.AddMessage(ctx, conv.ID, store.RoleAssistant, "Error: "+genErr.Error()); err != nil {
			return false, err
		}
		return s.prompter.Confirm("Would you like to retry?", true)
	}

	if _, err := s.service.AddMessage(ctx, conv.ID, store.RoleAssistant, result.Summary()); err != nil {
		return false, err
	}
	again, err := s.prompter.Confirm("Would you like to generate another application?", true)
	if err != nil {
		return false, err
	}
	if !again {
		_, _ = fmt.Fprintln(s.out, ui.Success("Great! Check your new application."))
	}
	return again, nil
}

func (s *Session) messageCount(ctx context.Context, conversationID string) (int, error) {
	msgs, err := s.service.Messages(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

func (s *Session) showHelp(conv *store.Conversation) {
	info := fmt.Sprintf("%s\n%s\n%s\n%s",
		ui.Bold("Conversation: "+conv.Title),
		ui.Dim("ID: "+conv.ID),
		ui.Dim("Mode: "+string(conv.Mode)),
		ui.Title("Working Directory: "+s.cwd))
	_, _ = fmt.Fprintln(s.out, ui.Box("Agent Mode", info, ui.ColorAccent))

	help := strings.Join([]string{
		ui.Title("What can the agent do?"),
		"",
		ui.Dim("Generate complete applications from descriptions"),
		ui.Dim("Create all necessary files and folders"),
		ui.Dim("Include setup instructions and commands"),
		"",
		ui.Warn("Examples:"),
		"Build a todo app with React and Tailwind",
		"Create a REST API with Express and MongoDB",
		"",
		ui.Dim(`Type "exit" to end the session`),
	}, "\n")
	_, _ = fmt.Fprintln(s.out, ui.Box("Agent Instructions", help, ui.ColorAccent))
}
