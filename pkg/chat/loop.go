package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minhyannv/ai-cli/pkg/llm"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/ui"
)

// ExitCommand ends an interactive session.
const ExitCommand = "exit"

// Streamer is the part of the model gateway the loop needs.
type Streamer interface {
	Stream(ctx context.Context, messages []llm.Message, onChunk func(string), opts llm.StreamOptions) (llm.Result, error)
}

// LoopOption configures optional runtime dependencies for Loop.
type LoopOption func(*loopDeps)

type loopDeps struct {
	logger       loggerpkg.Logger
	verbose      bool
	systemPrompt string
	tools        llm.ToolExecutor
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger, verbose bool) LoopOption {
	return func(d *loopDeps) {
		d.logger = l
		d.verbose = verbose
	}
}

// WithSystemPrompt prepends a system message to every model request.
func WithSystemPrompt(prompt string) LoopOption {
	return func(d *loopDeps) {
		d.systemPrompt = prompt
	}
}

// WithTools lets the model call tools during a turn.
func WithTools(tools llm.ToolExecutor) LoopOption {
	return func(d *loopDeps) {
		d.tools = tools
	}
}

// Loop is one interactive chat session.
type Loop struct {
	service  *Service
	model    Streamer
	prompter ui.Prompter
	out      io.Writer

	logger       loggerpkg.Logger
	verbose      bool
	systemPrompt string
	tools        llm.ToolExecutor
}

// NewLoop wires a session over service and model.
func NewLoop(service *Service, model Streamer, prompter ui.Prompter, out io.Writer, opts ...LoopOption) *Loop {
	deps := loopDeps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	return &Loop{
		service:      service,
		model:        model,
		prompter:     prompter,
		out:          out,
		logger:       deps.logger,
		verbose:      deps.verbose,
		systemPrompt: deps.systemPrompt,
		tools:        deps.tools,
	}
}

// Run reads user turns until "exit". Cancellation returns ui.ErrCancelled.
func (l *Loop) Run(ctx context.Context, conv *store.Conversation) error {
	l.showConversation(conv)
	_, _ = fmt.Fprintln(l.out, ui.Dim("Type your message and press enter. Type 'exit' to end the conversation, Ctrl+C to quit."))

	for {
		input, err := l.prompter.Input("Your message:")
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				l.ended()
			}
			return err
		}
		if input == "" {
			ui.Warnf(l.out, "Message can't be empty")
			continue
		}
		if strings.EqualFold(input, ExitCommand) {
			l.ended()
			return nil
		}

		if err := l.turn(ctx, conv, input); err != nil {
			return err
		}
	}
}

// turn saves input, streams the reply and saves it. Model failures offer a retry.
func (l *Loop) turn(ctx context.Context, conv *store.Conversation, input string) error {
	if _, err := l.service.AddMessage(ctx, conv.ID, store.RoleUser, input); err != nil {
		return err
	}
	history, err := l.service.Messages(ctx, conv.ID)
	if err != nil {
		return err
	}
	count := len(history)

	for {
		reply, err := l.respond(ctx, history)
		if err == nil {
			if _, err := l.service.AddMessage(ctx, conv.ID, store.RoleAssistant, reply); err != nil {
				return err
			}
			updated, err := l.service.MaybeUpdateTitle(ctx, conv.ID, count, input)
			if err != nil {
				return err
			}
			if updated {
				conv.Title = TitleFromInput(input)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ui.ErrCancelled
		}

		loggerpkg.Error(l.logger, "model request failed", map[string]any{"conversation_id": conv.ID, "error": err.Error()})
		ui.Errorf(l.out, "Failed to get AI response: %v", err)
		retry, perr := l.prompter.Confirm("Retry this message?", true)
		if perr != nil {
			return perr
		}
		if !retry {
			return nil
		}
	}
}

func (l *Loop) respond(ctx context.Context, history []store.Message) (string, error) {
	messages := FormatForModel(history)
	if l.systemPrompt != "" {
		messages = append([]llm.Message{{Role: llm.RoleSystem, Content: l.systemPrompt}}, messages...)
	}
	loggerpkg.Debug(l.verbose, l.logger, "sending conversation to model", map[string]any{"messages": len(messages)})

	spinner := ui.NewSpinner(l.out)
	spinner.Start("AI is thinking...")
	first := true
	startReply := func() {
		if first {
			_, _ = fmt.Fprintln(l.out, ui.Success(ui.Bold("Assistant:")))
			_, _ = fmt.Fprintln(l.out, ui.Dim(strings.Repeat("─", 60)))
			first = false
		}
	}

	opts := llm.StreamOptions{Tools: l.tools}
	if l.tools != nil {
		opts.OnToolCall = func(name, arguments string) {
			spinner.Stop("")
			_, _ = fmt.Fprintln(l.out, ui.Warn("Calling tool: "+name))
			loggerpkg.Debug(l.verbose, l.logger, "tool call", map[string]any{"tool": name, "arguments": arguments})
			spinner.Start("Running " + name + "...")
		}
	}

	result, err := l.model.Stream(ctx, messages, func(chunk string) {
		spinner.Stop("")
		startReply()
		_, _ = io.WriteString(l.out, chunk)
	}, opts)
	spinner.Stop("")
	if err != nil {
		return "", err
	}
	if first {
		startReply()
	}
	_, _ = fmt.Fprintln(l.out)
	_, _ = fmt.Fprintln(l.out, ui.Dim(strings.Repeat("─", 60)))
	loggerpkg.Debug(l.verbose, l.logger, "model reply complete", map[string]any{
		"finish_reason": result.FinishReason,
		"total_tokens":  result.Usage.TotalTokens,
	})
	return result.Content, nil
}

func (l *Loop) showConversation(conv *store.Conversation) {
	info := fmt.Sprintf("%s\n%s\n%s",
		ui.Bold("Conversation: "+conv.Title),
		ui.Dim("ID: "+conv.ID),
		ui.Dim("Mode: "+string(conv.Mode)))
	_, _ = fmt.Fprintln(l.out, ui.Box("Chat session", info, ui.ColorAccent))
	if len(conv.Messages) > 0 {
		_, _ = fmt.Fprintln(l.out, ui.Warn("Previous messages:"))
		ShowMessages(l.out, conv.Messages)
	}
}

func (l *Loop) ended() {
	_, _ = fmt.Fprintln(l.out, ui.Box("", ui.Warn("Chat session ended"), ui.ColorWarn))
}

// ShowMessages prints stored messages, rendering assistant replies as markdown.
func ShowMessages(w io.Writer, messages []store.Message) {
	for _, msg := range messages {
		if msg.Role == store.RoleUser {
			_, _ = fmt.Fprintln(w, ui.Box("You", msg.Content, ui.ColorAccent))
			continue
		}
		body := strings.TrimSpace(ui.RenderMarkdown(msg.Content))
		_, _ = fmt.Fprintln(w, ui.Box("Assistant", body, ui.ColorSuccess))
	}
}
