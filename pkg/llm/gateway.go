package llm

import (
	"errors"
	"fmt"
	"strings"

	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Role is the role for a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the provider-agnostic chat message DTO.
type Message struct {
	Role    Role
	Content string
}

// Usage reports token accounting for one call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Result describes the final assistant reply of a streamed call.
type Result struct {
	Content      string
	FinishReason string
	Usage        Usage
}

var (
	// ErrMalformedOutput is returned when structured output does not decode.
	ErrMalformedOutput = errors.New("model returned malformed structured output")
	// ErrMaxTurns is returned when tool calls never converge on a final reply.
	ErrMaxTurns = errors.New("max turns reached before assistant produced a final response")
)

// Error is a failed call to the model endpoint.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("model %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config selects the endpoint and model.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxTurns int
	Verbose  bool
}

// Option configures optional runtime dependencies for Gateway.
type Option func(*gatewayDeps)

type gatewayDeps struct {
	logger      loggerpkg.Logger
	requestOpts []option.RequestOption
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(d *gatewayDeps) {
		d.logger = l
	}
}

// WithRequestOptions appends raw client options, e.g. a custom HTTP client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(d *gatewayDeps) {
		d.requestOpts = append(d.requestOpts, opts...)
	}
}

// Gateway wraps an OpenAI-compatible chat completion endpoint.
type Gateway struct {
	client   openai.Client
	model    string
	maxTurns int
	logger   loggerpkg.Logger
	verbose  bool
}

// New builds a Gateway. APIKey and Model are required.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	deps := gatewayDeps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("APIKey is not set")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("Model is not set")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, deps.requestOpts...)

	loggerpkg.Debug(cfg.Verbose, deps.logger, "model gateway init", map[string]any{
		"model":     cfg.Model,
		"base_url":  cfg.BaseURL,
		"max_turns": cfg.MaxTurns,
	})

	return &Gateway{
		client:   openai.NewClient(clientOpts...),
		model:    cfg.Model,
		maxTurns: cfg.MaxTurns,
		logger:   deps.logger,
		verbose:  cfg.Verbose,
	}, nil
}

// Model returns the configured model name.
func (g *Gateway) Model() string { return g.model }

func (g *Gateway) debug(msg string, obj any) {
	loggerpkg.Debug(g.verbose, g.logger, msg, obj)
}

func toOpenAIMessages(messages []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			return nil, fmt.Errorf("invalid message role at index %d: %q", i, msg.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("at least one message is required")
	}
	return out, nil
}
