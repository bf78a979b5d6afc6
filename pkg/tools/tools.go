package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/openai/openai-go"
)

const (
	DefaultMaxReadBytes int64 = 1024 * 1024
	// DefaultMaxPageChars caps the text extracted from one fetched page.
	DefaultMaxPageChars = 8000
)

type tool interface {
	definition() openai.ChatCompletionToolParam
	execute(argText string) (string, error)
	name() string
}

// Info describes a tool for selection menus.
type Info struct {
	ID          string
	Name        string
	Description string
	Enabled     bool
}

// Context carries shared settings for every tool.
type Context struct {
	MaxReadBytes int64
	MaxPageChars int
	Verbose      bool
	AllowedDirs  []string
	Ctx          context.Context
	Logger       loggerpkg.Logger
	HTTPClient   *http.Client
	// SearchURL is the HTML search endpoint used by web_search.
	SearchURL string
}

func (c Context) debugf(format string, args ...any) {
	loggerpkg.Debugf(c.Verbose, c.Logger, format, args...)
}

func (c Context) context() context.Context {
	if c.Ctx != nil {
		return c.Ctx
	}
	return context.Background()
}

func (c Context) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 20 * time.Second}
}

type entry struct {
	impl        tool
	title       string
	description string
}

// Registry holds the tools available in tool mode and which ones are enabled
// for the current session.
type Registry struct {
	registry map[string]entry
	order    []string
	enabled  map[string]bool
	ctx      Context
}

type toolResponse struct {
	OK   bool        `json:"ok"`
	Tool string      `json:"tool,omitempty"`
	Data interface{} `json:"data,omitempty"`
	Err  string      `json:"error,omitempty"`
}

// New builds a registry with the built-in tools, all disabled.
func New(ctx Context) *Registry {
	if ctx.Logger == nil {
		ctx.Logger = loggerpkg.NopLogger{}
	}
	if ctx.MaxReadBytes <= 0 {
		ctx.MaxReadBytes = DefaultMaxReadBytes
	}
	if ctx.MaxPageChars <= 0 {
		ctx.MaxPageChars = DefaultMaxPageChars
	}
	if ctx.SearchURL == "" {
		ctx.SearchURL = DefaultSearchURL
	}
	r := &Registry{
		registry: make(map[string]entry),
		enabled:  make(map[string]bool),
		ctx:      ctx,
	}

	r.register(&webSearchTool{ctx: ctx}, "Web Search",
		"Access latest information by searching the web.")
	r.register(&codeExecutionTool{ctx: ctx}, "Code Execution",
		"Generate and execute Python code to perform calculations, solve problems, or provide accurate information.")
	r.register(&urlContextTool{ctx: ctx}, "URL Context",
		"Provide specific URLs that you want the model to analyze directly from the prompt. Supports up to 20 URLs per request.")
	r.register(&readFileTool{ctx: ctx}, "Read File",
		"Let the model read files from the current working directory.")
	return r
}

func (r *Registry) register(impl tool, title, description string) {
	r.registry[impl.name()] = entry{impl: impl, title: title, description: description}
	r.order = append(r.order, impl.name())
	r.ctx.debugf("[verbose] registered tool: %s", impl.name())
}

// Available lists every registered tool with its enable state.
func (r *Registry) Available() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		e := r.registry[id]
		out = append(out, Info{ID: id, Name: e.title, Description: e.description, Enabled: r.enabled[id]})
	}
	return out
}

// Toggle flips a tool and returns its new state.
func (r *Registry) Toggle(id string) (bool, error) {
	if _, ok := r.registry[id]; !ok {
		return false, fmt.Errorf("unknown tool: %s", id)
	}
	r.enabled[id] = !r.enabled[id]
	r.ctx.debugf("[verbose] tool %s toggled to %v", id, r.enabled[id])
	return r.enabled[id], nil
}

// Enable enables exactly ids and disables the rest.
func (r *Registry) Enable(ids []string) error {
	for _, id := range ids {
		if _, ok := r.registry[id]; !ok {
			return fmt.Errorf("unknown tool: %s", id)
		}
	}
	for _, id := range r.order {
		r.enabled[id] = slices.Contains(ids, id)
	}
	return nil
}

// Reset disables every tool.
func (r *Registry) Reset() {
	clear(r.enabled)
}

// EnabledIDs returns enabled tool IDs in registration order.
func (r *Registry) EnabledIDs() []string {
	var ids []string
	for _, id := range r.order {
		if r.enabled[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// EnabledNames returns display names of enabled tools.
func (r *Registry) EnabledNames() []string {
	var names []string
	for _, id := range r.EnabledIDs() {
		names = append(names, r.registry[id].title)
	}
	return names
}

// Definitions returns function definitions for enabled tools only.
func (r *Registry) Definitions() []openai.ChatCompletionToolParam {
	var params []openai.ChatCompletionToolParam
	for _, id := range r.EnabledIDs() {
		params = append(params, r.registry[id].impl.definition())
	}
	return params
}

// Execute runs one tool call and returns a JSON tool response.
func (r *Registry) Execute(call openai.ChatCompletionMessageToolCall) (string, error) {
	if r.ctx.Ctx != nil {
		select {
		case <-r.ctx.Ctx.Done():
			return marshalToolResponse(call.Function.Name, nil, r.ctx.Ctx.Err())
		default:
		}
	}

	e, ok := r.registry[call.Function.Name]
	if !ok {
		return marshalToolResponse(call.Function.Name, nil, fmt.Errorf("unknown tool: %s", call.Function.Name))
	}
	if !r.enabled[call.Function.Name] {
		return marshalToolResponse(call.Function.Name, nil, fmt.Errorf("tool is disabled: %s", call.Function.Name))
	}
	return e.impl.execute(call.Function.Arguments)
}

func marshalToolResponse(toolName string, data interface{}, err error) (string, error) {
	resp := toolResponse{
		OK:   err == nil,
		Tool: toolName,
		Data: data,
	}
	if err != nil {
		resp.Err = err.Error()
	}
	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(payload), nil
}
