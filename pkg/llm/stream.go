package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// ToolExecutor exposes callable tools to the model.
type ToolExecutor interface {
	Definitions() []openai.ChatCompletionToolParam
	Execute(call openai.ChatCompletionMessageToolCall) (string, error)
}

// StreamOptions controls one Stream call.
type StreamOptions struct {
	// Tools enables function calling when it has at least one definition.
	Tools ToolExecutor
	// MaxTurns bounds model/tool round trips. Defaults to the gateway setting.
	MaxTurns int
	// OnToolCall is notified before each tool runs.
	OnToolCall func(name, arguments string)
}

// Stream sends messages and forwards text chunks to onChunk in arrival order.
func (g *Gateway) Stream(ctx context.Context, messages []Message, onChunk func(string), opts StreamOptions) (Result, error) {
	params, err := toOpenAIMessages(messages)
	if err != nil {
		return Result{}, &Error{Op: "stream", Err: err}
	}

	var defs []openai.ChatCompletionToolParam
	if opts.Tools != nil {
		defs = opts.Tools.Definitions()
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = g.maxTurns
	}
	if len(defs) == 0 {
		maxTurns = 1
	}

	var (
		content strings.Builder
		result  Result
	)
	current := params
	for turn := 0; turn < maxTurns; turn++ {
		g.debug("stream turn", map[string]any{"turn": turn + 1, "max_turns": maxTurns, "tools": len(defs)})
		message, finish, usage, err := g.streamOnce(ctx, g.newChatParams(current, defs), func(chunk string) {
			content.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		})
		if err != nil {
			return Result{}, &Error{Op: "stream", Err: err}
		}
		result.FinishReason = finish
		result.Usage.PromptTokens += usage.PromptTokens
		result.Usage.CompletionTokens += usage.CompletionTokens
		result.Usage.TotalTokens += usage.TotalTokens

		if len(message.ToolCalls) == 0 {
			result.Content = content.String()
			return result, nil
		}

		current = append(current, message.ToParam())
		g.debug("assistant requested tool calls", map[string]any{"count": len(message.ToolCalls)})
		for _, call := range message.ToolCalls {
			if opts.OnToolCall != nil {
				opts.OnToolCall(call.Function.Name, call.Function.Arguments)
			}
			output, err := opts.Tools.Execute(call)
			if err != nil {
				output = fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error())
			}
			current = append(current, openai.ToolMessage(output, call.ID))
		}
	}
	return Result{}, &Error{Op: "stream", Err: ErrMaxTurns}
}

func (g *Gateway) newChatParams(messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params
}

// streamOnce performs one streaming request and accumulates the assistant message.
func (g *Gateway) streamOnce(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	onText func(string),
) (openai.ChatCompletionMessage, string, Usage, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		if !acc.AddChunk(chunk) {
			return openai.ChatCompletionMessage{}, "", Usage{}, errors.New("failed to accumulate stream")
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				onText(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return openai.ChatCompletionMessage{}, "", Usage{}, err
	}
	if len(acc.Choices) == 0 {
		return openai.ChatCompletionMessage{}, "", Usage{}, errors.New("empty streamed completion choices")
	}
	usage := Usage{
		PromptTokens:     acc.Usage.PromptTokens,
		CompletionTokens: acc.Usage.CompletionTokens,
		TotalTokens:      acc.Usage.TotalTokens,
	}
	return acc.Choices[0].Message, acc.Choices[0].FinishReason, usage, nil
}

// Complete returns the full reply text without tool calling.
func (g *Gateway) Complete(ctx context.Context, messages []Message) (string, error) {
	result, err := g.Stream(ctx, messages, nil, StreamOptions{})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}
