package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Schema is a named JSON schema for structured generation.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// GenerateObject asks for a reply conforming to schema and decodes it into out.
func (g *Gateway) GenerateObject(ctx context.Context, messages []Message, schema Schema, out any) error {
	if strings.TrimSpace(schema.Name) == "" || schema.Definition == nil {
		return &Error{Op: "generate object", Err: errors.New("schema name and definition are required")}
	}
	params, err := toOpenAIMessages(messages)
	if err != nil {
		return &Error{Op: "generate object", Err: err}
	}

	jsonSchema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schema.Name,
		Schema: schema.Definition,
	}
	if schema.Description != "" {
		jsonSchema.Description = openai.String(schema.Description)
	}

	g.debug("generate object", map[string]any{"schema": schema.Name, "messages": len(params)})
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: params,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
		},
	})
	if err != nil {
		return &Error{Op: "generate object", Err: err}
	}
	if len(completion.Choices) == 0 {
		return &Error{Op: "generate object", Err: errors.New("empty completion choices")}
	}

	raw := stripCodeFence(completion.Choices[0].Message.Content)
	if raw == "" {
		return &Error{Op: "generate object", Err: ErrMalformedOutput}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &Error{Op: "generate object", Err: fmt.Errorf("%w: %v", ErrMalformedOutput, err)}
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
