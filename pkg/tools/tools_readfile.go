package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minhyannv/ai-cli/pkg/safepath"
	"github.com/openai/openai-go"
)

type readFileTool struct {
	ctx Context
}

type readFileResult struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated"`
	Content   string `json:"content"`
}

func (t *readFileTool) name() string {
	return "read_file"
}

func (t *readFileTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        "read_file",
			Description: openai.String("Read a text file from the user's working directory"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path of the file, relative to the working directory.",
					},
					"max_bytes": map[string]any{
						"type":        "integer",
						"description": "Maximum number of bytes to return.",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

func (t *readFileTool) execute(argText string) (string, error) {
	var args struct {
		Path     string `json:"path"`
		MaxBytes int64  `json:"max_bytes"`
	}
	if err := json.Unmarshal([]byte(argText), &args); err != nil {
		return marshalToolResponse("read_file", nil, fmt.Errorf("invalid arguments: %w", err))
	}
	args.Path = strings.TrimSpace(args.Path)
	if args.Path == "" {
		return marshalToolResponse("read_file", nil, errors.New("path is required"))
	}

	path, err := safepath.Validate(args.Path, t.ctx.AllowedDirs)
	if err != nil {
		t.ctx.debugf("[verbose] read_file rejected %q: %v", args.Path, err)
		return marshalToolResponse("read_file", nil, err)
	}
	if err := safepath.FileExists(path); err != nil {
		return marshalToolResponse("read_file", nil, err)
	}

	limit := args.MaxBytes
	if limit <= 0 || limit > t.ctx.MaxReadBytes {
		limit = t.ctx.MaxReadBytes
	}
	result, err := readLimited(path, limit)
	if err != nil {
		return marshalToolResponse("read_file", nil, err)
	}
	result.Path = t.displayPath(path)
	t.ctx.debugf("[verbose] read_file %s: size=%d truncated=%v", result.Path, result.Size, result.Truncated)
	return marshalToolResponse("read_file", result, nil)
}

// readLimited reads at most limit bytes without loading the rest of the file.
func readLimited(path string, limit int64) (readFileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return readFileResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return readFileResult{}, fmt.Errorf("stat file: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return readFileResult{}, fmt.Errorf("read file: %w", err)
	}
	return readFileResult{
		Size:      info.Size(),
		Truncated: info.Size() > int64(len(data)),
		Content:   string(data),
	}, nil
}

// displayPath reports path relative to the first allowed directory containing it.
func (t *readFileTool) displayPath(path string) string {
	for _, dir := range t.ctx.AllowedDirs {
		if !safepath.Within(dir, path) {
			continue
		}
		if rel, err := filepath.Rel(dir, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return path
}
