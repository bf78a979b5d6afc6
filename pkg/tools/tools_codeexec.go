package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

const (
	defaultCodeTimeout = 30 * time.Second
	maxCodeTimeout     = 120 * time.Second
)

// passthroughEnv lists the variables a snippet inherits. Keys ending in "_"
// match by prefix.
var passthroughEnv = []string{"PATH", "HOME", "USER", "LOGNAME", "TMPDIR", "TMP", "TEMP", "LANG", "LC_", "TERM", "SYSTEMROOT"}

type codeExecutionTool struct {
	ctx Context
}

// executionResult is the data half of a code_execution response.
type executionResult struct {
	ExitCode   int    `json:"exit_code"`
	Output     string `json:"output,omitempty"`
	Errors     string `json:"errors,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func (t *codeExecutionTool) name() string {
	return "code_execution"
}

func (t *codeExecutionTool) definition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        "code_execution",
			Description: openai.String("Run a self-contained Python 3 program in a scratch directory and return its output"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{
						"type":        "string",
						"description": "Complete Python source. Print the values you need.",
					},
					"timeout_seconds": map[string]any{
						"type":        "integer",
						"description": "Timeout in seconds, at most 120.",
					},
				},
				"required": []string{"code"},
			},
		},
	}
}

func (t *codeExecutionTool) execute(argText string) (string, error) {
	var args struct {
		Code           string `json:"code"`
		TimeoutSeconds int64  `json:"timeout_seconds"`
	}
	if err := json.Unmarshal([]byte(argText), &args); err != nil {
		return marshalToolResponse("code_execution", nil, fmt.Errorf("invalid arguments: %w", err))
	}
	if strings.TrimSpace(args.Code) == "" {
		return marshalToolResponse("code_execution", nil, errors.New("code is required"))
	}

	python, err := resolvePython()
	if err != nil {
		return marshalToolResponse("code_execution", nil, err)
	}
	timeout := time.Duration(args.TimeoutSeconds) * time.Second
	if timeout <= 0 || timeout > maxCodeTimeout {
		timeout = defaultCodeTimeout
	}

	result, err := t.runSnippet(python, args.Code, timeout)
	if err != nil {
		return marshalToolResponse("code_execution", nil, err)
	}
	t.ctx.debugf("[verbose] code_execution: exit_code=%d timed_out=%v duration=%dms", result.ExitCode, result.TimedOut, result.DurationMs)
	return marshalToolResponse("code_execution", result, nil)
}

// runSnippet writes code into a fresh scratch dir and runs it there. A
// non-zero exit is reported in the result, not as an error.
func (t *codeExecutionTool) runSnippet(python, code string, timeout time.Duration) (executionResult, error) {
	dir, err := os.MkdirTemp("", "ai-cli-code-*")
	if err != nil {
		return executionResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	script := filepath.Join(dir, "main.py")
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return executionResult{}, fmt.Errorf("write script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(t.ctx.context(), timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, python, script)
	cmd.Dir = dir
	cmd.Env = append(snippetEnv(os.Environ()), "PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := executionResult{
		Output:     stdout.String(),
		Errors:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if runErr == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		result.TimedOut = true
		result.Errors = strings.TrimSpace(result.Errors + "\ntimed out after " + timeout.String())
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return executionResult{}, fmt.Errorf("run python: %w", runErr)
}

// snippetEnv keeps only the variables named in passthroughEnv.
func snippetEnv(environ []string) []string {
	out := make([]string, 0, len(passthroughEnv))
	for _, kv := range environ {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, allowed := range passthroughEnv {
			if key == allowed || (strings.HasSuffix(allowed, "_") && strings.HasPrefix(key, allowed)) {
				out = append(out, kv)
				break
			}
		}
	}
	return out
}

// resolvePython locates a python interpreter.
func resolvePython() (string, error) {
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("python executable not found")
}
