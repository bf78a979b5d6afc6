package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minhyannv/ai-cli/pkg/llm"
)

// ErrNoFiles is returned when the model plans an application without files.
var ErrNoFiles = errors.New("no files generated")

// ValidationError reports a generated application that cannot be written safely.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// File is one generated file, path relative to the application folder.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Dependency is a package the application needs.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Application is the structured project the model returns.
type Application struct {
	FolderName    string       `json:"folderName"`
	Description   string       `json:"description"`
	Files         []File       `json:"files"`
	SetupCommands []string     `json:"setupCommands"`
	Dependencies  []Dependency `json:"dependencies,omitempty"`
}

// FilePaths lists the generated paths in model order.
func (a *Application) FilePaths() []string {
	paths := make([]string, 0, len(a.Files))
	for _, f := range a.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// ApplicationSchema is the JSON schema requested from the model.
func ApplicationSchema() llm.Schema {
	return llm.Schema{
		Name:        "application",
		Description: "A complete application as a set of files",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"folderName": map[string]any{
					"type":        "string",
					"description": "Kebab-case folder name for the application",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Brief description of what was created",
				},
				"files": map[string]any{
					"type":        "array",
					"description": "All files needed for the application",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"path":    map[string]any{"type": "string", "description": "Relative file path"},
							"content": map[string]any{"type": "string", "description": "Complete file content"},
						},
						"required":             []string{"path", "content"},
						"additionalProperties": false,
					},
				},
				"setupCommands": map[string]any{
					"type":        "array",
					"description": "Bash commands to set up and run",
					"items":       map[string]any{"type": "string"},
				},
				"dependencies": map[string]any{
					"type":        "array",
					"description": "Npm dependencies with versions",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":    map[string]any{"type": "string", "description": "Name of the package"},
							"version": map[string]any{"type": "string", "description": "Version of the package"},
						},
						"required":             []string{"name", "version"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"folderName", "description", "files", "setupCommands"},
			"additionalProperties": false,
		},
	}
}

// SanitizeFolderName reduces name to a single kebab-case path segment.
func SanitizeFolderName(name string) (string, error) {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	folder := strings.TrimRight(sb.String(), "-")
	if folder == "" {
		return "", &ValidationError{Field: "folderName", Value: name, Reason: "must contain letters or digits"}
	}
	return folder, nil
}
