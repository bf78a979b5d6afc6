// Tests for application generation and the agent session.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minhyannv/ai-cli/pkg/chat"
	"github.com/minhyannv/ai-cli/pkg/llm"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/ui"
)

// fakeModel returns queued applications through a JSON round trip like the gateway.
type fakeModel struct {
	apps    []Application
	errs    []error
	prompts []string
}

func (f *fakeModel) GenerateObject(_ context.Context, messages []llm.Message, schema llm.Schema, out any) error {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if schema.Name != "application" {
		return errors.New("unexpected schema")
	}
	i := len(f.prompts) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	raw, err := json.Marshal(f.apps[i])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func TestGenerateWritesFilesExactly(t *testing.T) {
	cwd := t.TempDir()
	app := Application{
		FolderName:  "Todo App!",
		Description: "A todo app",
		Files: []File{
			{Path: "package.json", Content: "{\n  \"name\": \"todo\"\n}\n"},
			{Path: "src/index.js", Content: "console.log('hi')\r\n\tdone"},
			{Path: "src/lib/util.js", Content: ""},
		},
		SetupCommands: []string{"cd todo-app", "npm install"},
	}
	model := &fakeModel{apps: []Application{app}}
	var out bytes.Buffer

	result, err := NewGenerator(model, &out).Generate(context.Background(), "a todo app with tags", cwd)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.Success || result.FolderName != "todo-app" || result.AppDir != filepath.Join(cwd, "todo-app") {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Files) != 3 || strings.Join(result.Commands, ";") != "cd todo-app;npm install" {
		t.Fatalf("unexpected result files/commands %+v", result)
	}
	for _, f := range app.Files {
		got, err := os.ReadFile(filepath.Join(result.AppDir, filepath.FromSlash(f.Path)))
		if err != nil {
			t.Fatalf("read %s: %v", f.Path, err)
		}
		if string(got) != f.Content {
			t.Fatalf("content mismatch for %s: %q", f.Path, got)
		}
	}
	if !strings.Contains(model.prompts[0], "a todo app with tags") {
		t.Fatalf("description missing from prompt: %q", model.prompts[0])
	}
	if !strings.Contains(out.String(), "Application created successfully") || !strings.Contains(out.String(), "npm install") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestGenerateOverwritesExistingFiles(t *testing.T) {
	cwd := t.TempDir()
	target := filepath.Join(cwd, "app", "README.md")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	model := &fakeModel{apps: []Application{{FolderName: "app", Files: []File{{Path: "README.md", Content: "new"}}}}}
	if _, err := NewGenerator(model, nil).Generate(context.Background(), "overwrite readme", cwd); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "new" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestGenerateNoFiles(t *testing.T) {
	cwd := t.TempDir()
	model := &fakeModel{apps: []Application{{FolderName: "empty-app"}}}
	_, err := NewGenerator(model, nil).Generate(context.Background(), "nothing at all", cwd)
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cwd, "empty-app")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no directory to be created, stat err %v", statErr)
	}
}

func TestGenerateRejectsEscapingPaths(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "parent traversal", path: "../evil.txt"},
		{name: "nested traversal", path: "src/../../evil.txt"},
		{name: "absolute", path: "/tmp/evil.txt"},
		{name: "empty", path: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := t.TempDir()
			model := &fakeModel{apps: []Application{{
				FolderName: "safe",
				Files:      []File{{Path: "ok.txt", Content: "ok"}, {Path: tt.path, Content: "bad"}},
			}}}
			_, err := NewGenerator(model, nil).Generate(context.Background(), "escape attempt", cwd)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, statErr := os.Stat(filepath.Join(cwd, "safe")); !os.IsNotExist(statErr) {
				t.Fatalf("expected nothing written, stat err %v", statErr)
			}
		})
	}
}

func TestGenerateRejectsSymlinkEscape(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		outside string
	}{
		{name: "linked directory", file: "link/x.txt", outside: "x.txt"},
		{name: "nested under linked directory", file: "link/deep/x.txt", outside: "deep"},
		{name: "linked file", file: "notes.txt", outside: "secret.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := t.TempDir()
			outside := t.TempDir()
			secret := filepath.Join(outside, "secret.txt")
			if err := os.WriteFile(secret, []byte("original"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := os.MkdirAll(filepath.Join(cwd, "app"), 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
			if err := os.Symlink(outside, filepath.Join(cwd, "app", "link")); err != nil {
				t.Skipf("symlinks unavailable: %v", err)
			}
			if err := os.Symlink(secret, filepath.Join(cwd, "app", "notes.txt")); err != nil {
				t.Skipf("symlinks unavailable: %v", err)
			}

			model := &fakeModel{apps: []Application{{FolderName: "app", Files: []File{
				{Path: "ok.txt", Content: "ok"},
				{Path: tt.file, Content: "overwritten"},
			}}}}
			_, err := NewGenerator(model, nil).Generate(context.Background(), "symlink escape", cwd)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if got, _ := os.ReadFile(secret); string(got) != "original" {
				t.Fatalf("outside file changed to %q", got)
			}
			if tt.outside != "secret.txt" {
				if _, statErr := os.Stat(filepath.Join(outside, tt.outside)); !os.IsNotExist(statErr) {
					t.Fatalf("created %s outside the folder, stat err %v", tt.outside, statErr)
				}
			}
			if _, statErr := os.Stat(filepath.Join(cwd, "app", "ok.txt")); !os.IsNotExist(statErr) {
				t.Fatalf("expected nothing written, stat err %v", statErr)
			}
		})
	}
}

func TestGenerateRejectsConflictingPaths(t *testing.T) {
	tests := []struct {
		name     string
		files    []File
		existing string
	}{
		{name: "duplicate", files: []File{{Path: "a.txt"}, {Path: "./a.txt"}}},
		{name: "duplicate after cleaning", files: []File{{Path: "src/main.go"}, {Path: "src//main.go"}}},
		{name: "file is also a directory", files: []File{{Path: "a"}, {Path: "a/b.txt"}}},
		{name: "directory listed after its file", files: []File{{Path: "a/b/c.txt"}, {Path: "a/b"}}},
		{name: "existing file in the way", files: []File{{Path: "docs/readme.md"}}, existing: "docs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwd := t.TempDir()
			if tt.existing != "" {
				if err := os.MkdirAll(filepath.Join(cwd, "app"), 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
				if err := os.WriteFile(filepath.Join(cwd, "app", tt.existing), []byte("x"), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			model := &fakeModel{apps: []Application{{FolderName: "app", Files: tt.files}}}
			_, err := NewGenerator(model, nil).Generate(context.Background(), "conflicting paths", cwd)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if tt.existing == "" {
				if _, statErr := os.Stat(filepath.Join(cwd, "app")); !os.IsNotExist(statErr) {
					t.Fatalf("expected nothing written, stat err %v", statErr)
				}
			}
		})
	}
}

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "my-app", want: "my-app"},
		{in: "My Cool App", want: "my-cool-app"},
		{in: "../../etc", want: "etc"},
		{in: "  --weird__name--  ", want: "weird-name"},
		{in: "...", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFolderName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFolderName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFolderName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestRenderTree(t *testing.T) {
	got := RenderTree("todo-app", []string{"src/index.js", "package.json", "README.md", "public/index.html", "src/app.js"})
	want := "Project Structure:\n" +
		"todo-app\n" +
		" |__ package.json\n" +
		" |__ README.md\n" +
		"|-- public/\n" +
		"|  |__ index.html\n" +
		"|-- src/\n" +
		"|  |__ index.js\n" +
		"|  |__ app.js\n"
	if got != want {
		t.Fatalf("RenderTree mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestValidateDescription(t *testing.T) {
	if err := ValidateDescription("   "); err == nil {
		t.Fatal("expected empty description error")
	}
	if err := ValidateDescription("todo app"); err == nil {
		t.Fatal("expected short description error")
	}
	if err := ValidateDescription("a todo app!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type scriptedPrompter struct {
	inputs   []string
	confirms []bool
}

func (p *scriptedPrompter) Input(string) (string, error) {
	if len(p.inputs) == 0 {
		return "", ui.ErrCancelled
	}
	next := p.inputs[0]
	p.inputs = p.inputs[1:]
	return next, nil
}

func (p *scriptedPrompter) Confirm(string, bool) (bool, error) {
	if len(p.confirms) == 0 {
		return false, ui.ErrCancelled
	}
	next := p.confirms[0]
	p.confirms = p.confirms[1:]
	return next, nil
}

func TestSessionRetriesAndSavesMessages(t *testing.T) {
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer func() { _ = repo.Close() }()
	ctx := context.Background()
	if err := repo.UpsertUser(ctx, &store.User{ID: "u1", Name: "Ada"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	svc := chat.NewService(repo, nil)
	conv, err := svc.CreateConversation(ctx, "u1", store.ModeAgent, "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	cwd := t.TempDir()
	model := &fakeModel{
		apps: []Application{{}, {FolderName: "notes", Files: []File{{Path: "main.go", Content: "package main\n"}}}},
		errs: []error{&llm.Error{Op: "generate object", Err: llm.ErrMalformedOutput}},
	}
	prompter := &scriptedPrompter{
		inputs:   []string{"short", "a notes app in go", "a notes app in go"},
		confirms: []bool{true, false},
	}
	var out bytes.Buffer
	session := NewSession(svc, NewGenerator(model, &out), prompter, &out, cwd)

	if err := session.Run(ctx, conv); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs, _ := svc.Messages(ctx, conv.ID)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(msgs), msgs)
	}
	if !strings.HasPrefix(msgs[1].Content, "Error: ") {
		t.Fatalf("expected saved error, got %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[3].Content, "Generated application: notes") || !strings.Contains(msgs[3].Content, "Files created: 1") {
		t.Fatalf("unexpected summary %q", msgs[3].Content)
	}
	if conv.Title != "a notes app in go" {
		t.Fatalf("unexpected title %q", conv.Title)
	}
	if _, err := os.Stat(filepath.Join(cwd, "notes", "main.go")); err != nil {
		t.Fatalf("expected generated file: %v", err)
	}
	if !strings.Contains(out.String(), "at least 10 characters") {
		t.Fatalf("expected length validation message:\n%s", out.String())
	}
}
