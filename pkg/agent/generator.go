// Package agent turns an application description into files on disk.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minhyannv/ai-cli/pkg/llm"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/prompt"
	"github.com/minhyannv/ai-cli/pkg/safepath"
	"github.com/minhyannv/ai-cli/pkg/ui"
)

// ObjectGenerator is the part of the model gateway the generator needs.
type ObjectGenerator interface {
	GenerateObject(ctx context.Context, messages []llm.Message, schema llm.Schema, out any) error
}

// Result summarizes a written application.
type Result struct {
	FolderName string
	AppDir     string
	Files      []string
	Commands   []string
	Success    bool
}

// Summary is the assistant message saved after a successful generation.
func (r *Result) Summary() string {
	return fmt.Sprintf("Generated application: %s\nFiles created: %d\nLocation: %s\nSetup Commands: %s",
		r.FolderName, len(r.Files), r.AppDir, strings.Join(r.Commands, "\n"))
}

// Generator plans an application with the model and writes it under a directory.
type Generator struct {
	model   ObjectGenerator
	out     io.Writer
	logger  loggerpkg.Logger
	verbose bool
}

// NewGenerator creates a Generator that reports progress to out.
func NewGenerator(model ObjectGenerator, out io.Writer, opts ...Option) *Generator {
	deps := applyOptions(opts)
	if out == nil {
		out = io.Discard
	}
	return &Generator{model: model, out: out, logger: deps.logger, verbose: deps.verbose}
}

// plannedFile is a generated file with its resolved destination.
type plannedFile struct {
	rel     string
	abs     string
	content string
}

// Generate asks the model for an application matching description and writes
// it to cwd/folderName. Nothing is written unless every path is valid.
func (g *Generator) Generate(ctx context.Context, description, cwd string) (*Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &ValidationError{Field: "description", Reason: "cannot be empty"}
	}

	_, _ = fmt.Fprintln(g.out, ui.Title("Agent Mode"))
	_, _ = fmt.Fprintln(g.out, ui.Dim("Request: "+description))

	app, err := g.plan(ctx, description)
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Fprintln(g.out, ui.Success("Generated: "+app.FolderName))
	_, _ = fmt.Fprintln(g.out, ui.Dim("Description: "+app.Description))

	appDir, files, err := resolve(cwd, app)
	if err != nil {
		return nil, err
	}
	if err := checkDestinations(appDir, files); err != nil {
		return nil, err
	}
	folder := filepath.Base(appDir)

	_, _ = fmt.Fprint(g.out, RenderTree(folder, app.FilePaths()))
	_, _ = fmt.Fprintln(g.out, ui.Title("Creating files..."))
	if err := g.materialize(appDir, files); err != nil {
		return nil, err
	}

	result := &Result{
		FolderName: folder,
		AppDir:     appDir,
		Files:      app.FilePaths(),
		Commands:   app.SetupCommands,
		Success:    true,
	}
	g.printNextSteps(result)
	return result, nil
}

func (g *Generator) plan(ctx context.Context, description string) (*Application, error) {
	spinner := ui.NewSpinner(g.out)
	spinner.Start("Generating your application...")
	defer spinner.Stop("")

	loggerpkg.Debug(g.verbose, g.logger, "requesting application plan", map[string]any{"description_chars": len(description)})
	var app Application
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt.ApplicationPrompt(description)}}
	if err := g.model.GenerateObject(ctx, messages, ApplicationSchema(), &app); err != nil {
		return nil, fmt.Errorf("generate application: %w", err)
	}
	loggerpkg.Debug(g.verbose, g.logger, "application plan received", map[string]any{
		"folder": app.FolderName,
		"files":  len(app.Files),
	})
	if len(app.Files) == 0 {
		return nil, ErrNoFiles
	}
	return &app, nil
}

// resolve validates the folder name and every file path before any write.
// Paths must be distinct and no file may double as another file's directory.
func resolve(cwd string, app *Application) (string, []plannedFile, error) {
	folder, err := SanitizeFolderName(app.FolderName)
	if err != nil {
		return "", nil, err
	}
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return "", nil, fmt.Errorf("resolve working directory: %w", err)
	}
	appDir := filepath.Join(absCwd, folder)

	files := make([]plannedFile, 0, len(app.Files))
	seen := make(map[string]string, len(app.Files))
	dirs := map[string]string{}
	for _, f := range app.Files {
		abs, err := safepath.Join(appDir, f.Path)
		if err != nil {
			return "", nil, &ValidationError{Field: "file path", Value: f.Path, Reason: err.Error()}
		}
		if prev, ok := seen[abs]; ok {
			return "", nil, &ValidationError{Field: "file path", Value: f.Path, Reason: fmt.Sprintf("duplicates %q", prev)}
		}
		seen[abs] = f.Path
		for dir := filepath.Dir(abs); dir != appDir; dir = filepath.Dir(dir) {
			if _, ok := dirs[dir]; !ok {
				dirs[dir] = f.Path
			}
		}
		files = append(files, plannedFile{rel: f.Path, abs: abs, content: f.Content})
	}
	for _, f := range files {
		if child, ok := dirs[f.abs]; ok {
			return "", nil, &ValidationError{Field: "file path", Value: f.rel, Reason: fmt.Sprintf("is also the directory of %q", child)}
		}
	}
	return appDir, files, nil
}

// checkDestinations inspects what already exists on disk along every planned
// path. Any symlink below cwd is rejected, as is an existing node of the
// wrong kind.
func checkDestinations(appDir string, files []plannedFile) error {
	if err := checkNode(appDir, true, filepath.Base(appDir)); err != nil {
		return err
	}
	for _, f := range files {
		rel, err := filepath.Rel(appDir, f.abs)
		if err != nil {
			return &ValidationError{Field: "file path", Value: f.rel, Reason: err.Error()}
		}
		parts := strings.Split(rel, string(filepath.Separator))
		current := appDir
		for i, part := range parts {
			current = filepath.Join(current, part)
			if err := checkNode(current, i < len(parts)-1, f.rel); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkNode validates one existing path component. Missing components are fine.
func checkNode(path string, wantDir bool, value string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return &ValidationError{Field: "file path", Value: value, Reason: "passes through a symlink inside the application folder"}
	case wantDir && !info.IsDir():
		return &ValidationError{Field: "file path", Value: value, Reason: "an existing file is in the way of a directory"}
	case !wantDir && info.IsDir():
		return &ValidationError{Field: "file path", Value: value, Reason: "an existing directory is in the way of the file"}
	}
	return nil
}

// materialize writes files after checkDestinations has cleared every path.
func (g *Generator) materialize(appDir string, files []plannedFile) error {
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", appDir, err)
	}
	_, _ = fmt.Fprintln(g.out, ui.Title("Created directory: "+filepath.Base(appDir)+"/"))

	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.abs), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", f.rel, err)
		}
		if err := writeFileNoFollow(f.abs, []byte(f.content)); err != nil {
			return fmt.Errorf("write %s: %w", f.rel, err)
		}
		loggerpkg.Debug(g.verbose, g.logger, "file written", map[string]any{"path": f.abs, "bytes": len(f.content)})
		_, _ = fmt.Fprintln(g.out, ui.Success("Done: "+f.rel))
	}
	return nil
}

// writeFileNoFollow refuses to write through a symlink planted after the check.
func writeFileNoFollow(path string, data []byte) error {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return &ValidationError{Field: "file path", Value: path, Reason: "is a symlink"}
	}
	return os.WriteFile(path, data, 0o644)
}

func (g *Generator) printNextSteps(r *Result) {
	_, _ = fmt.Fprintln(g.out)
	_, _ = fmt.Fprintln(g.out, ui.Success(ui.Bold("Application created successfully")))
	_, _ = fmt.Fprintln(g.out, ui.Title("Location: ")+ui.Bold(r.AppDir))
	if len(r.Commands) == 0 {
		return
	}
	_, _ = fmt.Fprintln(g.out)
	_, _ = fmt.Fprintln(g.out, ui.Title("Next Steps:"))
	_, _ = fmt.Fprintln(g.out, "```bash")
	for _, cmd := range r.Commands {
		_, _ = fmt.Fprintln(g.out, cmd)
	}
	_, _ = fmt.Fprintln(g.out, "```")
}
