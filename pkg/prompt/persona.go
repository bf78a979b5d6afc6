package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is an optional system prompt addition loaded from a markdown file.
type Persona struct {
	Name        string
	Description string
	// Modes limits the persona to some modes. Empty means every mode.
	Modes []string
	Body  string
	Path  string
}

// AppliesTo reports whether the persona may be used in mode.
func (p *Persona) AppliesTo(mode string) bool {
	if len(p.Modes) == 0 {
		return true
	}
	for _, m := range p.Modes {
		if strings.EqualFold(m, mode) {
			return true
		}
	}
	return false
}

// personaFrontMatter mirrors the YAML front matter in a persona file.
type personaFrontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Modes       []string `yaml:"modes"`
}

// LoadPersonas parses every *.md file under dir. A missing dir yields no personas.
func LoadPersonas(dir string) ([]*Persona, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var personas []*Persona
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		persona, err := parsePersonaFile(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		personas = append(personas, persona)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(personas, func(i, j int) bool {
		left := strings.ToLower(personas[i].Name)
		right := strings.ToLower(personas[j].Name)
		if left == right {
			return personas[i].Path < personas[j].Path
		}
		return left < right
	})
	return personas, nil
}

// FindPersona returns the persona named name, case-insensitively.
func FindPersona(personas []*Persona, name string) (*Persona, bool) {
	for _, p := range personas {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

func parsePersonaFile(path string) (*Persona, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fm, body, err := parseFrontMatter(content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(fm.Name) == "" {
		return nil, fmt.Errorf("missing front matter name")
	}

	return &Persona{
		Name:        strings.TrimSpace(fm.Name),
		Description: strings.TrimSpace(fm.Description),
		Modes:       fm.Modes,
		Body:        strings.TrimSpace(body),
		Path:        path,
	}, nil
}

// parseFrontMatter splits YAML front matter from the markdown body.
func parseFrontMatter(content []byte) (personaFrontMatter, string, error) {
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != "---" {
		return personaFrontMatter{}, "", fmt.Errorf("missing YAML front matter")
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return personaFrontMatter{}, "", fmt.Errorf("unterminated YAML front matter")
	}

	var fm personaFrontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
		return personaFrontMatter{}, "", err
	}
	return fm, strings.Join(lines[end+1:], "\n"), nil
}
