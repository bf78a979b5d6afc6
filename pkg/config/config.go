package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-user directory holding the token, database and config file.
	DirName = ".better-auth"

	DefaultServerURL = "http://localhost:8000"
	DefaultScope     = "openid profile email"
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel     = "gemini-2.5-flash"
	DefaultMaxTurns  = 10
)

// Config holds all runtime configuration for the CLI.
type Config struct {
	ServerURL string `yaml:"server_url"`
	ClientID  string `yaml:"client_id"`
	Scope     string `yaml:"scope"`

	TokenFile  string `yaml:"token_file"`
	DBPath     string `yaml:"db_path"`
	PersonaDir string `yaml:"persona_dir"`

	APIKey   string   `yaml:"api_key"`
	BaseURL  string   `yaml:"base_url"`
	Model    string   `yaml:"model"`
	MaxTurns int      `yaml:"max_turns"`
	Tools    []string `yaml:"tools"`

	Verbose bool `yaml:"verbose"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, DirName)
}

// FilePath returns the default YAML config file location.
func FilePath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	dir := Dir()
	return Config{
		ServerURL:  DefaultServerURL,
		Scope:      DefaultScope,
		TokenFile:  filepath.Join(dir, "token.json"),
		DBPath:     filepath.Join(dir, "ai-cli.db"),
		PersonaDir: filepath.Join(dir, "personas"),
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		MaxTurns:   DefaultMaxTurns,
	}
}

// LoadFile overlays values from a YAML file onto cfg. A missing file is not an error.
func LoadFile(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	setString(&cfg.ServerURL, "AI_CLI_SERVER_URL")
	setString(&cfg.ClientID, "GITHUB_CLIENT_ID")
	setString(&cfg.ClientID, "AI_CLI_CLIENT_ID")
	setString(&cfg.TokenFile, "AI_CLI_TOKEN_FILE")
	setString(&cfg.DBPath, "AI_CLI_DB_PATH")
	setString(&cfg.APIKey, "OPENAI_API_KEY")
	setString(&cfg.APIKey, "GEMINI_API_KEY")
	setString(&cfg.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Model, "AI_MODEL")
	if v, ok := os.LookupEnv("AI_CLI_MAX_TURNS"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MaxTurns = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	defaults := DefaultConfig()
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Scope = strings.TrimSpace(cfg.Scope)
	cfg.TokenFile = strings.TrimSpace(cfg.TokenFile)
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.PersonaDir = strings.TrimSpace(cfg.PersonaDir)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)

	if cfg.ServerURL == "" {
		cfg.ServerURL = defaults.ServerURL
	}
	if cfg.Scope == "" {
		cfg.Scope = defaults.Scope
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = defaults.TokenFile
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaults.DBPath
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}

	tools := make([]string, 0, len(cfg.Tools))
	seen := map[string]struct{}{}
	for _, id := range cfg.Tools {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		tools = append(tools, id)
	}
	cfg.Tools = tools
	return cfg
}

// Validate checks the fields every command depends on.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server url %q is not an absolute URL", c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server url %q must use http or https", c.ServerURL)
	}
	if c.TokenFile == "" {
		return errors.New("token file path cannot be empty")
	}
	return nil
}

// ValidateModel checks the fields required to talk to the model gateway.
func (c Config) ValidateModel() error {
	if c.APIKey == "" {
		return errors.New("GEMINI_API_KEY (or OPENAI_API_KEY) is not set")
	}
	if c.Model == "" {
		return errors.New("AI_MODEL is not set")
	}
	return nil
}
