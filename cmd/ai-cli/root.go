package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	configpkg "github.com/minhyannv/ai-cli/pkg/config"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newRootCmd builds the command tree around app.
func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "ai-cli",
		Short: "Chat with an AI model from your terminal",
		Long: `ai-cli signs in through the OAuth2 device flow and opens chat, tool
or agent sessions against an OpenAI-compatible model endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadConfig(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Config file (default ~/"+configpkg.DirName+"/config.yaml)")
	flags.Bool("verbose", false, "Verbose debug logging to stderr")
	flags.String("server-url", configpkg.DefaultServerURL, "Authorization server URL")

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newWakeupCmd(app),
		newConversationsCmd(app),
	)
	return root
}

// loadConfig layers defaults, the YAML file, .env, the environment and flags.
func (a *App) loadConfig(flags *pflag.FlagSet) error {
	_ = godotenv.Load()

	cfg := configpkg.DefaultConfig()
	path := a.configPath
	if path == "" {
		path = configpkg.FilePath()
	}
	if err := configpkg.LoadFile(path, &cfg); err != nil {
		return err
	}
	configpkg.ApplyEnv(&cfg)

	if flags.Changed("server-url") {
		cfg.ServerURL, _ = flags.GetString("server-url")
	}
	if flags.Changed("client-id") {
		cfg.ClientID, _ = flags.GetString("client-id")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}

	cfg = configpkg.Normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.logger = loggerpkg.New(a.errOut, cfg.Verbose)
	loggerpkg.Debug(cfg.Verbose, a.logger, "config loaded", map[string]any{
		"config_file": path,
		"server_url":  cfg.ServerURL,
		"token_file":  cfg.TokenFile,
		"db_path":     cfg.DBPath,
		"model":       cfg.Model,
		"base_url":    cfg.BaseURL,
	})
	return nil
}

// stringSliceFlag supports repeatable --tool flags.
type stringSliceFlag []string

func (f *stringSliceFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *stringSliceFlag) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty tool id")
	}
	if strings.Contains(value, ",") {
		return fmt.Errorf("comma-separated values are not supported for --tool; repeat the flag instead")
	}
	*f = append(*f, value)
	return nil
}

func (f *stringSliceFlag) Type() string {
	return "tool"
}

func (f stringSliceFlag) values() []string {
	out := make([]string, len(f))
	copy(out, f)
	return out
}
