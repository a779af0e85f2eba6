// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// root.go - The docchat root command and shared application state.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/exchange"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/stream"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// App holds what every command needs once flags and config are resolved.
type App struct {
	Config  *config.Config
	Log     *logging.Logger
	Cookies *backend.CookieStore
	Client  *backend.Client

	// Persistent flags
	configPath string
	baseURL    string
	logLevel   string
	logConsole bool
}

// setup loads .env files and config, opens the log and builds the client.
func (a *App) setup(cmd *cobra.Command) error {
	stderr := cmd.ErrOrStderr()

	if _, err := config.LoadDotEnv(config.DotEnvFiles()...); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", WarningStyle.Render("Warning:"), err)
	}

	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			fmt.Fprintf(stderr, "%s %v (using defaults)\n", WarningStyle.Render("Warning:"), err)
		}
	}

	if a.baseURL != "" {
		cfg.Backend.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Config = cfg
	config.SetGlobal(cfg)

	a.Log = a.openLog(cmd)

	cookiePath, err := cfg.CookiePath()
	if err != nil {
		return errors.Wrap(err, "failed to resolve cookie file")
	}
	cookies, err := backend.NewCookieStore(cookiePath, a.Log.Logger)
	if err != nil {
		a.Log.Warn().Err(err).Str("path", cookiePath).Msg("ignoring unreadable cookie file")
	}
	if cookies == nil {
		cookies = backend.NewMemoryCookieStore()
	}
	a.Cookies = cookies

	a.Client = backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:              cfg.Backend.BaseURL,
		ChatPath:             cfg.Backend.ChatPath,
		Timeout:              cfg.Backend.Timeout(),
		StreamConnectTimeout: cfg.Backend.StreamConnectTimeout(),
		Jar:                  cookies,
		Logger:               a.Log.Logger,
	})

	a.Log.Debug().
		Str("command", cmd.CommandPath()).
		Str("base_url", cfg.Backend.BaseURL).
		Msg("docchat starting")
	return nil
}

// openLog opens the rotating log file, falling back to a discarding logger.
func (a *App) openLog(cmd *cobra.Command) *logging.Logger {
	dir, err := a.Config.LogDir()
	if err != nil {
		return logging.Nop()
	}
	opts := logging.Options{
		Level:      a.Config.Log.ZerologLevel(),
		Dir:        dir,
		MaxSizeMB:  a.Config.Log.MaxSizeMB,
		MaxBackups: a.Config.Log.MaxBackups,
		MaxAgeDays: a.Config.Log.MaxAgeDays,
	}
	if a.logConsole {
		opts.Console = cmd.ErrOrStderr()
	}
	l, err := logging.New(opts)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v (logging disabled)\n", WarningStyle.Render("Warning:"), err)
		return logging.Nop()
	}
	return l
}

// NewCoordinator builds an exchange coordinator streaming through the client.
func (a *App) NewCoordinator(ctx context.Context) *exchange.Coordinator {
	ctrl := stream.NewController(a.Client, stream.Config{
		ReadBufferSize: a.Config.Backend.ReadBufferSize,
	}, a.Log.Logger)
	return exchange.NewCoordinator(ctx, ctrl, a.Log.Logger)
}

// Close releases the log file.
func (a *App) Close() {
	if a.Log != nil {
		_ = a.Log.Close()
	}
}

func (a *App) baseURLForErrors() string {
	if a.Config != nil {
		return a.Config.Backend.BaseURL
	}
	return config.Default().Backend.BaseURL
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with your uploaded documents",
		Long: `docchat is a terminal client for a document-grounded chat service.

Answers stream in as they are generated, and every answer lists the
documents it drew on. Run 'docchat' with no arguments for the full-screen
chat, or 'docchat ask' for a single answer on stdout.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, app, &chatOptions{})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "config file (default ~/.docchat/config.toml)")
	flags.StringVar(&app.baseURL, "base-url", "", "backend base URL (overrides config and DOCCHAT_BASE_URL)")
	flags.StringVar(&app.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&app.logConsole, "log-console", false, "also write log records to stderr")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Message: err.Error()}
	})

	root.AddCommand(
		newChatCommand(app),
		newAskCommand(app),
		newLoginCommand(app),
		newSignupCommand(app),
		newLogoutCommand(app),
		newWhoamiCommand(app),
		newDocsCommand(app),
		newConfigCommand(app),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{}
	root := NewRootCommand(app)
	err := root.ExecuteContext(ctx)
	if err != nil && app.Log != nil {
		app.Log.Error().Err(err).Msg("command failed")
	}
	app.Close()

	if err != nil {
		if !errors.Is(err, ErrInterrupted) {
			fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), FriendlyError(err, app.baseURLForErrors()))
		}
		return ExitCode(err)
	}
	return ExitSuccess
}

// exactArgs is cobra.ExactArgs reporting a UsageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s takes %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs reporting a UsageError.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageErrorf("%s needs at least %d argument(s)", cmd.CommandPath(), n)
		}
		return nil
	}
}
