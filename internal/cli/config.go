// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for docchat.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   path                Show configuration file path
//   init                Write a default config file
//   get <key>           Print one value
//   set <key> <value>   Set a value in the config file
//
// Examples:
//   docchat config set backend.base_url https://docs.example.com
//   docchat config set ui.reveal_interval_ms 8
//   docchat config set ui.theme light
//   docchat config show --json
//
// Keys use dot notation; run 'docchat config show' to list them all.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app, false)
		},
	}
	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigPathCommand(app),
		newConfigInitCommand(app),
		newConfigGetCommand(app),
		newConfigSetCommand(app),
	)
	return cmd
}

// configFilePath returns the file config edits should go to.
func (a *App) configFilePath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ActivePath()
}

// =============================================================================
// SHOW / PATH / GET
// =============================================================================

func newConfigShowCommand(app *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func showConfig(cmd *cobra.Command, app *App, jsonOut bool) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		return NewJSONResponse("config show", app.Config).Write(out)
	}

	path, _ := app.configFilePath()
	fmt.Fprintln(out, TitleStyle.Render("docchat configuration"))
	fmt.Fprintln(out, DimStyle.Render(path))
	fmt.Fprintln(out, separator(40))

	section := ""
	for _, key := range config.GetAllKeys() {
		if i := strings.Index(key, "."); i > 0 && key[:i] != section {
			section = key[:i]
			fmt.Fprintln(out)
			fmt.Fprintln(out, TitleStyle.Render("["+section+"]"))
		}
		value, err := app.Config.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s %v\n", DimStyle.Render(fmt.Sprintf("%-34s", key)), value)
	}
	return nil
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.configFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one configuration value",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := app.Config.Get(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

// =============================================================================
// INIT / SET
// =============================================================================

func newConfigInitCommand(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.configFilePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return usageErrorf("%s already exists (use --force to overwrite)", path)
			}
			if err := saveConfigFile(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigSetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a value in the config file",
		Long: `Set a value in the config file.

Only the file is changed; environment overrides still apply on top of it.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.configFilePath()
			if err != nil {
				return err
			}

			// Edit the file as written, without env overrides baked in.
			cfg, err := loadConfigFile(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return usageErrorf("%v", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := saveConfigFile(cfg, path); err != nil {
				return err
			}
			app.Log.Info().Str("key", args[0]).Msg("config updated")
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", SuccessStyle.Render("[OK]"), args[0], args[1])
			return nil
		},
	}
}

// loadConfigFile reads path over the defaults. A missing file yields defaults.
func loadConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return cfg, nil
}

func saveConfigFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
