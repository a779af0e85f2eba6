// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - Account commands: login, signup, logout, whoami.
//
// Credentials come from flags, DOCCHAT_EMAIL / DOCCHAT_PASSWORD, or an
// interactive form when stdin is a terminal. Session cookies are kept in
// ~/.docchat/cookies.json with 0600 permissions.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/backend"
)

type credentials struct {
	name          string
	email         string
	password      string
	passwordStdin bool
	jsonOut       bool
}

func (c *credentials) bind(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVar(&c.name, "name", "", "display name")
	}
	cmd.Flags().StringVar(&c.email, "email", "", "account email (or DOCCHAT_EMAIL)")
	cmd.Flags().StringVar(&c.password, "password", "", "account password (or DOCCHAT_PASSWORD)")
	cmd.Flags().BoolVar(&c.passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&c.jsonOut, "json", false, "output in JSON format")
}

// resolve fills missing credentials from the environment, stdin and finally
// an interactive form.
func (c *credentials) resolve(ctx context.Context, stdin io.Reader, withName bool) error {
	if c.email == "" {
		c.email = os.Getenv("DOCCHAT_EMAIL")
	}
	if c.passwordStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrap(err, "failed to read password from stdin")
		}
		c.password = strings.TrimRight(line, "\r\n")
	}
	if c.password == "" {
		c.password = os.Getenv("DOCCHAT_PASSWORD")
	}

	missing := c.email == "" || c.password == "" || (withName && c.name == "")
	if !missing {
		return nil
	}
	if !CanPrompt() || c.jsonOut {
		if withName {
			return usageErrorf("--name, --email and a password are required when not running in a terminal")
		}
		return usageErrorf("--email and a password are required when not running in a terminal")
	}
	return c.prompt(ctx, withName)
}

func (c *credentials) prompt(ctx context.Context, withName bool) error {
	var fields []huh.Field
	if withName {
		fields = append(fields, huh.NewInput().
			Title("Name").
			Value(&c.name).
			Validate(required("name")))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Email").
			Value(&c.email).
			Validate(required("email")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&c.password).
			Validate(required("password")),
	)

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeCharm())
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrInterrupted
		}
		return errors.Wrap(err, "prompt failed")
	}
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func newLoginCommand(app *App) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the docchat server",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := creds.resolve(ctx, cmd.InOrStdin(), false); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return OutputJSON(out, creds.jsonOut, "login", func() (interface{}, error) {
				user, err := app.Client.Login(ctx, backend.LoginRequest{
					Email:    strings.TrimSpace(creds.email),
					Password: creds.password,
				})
				if err != nil {
					return nil, err
				}
				app.Log.Info().Str("email", user.Email).Msg("logged in")
				if !creds.jsonOut {
					fmt.Fprintf(out, "%s Signed in as %s\n", SuccessStyle.Render("[OK]"), displayUser(user))
				}
				return user, nil
			})
		},
	}
	creds.bind(cmd, false)
	return cmd
}

func newSignupCommand(app *App) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on the docchat server",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := creds.resolve(ctx, cmd.InOrStdin(), true); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return OutputJSON(out, creds.jsonOut, "signup", func() (interface{}, error) {
				user, err := app.Client.Signup(ctx, backend.SignupRequest{
					Name:     strings.TrimSpace(creds.name),
					Email:    strings.TrimSpace(creds.email),
					Password: creds.password,
				})
				if err != nil {
					return nil, err
				}
				app.Log.Info().Str("email", user.Email).Msg("signed up")
				if !creds.jsonOut {
					fmt.Fprintf(out, "%s Account created for %s\n", SuccessStyle.Render("[OK]"), displayUser(user))
				}
				return user, nil
			})
		},
	}
	creds.bind(cmd, true)
	return cmd
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			serverErr := app.Client.Logout(cmd.Context())
			if serverErr != nil {
				app.Log.Warn().Err(serverErr).Msg("server logout failed")
			}
			if err := app.Cookies.Clear(); err != nil {
				return errors.Wrap(err, "failed to remove saved session")
			}
			if serverErr != nil && !backend.IsUnauthorized(serverErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s server logout failed: %v\n", WarningStyle.Render("Warning:"), serverErr)
			}
			fmt.Fprintf(out, "%s Signed out\n", SuccessStyle.Render("[OK]"))
			return nil
		},
	}
}

func newWhoamiCommand(app *App) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return OutputJSON(out, jsonOut, "whoami", func() (interface{}, error) {
				user, err := app.Client.Me(cmd.Context())
				if err != nil {
					return nil, err
				}
				if !jsonOut {
					fmt.Fprintln(out, field("Name", user.Name))
					fmt.Fprintln(out, field("Email", user.Email))
					fmt.Fprintln(out, field("Server", app.Client.BaseURL()))
				}
				return user, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func displayUser(u *backend.User) string {
	if u.Name == "" {
		return u.Email
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}
