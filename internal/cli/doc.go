// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the docchat command line.
//
// The root command opens the full-screen chat. Subcommands cover one-shot
// questions (ask), the account (login, signup, logout, whoami), documents
// (docs) and configuration (config).
//
// All commands share one App: configuration from file, .env and DOCCHAT_*
// environment variables, a rotating log file, the persistent cookie jar and
// the backend client. Commands return errors; Execute prints them once and
// maps them to exit codes.
package cli
