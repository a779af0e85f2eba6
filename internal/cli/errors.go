// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands.
//
// STANDARDIZED PATTERN:
//   - Commands always return errors, never print and return nil
//   - Execute prints one friendly message and picks the exit code
//   - Backend errors map to hints ("run docchat login")

package cli

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
	ExitInterrupted  = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ErrInterrupted is returned when the user cancels an answer with Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// =============================================================================
// MAPPING
// =============================================================================

// ExitCode picks the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case errors.As(err, &verrs):
		return ExitConfigError
	case backend.IsUnauthorized(err):
		return ExitAuthError
	case backend.IsUnreachable(err):
		return ExitNetworkError
	case backend.IsTimeout(err):
		return ExitTimeout
	case backend.IsNotFound(err):
		return ExitNotFound
	}
	return ExitGeneralError
}

// FriendlyError formats err for the terminal with a next step when one is known.
func FriendlyError(err error, baseURL string) string {
	switch {
	case backend.IsUnauthorized(err):
		return err.Error() + "\n  Run 'docchat login' to sign in."
	case backend.IsUnreachable(err):
		return fmt.Sprintf("%v\n  Is the docchat server running at %s? Set it with --base-url or DOCCHAT_BASE_URL.", err, baseURL)
	case backend.IsTimeout(err):
		return err.Error() + "\n  The server is slow to respond; raise backend.timeout_secs if this persists."
	}
	return err.Error()
}
