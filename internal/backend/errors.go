// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
package backend

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Status  int // HTTP status, 0 when no response was received
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg += " (HTTP " + strconv.Itoa(e.Status) + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type, so errors.Is(err, ErrUnauthorized)
// holds for any 401 regardless of message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == sentinelMessage(t.Type)
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnreachable
	ErrTypeTimeout
	ErrTypeUnauthorized
	ErrTypeNotFound
	ErrTypeInvalidRequest
	ErrTypeServer
	ErrTypeInvalidResponse
	ErrTypeStream
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeUnreachable:
		return "unreachable"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeUnauthorized:
		return "unauthorized"
	case ErrTypeNotFound:
		return "not_found"
	case ErrTypeInvalidRequest:
		return "invalid_request"
	case ErrTypeServer:
		return "server"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrUnreachable  = &ClientError{Type: ErrTypeUnreachable, Message: sentinelMessage(ErrTypeUnreachable)}
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout, Message: sentinelMessage(ErrTypeTimeout)}
	ErrUnauthorized = &ClientError{Type: ErrTypeUnauthorized, Message: sentinelMessage(ErrTypeUnauthorized)}
	ErrNotFound     = &ClientError{Type: ErrTypeNotFound, Message: sentinelMessage(ErrTypeNotFound)}
)

func sentinelMessage(t ErrorType) string {
	switch t {
	case ErrTypeUnreachable:
		return "backend is not reachable"
	case ErrTypeTimeout:
		return "request timed out"
	case ErrTypeUnauthorized:
		return "not logged in"
	case ErrTypeNotFound:
		return "not found"
	default:
		return ""
	}
}

// IsUnauthorized checks if an error means the session is missing or expired.
func IsUnauthorized(err error) bool {
	return hasType(err, ErrTypeUnauthorized)
}

// IsUnreachable checks if an error means the backend could not be reached.
func IsUnreachable(err error) bool {
	return hasType(err, ErrTypeUnreachable)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsNotFound checks if an error is a 404.
func IsNotFound(err error) bool {
	return hasType(err, ErrTypeNotFound)
}

func hasType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// transportError classifies an error returned by http.Client.Do.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{Type: ErrTypeTimeout, Message: sentinelMessage(ErrTypeTimeout), Cause: err}
	}
	return &ClientError{Type: ErrTypeUnreachable, Message: sentinelMessage(ErrTypeUnreachable), Cause: err}
}

// errorBody covers both error shapes the API returns.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

const maxErrorBody = 64 << 10

// responseError builds a ClientError from a non-2xx response.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := detailMessage(raw)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	typ := ErrTypeUnknown
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		typ = ErrTypeUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		typ = ErrTypeNotFound
	case resp.StatusCode >= 500:
		typ = ErrTypeServer
	case resp.StatusCode >= 400:
		typ = ErrTypeInvalidRequest
	}
	return &ClientError{Type: typ, Status: resp.StatusCode, Message: msg}
}

// detailMessage extracts a human message from an error body. FastAPI puts
// it in "detail" (a string, or a list of validation issues); upload errors
// use "error".
func detailMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Error != "" {
		return body.Error
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var issues []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, is := range issues {
			if is.Msg != "" {
				msgs = append(msgs, is.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
