// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: http://localhost:8000)
	BaseURL string

	// ChatPath is the streaming chat endpoint (default: /chat/)
	ChatPath string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamConnectTimeout bounds the wait for chat response headers
	// (default: 30s). The body itself has no deadline.
	StreamConnectTimeout time.Duration

	// DocumentCacheTTL is how long a document listing is reused (default: 30s)
	DocumentCacheTTL time.Duration

	// Jar holds session cookies. Nil means an in-memory jar.
	Jar http.CookieJar

	// Logger receives request diagnostics.
	Logger zerolog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:              "http://localhost:8000",
		ChatPath:             "/chat/",
		Timeout:              30 * time.Second,
		StreamConnectTimeout: 30 * time.Second,
		DocumentCacheTTL:     30 * time.Second,
		Logger:               zerolog.Nop(),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the document chat API: auth, documents and the streaming
// chat endpoint. It implements stream.Opener.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	jar, _ := backend.NewCookieStore(path, log)
//	client := backend.NewClientWithConfig(&backend.ClientConfig{Jar: jar})
//	user, err := client.Me(ctx)
type Client struct {
	config       *ClientConfig
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	validate     *validator.Validate
	docs         *cache.Cache
	log          zerolog.Logger
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.ChatPath == "" {
		config.ChatPath = defaults.ChatPath
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.StreamConnectTimeout == 0 {
		config.StreamConnectTimeout = defaults.StreamConnectTimeout
	}
	if config.DocumentCacheTTL == 0 {
		config.DocumentCacheTTL = defaults.DocumentCacheTTL
	}
	if config.Jar == nil {
		config.Jar = NewMemoryCookieStore()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport := transport.Clone()
	streamTransport.ResponseHeaderTimeout = config.StreamConnectTimeout

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
			Jar:       config.Jar,
		},
		// No overall timeout: an answer streams for as long as it takes.
		streamClient: &http.Client{
			Transport: streamTransport,
			Jar:       config.Jar,
		},
		validate: validator.New(),
		docs:     cache.New(config.DocumentCacheTTL, 2*config.DocumentCacheTTL),
		log:      config.Logger.With().Str("component", "backend").Logger(),
	}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckReachable verifies that the backend answers HTTP at all.
func (c *Client) CheckReachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	drainAndClose(resp.Body)
	return nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// newJSONRequest builds a request with an optional JSON body.
func (c *Client) newJSONRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON response into out (if non-nil).
func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("request failed")
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Status: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// validateRequest runs struct validation and wraps failures.
func (c *Client) validateRequest(v interface{}) error {
	if err := c.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ClientError{Type: ErrTypeInvalidRequest, Message: describeValidation(verrs)}
		}
		return &ClientError{Type: ErrTypeInvalidRequest, Message: "invalid request", Cause: err}
	}
	return nil
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email address")
		case "min":
			parts = append(parts, field+" must be at least "+fe.Param()+" characters")
		case "max":
			parts = append(parts, field+" must be at most "+fe.Param()+" characters")
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
	r.Close()
}
