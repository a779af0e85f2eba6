// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
package backend

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Question string `json:"question" validate:"required,max=8000"`
}

// OpenChat posts question to the chat endpoint and returns the streaming
// NDJSON body. Cancelling ctx or closing the body tears the connection down.
// Read errors other than io.EOF come back as *ClientError of type
// ErrTypeStream.
func (c *Client) OpenChat(ctx context.Context, question string) (io.ReadCloser, error) {
	body := ChatRequest{Question: question}
	if err := c.validateRequest(body); err != nil {
		return nil, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, c.config.ChatPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson, text/plain")

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer drainAndClose(resp.Body)
		return nil, responseError(resp)
	}

	c.log.Debug().
		Str("path", req.URL.Path).
		Dur("ttfb", time.Since(start)).
		Msg("chat stream opened")
	return &chatBody{ReadCloser: resp.Body}, nil
}

// chatBody maps mid-stream read failures to ClientError.
type chatBody struct {
	io.ReadCloser
}

func (b *chatBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	if errors.Is(err, context.Canceled) {
		return n, err
	}
	return n, &ClientError{Type: ErrTypeStream, Message: "chat stream interrupted", Cause: err}
}
