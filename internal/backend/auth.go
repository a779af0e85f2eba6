// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
package backend

import (
	"context"
	"net/http"
)

// =============================================================================
// AUTH TYPES
// =============================================================================

// SignupRequest registers a new account.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest starts a session.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// User is the account the session belongs to.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// =============================================================================
// AUTH OPERATIONS
// =============================================================================

// Signup creates an account. The backend sets the refresh cookie.
func (c *Client) Signup(ctx context.Context, r SignupRequest) (*User, error) {
	if err := c.validateRequest(r); err != nil {
		return nil, err
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/signup", r)
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the session cookies in the client's jar.
func (c *Client) Login(ctx context.Context, r LoginRequest) (*User, error) {
	if err := c.validateRequest(r); err != nil {
		return nil, err
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/login", r)
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	c.docs.Flush()
	return &user, nil
}

// Logout ends the session. The backend expires both cookies.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/logout", struct{}{})
	if err != nil {
		return err
	}
	c.docs.Flush()
	return c.do(req, nil)
}

// Me returns the logged-in user, refreshing the session cookie.
func (c *Client) Me(ctx context.Context) (*User, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data User `json:"data"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
