// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
//
// The API is cookie-authenticated. Login stores access and refresh cookies
// in the client's CookieStore, which persists them to disk so that later
// commands reuse the session.
//
// # Key Types
//
//   - Client: Auth, document and chat operations
//   - ClientError: Typed errors (unreachable, unauthorized, not found, ...)
//   - CookieStore: Persistent cookie jar
//
// # Usage
//
//	store, _ := backend.NewCookieStore(cookiePath, log)
//	client := backend.NewClientWithConfig(&backend.ClientConfig{
//	    BaseURL: "http://localhost:8000",
//	    Jar:     store,
//	})
//	if _, err := client.Login(ctx, backend.LoginRequest{Email: e, Password: p}); err != nil {
//	    return err
//	}
//	docs, err := client.ListDocuments(ctx)
//
// OpenChat returns the raw NDJSON answer body; package stream decodes it.
package backend
