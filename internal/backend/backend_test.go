// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/stream"
)

// =============================================================================
// TEST SERVER
// =============================================================================

// fakeAPI mimics the document chat backend closely enough for the client.
type fakeAPI struct {
	listCalls atomic.Int32
	uploaded  atomic.Value // string filename
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "hunter22" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"Invalid login credentials"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r1", HttpOnly: true, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "a1", HttpOnly: true, Secure: true, SameSite: http.SameSiteNoneMode, Path: "/"})
		io.WriteString(w, `{"name":"Ada","email":"`+body.Email+`"}`)
	})

	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Path: "/", MaxAge: -1})
		http.SetCookie(w, &http.Cookie{Name: "access_token", Path: "/", MaxAge: -1, Secure: true})
		io.WriteString(w, `{"data":"You have successfully logged out"}`)
	})

	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("refresh_token"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"Not authenticated"}`)
			return
		}
		io.WriteString(w, `{"data":{"email":"ada@example.com","name":"Ada"}}`)
	})

	mux.HandleFunc("/documents/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		switch {
		case r.URL.Path == "/documents/" && r.Method == http.MethodGet:
			f.listCalls.Add(1)
			io.WriteString(w, `[{"id":1,"filename":"lease.pdf"},{"id":2,"filename":"notes.docx"}]`)
		case r.URL.Path == "/documents/upload" && r.Method == http.MethodPost:
			file, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			data, _ := io.ReadAll(file)
			f.uploaded.Store(hdr.Filename + ":" + string(data))
			io.WriteString(w, `{"user_id":"u1","doc_id":3,"filename":"`+hdr.Filename+`"}`)
		case r.URL.Path == "/documents/1" && r.Method == http.MethodDelete:
			io.WriteString(w, `{"detail":"Document deleted"}`)
		case r.URL.Path == "/documents/1/text":
			io.WriteString(w, `{"text":"The lease renews yearly.","filename":"lease.pdf"}`)
		case r.URL.Path == "/documents/1":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", "inline; filename=my lease.pdf")
			io.WriteString(w, "%PDF-1.4 fake")
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":"Document not found"}`)
		}
	})

	mux.HandleFunc("/chat/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		var body ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		for _, part := range []string{
			`{"type":"chunk","da`, `ta":"Hel"}` + "\n",
			`{"type":"chunk","data":"lo"}` + "\n" + `{"type":"citations","data":{"doc_id":1,"filename":"a.pdf","snippet":"x"}}`,
			"\n",
		} {
			io.WriteString(w, part)
			flusher.Flush()
		}
	})

	return mux
}

func (f *fakeAPI) authorized(w http.ResponseWriter, r *http.Request) bool {
	if c, err := r.Cookie("access_token"); err == nil && c.Value == "a1" {
		return true
	}
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, `{"detail":"Not authenticated"}`)
	return false
}

func newTestClient(t *testing.T, store *CookieStore) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	if store == nil {
		store = NewMemoryCookieStore()
	}
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/", Jar: store}), api
}

func login(t *testing.T, c *Client) {
	t.Helper()
	user, err := c.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestClient_LoginSendsSecureCookieToLoopback(t *testing.T) {
	c, _ := newTestClient(t, nil)
	login(t, c)

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err, "access_token is Secure and must still reach 127.0.0.1")
	assert.Len(t, docs, 2)
}

func TestClient_LoginRejected(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestClient_SignupValidation(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.Signup(context.Background(), SignupRequest{Name: "", Email: "nope", Password: "123"})
	require.Error(t, err)

	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeInvalidRequest, ce.Type)
	assert.Contains(t, ce.Message, "name is required")
	assert.Contains(t, ce.Message, "email must be a valid email address")
	assert.Contains(t, ce.Message, "password must be at least 6 characters")
}

func TestClient_MeWithoutSession(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_LogoutClearsSession(t *testing.T) {
	c, _ := newTestClient(t, nil)
	login(t, c)
	require.NoError(t, c.Logout(context.Background()))

	_, err := c.Me(context.Background())
	assert.True(t, IsUnauthorized(err))
}

// =============================================================================
// COOKIE PERSISTENCE TESTS
// =============================================================================

func TestCookieStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	store, err := NewCookieStore(path, zerolog.Nop())
	require.NoError(t, err)

	c, _ := newTestClient(t, store)
	login(t, c)
	assert.Equal(t, 2, store.Len())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := NewCookieStore(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	c2 := NewClientWithConfig(&ClientConfig{BaseURL: c.BaseURL(), Jar: reloaded})
	_, err = c2.Me(context.Background())
	assert.NoError(t, err)

	require.NoError(t, c2.Logout(context.Background()))
	assert.Equal(t, 0, reloaded.Len())
}

func TestCookieStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	store, err := NewCookieStore(path, zerolog.Nop())
	require.NoError(t, err)

	c, _ := newTestClient(t, store)
	login(t, c)
	require.NoError(t, store.Clear())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = c.Me(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestCookieStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewCookieStore(path, zerolog.Nop())
	assert.Error(t, err)
	require.NotNil(t, store, "a usable empty store is still returned")
	assert.Equal(t, 0, store.Len())
}

// =============================================================================
// DOCUMENT TESTS
// =============================================================================

func TestClient_ListDocumentsCached(t *testing.T) {
	c, api := newTestClient(t, nil)
	login(t, c)
	ctx := context.Background()

	_, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	docs, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.listCalls.Load())
	assert.Equal(t, Document{ID: 1, Filename: "lease.pdf"}, docs[0])

	require.NoError(t, c.DeleteDocument(ctx, 1))
	_, err = c.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.listCalls.Load(), "delete invalidates the cache")
}

func TestClient_UploadDocument(t *testing.T) {
	c, api := newTestClient(t, nil)
	login(t, c)

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF data"), 0644))

	res, err := c.UploadDocument(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DocID)
	assert.Equal(t, "report.pdf:%PDF data", api.uploaded.Load())
}

func TestClient_UploadRejectsExtension(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.UploadDocument(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.True(t, IsSupportedFile("A.PDF"))
	assert.True(t, IsSupportedFile("b.docx"))
}

func TestClient_TextAndDownload(t *testing.T) {
	c, _ := newTestClient(t, nil)
	login(t, c)
	ctx := context.Background()

	text, err := c.GetDocumentText(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "The lease renews yearly.", text.Text)

	var buf bytes.Buffer
	name, n, err := c.DownloadDocument(ctx, 1, &buf)
	require.NoError(t, err)
	assert.Equal(t, "my lease.pdf", name)
	assert.Equal(t, int64(buf.Len()), n)
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF"))

	_, err = c.GetDocumentText(ctx, 99)
	assert.True(t, IsNotFound(err))
}

func TestClient_FindDocument(t *testing.T) {
	c, _ := newTestClient(t, nil)
	login(t, c)
	ctx := context.Background()

	doc, err := c.FindDocument(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "notes.docx", doc.Filename)

	doc, err = c.FindDocument(ctx, "lease.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ID)

	_, err = c.FindDocument(ctx, "missing.pdf")
	assert.True(t, IsNotFound(err))
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestClient_ChatStreamEndToEnd(t *testing.T) {
	c, _ := newTestClient(t, nil)
	login(t, c)

	var text strings.Builder
	var cites []model.Citation
	ctrl := stream.NewController(c, stream.DefaultConfig(), zerolog.Nop())
	sess := ctrl.Start(context.Background(), "hi", stream.Handlers{
		OnText:      func(s string) { text.WriteString(s) },
		OnCitations: func(items []model.Citation) { cites = append(cites, items...) },
	})
	require.NoError(t, sess.Wait(context.Background()))

	assert.Equal(t, "Hello", text.String())
	require.Len(t, cites, 1)
	assert.Equal(t, model.Citation{SourceName: "a.pdf", Snippet: "x", DocID: "1"}, cites[0])
}

func TestClient_ChatUnauthorized(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.OpenChat(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_ChatEmptyQuestion(t *testing.T) {
	c, _ := newTestClient(t, nil)
	_, err := c.OpenChat(context.Background(), "")
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeInvalidRequest, ce.Type)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	err := c.CheckReachable(context.Background())
	assert.True(t, IsUnreachable(err))
	_, err = c.OpenChat(context.Background(), "hi")
	assert.True(t, IsUnreachable(err))
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestDetailMessage(t *testing.T) {
	assert.Equal(t, "Not authenticated", detailMessage([]byte(`{"detail":"Not authenticated"}`)))
	assert.Equal(t, "Chroma add failed", detailMessage([]byte(`{"error":"Chroma add failed"}`)))
	assert.Equal(t, "field required; value is not a valid email",
		detailMessage([]byte(`{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`)))
	assert.Equal(t, "Bad Gateway", detailMessage([]byte("Bad Gateway")))
}

func TestClientError_Format(t *testing.T) {
	err := &ClientError{Type: ErrTypeServer, Status: 500, Message: "boom"}
	assert.Equal(t, "boom (HTTP 500)", err.Error())
	assert.Equal(t, "server", err.Type.String())
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
