// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
package backend

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Document is an uploaded file the chat can cite.
type Document struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// UploadResult is the backend's reply to an upload.
type UploadResult struct {
	UserID   string `json:"user_id"`
	DocID    int    `json:"doc_id"`
	Filename string `json:"filename"`
}

// DocumentText is the extracted text of a document.
type DocumentText struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// AllowedExtensions lists the file types the backend can index.
var AllowedExtensions = []string{".pdf", ".docx"}

const docListKey = "documents"

// ErrUnsupportedFile is returned when an upload has an unsupported extension.
var ErrUnsupportedFile = errors.New("unsupported file type (want .pdf or .docx)")

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

// ListDocuments returns the user's documents. Results are cached briefly;
// uploads and deletes invalidate the cache.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	if cached, ok := c.docs.Get(docListKey); ok {
		return append([]Document(nil), cached.([]Document)...), nil
	}

	req, err := c.newJSONRequest(ctx, http.MethodGet, "/documents/", nil)
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := c.do(req, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}

	c.docs.Set(docListKey, docs, cache.DefaultExpiration)
	return append([]Document(nil), docs...), nil
}

// UploadDocument uploads the file at path as multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, path string) (*UploadResult, error) {
	if !IsSupportedFile(path) {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: filepath.Base(path), Cause: ErrUnsupportedFile}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	// Stream the multipart body instead of buffering the whole file.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/upload", pr)
	if err != nil {
		pr.Close()
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		pr.Close()
		return nil, err
	}
	c.docs.Delete(docListKey)
	return &result, nil
}

// DeleteDocument removes a document and its indexed chunks.
func (c *Client) DeleteDocument(ctx context.Context, id int) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/documents/"+strconv.Itoa(id), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return err
	}
	c.docs.Delete(docListKey)
	return nil
}

// GetDocumentText returns the text the backend extracted from a document.
func (c *Client) GetDocumentText(ctx context.Context, id int) (*DocumentText, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/documents/"+strconv.Itoa(id)+"/text", nil)
	if err != nil {
		return nil, err
	}
	var text DocumentText
	if err := c.do(req, &text); err != nil {
		return nil, err
	}
	return &text, nil
}

// DownloadDocument copies the original file into w and returns the
// filename from Content-Disposition (empty if absent).
func (c *Client) DownloadDocument(ctx context.Context, id int, w io.Writer) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/"+strconv.Itoa(id), nil)
	if err != nil {
		return "", 0, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err}
	}

	// Downloads can be large; use the client without a total deadline.
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return "", 0, transportError(err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", 0, responseError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", n, &ClientError{Type: ErrTypeStream, Message: "download interrupted", Cause: err}
	}
	return dispositionFilename(resp.Header.Get("Content-Disposition")), n, nil
}

// FindDocument resolves a document by numeric id or exact filename.
func (c *Client) FindDocument(ctx context.Context, ref string) (*Document, error) {
	docs, err := c.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	id, idErr := strconv.Atoi(ref)
	for i := range docs {
		if (idErr == nil && docs[i].ID == id) || docs[i].Filename == ref {
			return &docs[i], nil
		}
	}
	return nil, &ClientError{Type: ErrTypeNotFound, Message: "no document matches " + strconv.Quote(ref)}
}

// InvalidateDocuments drops the cached document listing.
func (c *Client) InvalidateDocuments() {
	c.docs.Delete(docListKey)
}

// IsSupportedFile reports whether path has an uploadable extension.
func IsSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		return params["filename"]
	}
	// The backend does not quote the filename, which breaks the parser
	// for names with spaces.
	if i := strings.Index(header, "filename="); i >= 0 {
		return strings.Trim(header[i+len("filename="):], `"; `)
	}
	return ""
}
