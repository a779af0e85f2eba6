// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat API.
package backend

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// COOKIE STORE
// =============================================================================

// CookieStore is an http.CookieJar that persists session cookies to a file
// so later invocations stay logged in.
//
// The login endpoint marks access_token Secure. Browsers still send Secure
// cookies to http://localhost, and so does CookieStore for loopback hosts.
type CookieStore struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	path    string // empty means memory only
	entries map[string]storedCookie
	log     zerolog.Logger
	now     func() time.Time
}

// storedCookie is the on-disk form of one cookie.
type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (s storedCookie) key() string {
	return s.URL + "|" + s.Domain + "|" + s.Path + "|" + s.Name
}

// NewMemoryCookieStore creates a store that never touches disk.
func NewMemoryCookieStore() *CookieStore {
	s, _ := NewCookieStore("", zerolog.Nop())
	return s
}

// NewCookieStore creates a store backed by path, loading any cookies saved
// there. A missing file is not an error.
func NewCookieStore(path string, log zerolog.Logger) (*CookieStore, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}
	s := &CookieStore{
		jar:     jar,
		path:    path,
		entries: make(map[string]storedCookie),
		log:     log.With().Str("component", "cookies").Logger(),
		now:     time.Now,
	}
	if path == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		return s, err
	}
	return s, nil
}

// SetCookies implements http.CookieJar.
func (s *CookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(jarURL(u), cookies)

	origin := originOf(u)
	now := s.now()
	for _, c := range cookies {
		sc := storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		switch {
		case c.MaxAge < 0, !c.Expires.IsZero() && !c.Expires.After(now):
			delete(s.entries, sc.key())
			continue
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		default:
			sc.Expires = c.Expires
		}
		s.entries[sc.key()] = sc
	}

	if err := s.saveLocked(); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("failed to persist cookies")
	}
}

// Cookies implements http.CookieJar.
func (s *CookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	return jar.Cookies(jarURL(u))
}

// Clear forgets every cookie and removes the file.
func (s *CookieStore) Clear() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return errors.Wrap(err, "create cookie jar")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.entries = make(map[string]storedCookie)
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove cookie file")
	}
	return nil
}

// Len returns the number of live cookies held.
func (s *CookieStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Path returns the backing file, or "" for a memory store.
func (s *CookieStore) Path() string {
	return s.path
}

func (s *CookieStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read cookie file")
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return errors.Wrap(err, "parse cookie file")
	}

	now := s.now()
	for _, sc := range stored {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		u, err := url.Parse(sc.URL)
		if err != nil {
			continue
		}
		s.jar.SetCookies(jarURL(u), []*http.Cookie{{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		}})
		s.entries[sc.key()] = sc
	}
	return nil
}

func (s *CookieStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	list := make([]storedCookie, 0, len(s.entries))
	for _, sc := range s.entries {
		list = append(list, sc)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].key() < list[j].key() })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode cookies")
	}
	return util.AtomicWriteFileWithDir(s.path, data, 0600, 0700)
}

// jarURL presents loopback http URLs to the jar as https so Secure
// cookies are stored and sent.
func jarURL(u *url.URL) *url.URL {
	if u.Scheme != "http" || !isLoopback(u.Hostname()) {
		return u
	}
	cp := *u
	cp.Scheme = "https"
	return &cp
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}
