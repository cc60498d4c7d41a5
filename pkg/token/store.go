// Package token implements the OAuth 2.0 authorization-code/refresh
// token lifecycle (§4.1 TokenStore) plus the retained legacy HMAC-signed
// flow (§4.13) for the one endpoint family that never moved to OAuth.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/galaxydl/galaxydl/pkg/errkind"
	"github.com/galaxydl/galaxydl/pkg/model"
)

// Endpoint is the OAuth authorize/token endpoint pair (§6).
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://auth.gog.com/auth",
	TokenURL: "https://auth.gog.com/token",
}

const redirectURI = "https://embed.gog.com/on_login_success?origin=client"

// Store holds the current Token under a single RWMutex, exactly as
// §4.1/§5 require: readers and writers are equal, refresh is not
// serialized across concurrent callers at a higher layer, and a caller
// that races and observes a stale token is expected to retry once.
type Store struct {
	mu    sync.RWMutex
	token model.Token
	path  string

	exchangeFn func(ctx context.Context, cfg oauth2.Config, code string) (*oauth2.Token, error)
	refreshFn  func(ctx context.Context, cfg oauth2.Config, refreshToken string) (*oauth2.Token, error)
}

// New creates an empty Store. Call Load to hydrate it from disk, or
// ExchangeCode after the authorization-code redirect.
func New() *Store {
	return &Store{
		exchangeFn: defaultExchange,
		refreshFn:  defaultRefresh,
	}
}

func oauthConfig(clientID, clientSecret string) oauth2.Config {
	return oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
		RedirectURL:  redirectURI,
	}
}

func defaultExchange(ctx context.Context, cfg oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errkind.AuthFatal.Wrap(err)
	}
	return tok, nil
}

func defaultRefresh(ctx context.Context, cfg oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, errkind.AuthFatal.Wrap(err)
	}
	return tok, nil
}

// AuthorizeURL returns the OAuth authorize URL for the given client,
// matching §6's query shape (client_id, redirect_uri, response_type,
// layout, brand).
func AuthorizeURL(clientID string) string {
	cfg := oauthConfig(clientID, "")
	return cfg.AuthCodeURL("", oauth2.SetAuthURLParam("layout", "default"), oauth2.SetAuthURLParam("brand", "gog"))
}

// ExchangeCode performs the authorization-code grant and stores the
// resulting token.
func (s *Store) ExchangeCode(ctx context.Context, clientID, clientSecret, code string) error {
	cfg := oauthConfig(clientID, clientSecret)
	tok, err := s.exchangeFn(ctx, cfg, code)
	if err != nil {
		return err
	}
	s.setFromOAuth(clientID, clientSecret, tok)
	return nil
}

// Refresh performs a single token-endpoint exchange using the refresh
// grant and atomically replaces the stored token on success (§4.1). It
// does not serialize against concurrent callers: the last writer wins,
// and the spec's invariant is that both results are equally valid
// tokens from the server's perspective.
func (s *Store) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string, newSession bool) error {
	cfg := oauthConfig(clientID, clientSecret)
	tok, err := s.refreshFn(ctx, cfg, refreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prevSession := s.token.SessionID
	s.mu.Unlock()

	session := prevSession
	if newSession || session == "" {
		session = uuid.NewString()
	}
	s.setFromOAuth(clientID, clientSecret, tok)

	s.mu.Lock()
	s.token.SessionID = session
	s.mu.Unlock()
	return nil
}

func (s *Store) setFromOAuth(clientID, clientSecret string, tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.token.RefreshToken = tok.RefreshToken
	}
	s.token.ClientID = clientID
	s.token.ClientSecret = clientSecret
	if !tok.Expiry.IsZero() {
		s.token.ExpiresAt = tok.Expiry
	}
	if uid, ok := tok.Extra("user_id").(string); ok {
		s.token.UserID = uid
	}
}

// IsExpired reports whether the stored token is expired as of now.
func (s *Store) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.IsExpired(time.Now())
}

// GetAccess returns a non-expired access token, or an AuthExpired error
// indicating the caller must refresh.
func (s *Store) GetAccess() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.IsExpired(time.Now()) {
		return "", errkind.AuthExpired.New("access token expired at %s", s.token.ExpiresAt)
	}
	return s.token.AccessToken, nil
}

// GetAccessStaleOK returns the access token without checking expiry, for
// readers that tolerate a stale value (§4.1).
func (s *Store) GetAccessStaleOK() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken
}

// Snapshot returns a copy of the current token.
func (s *Store) Snapshot() model.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ClientCredentials returns the stored client id/secret, needed by the
// caller to invoke Refresh.
func (s *Store) ClientCredentials() (clientID, clientSecret, refreshToken string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.ClientID, s.token.ClientSecret, s.token.RefreshToken
}

// diskToken is the on-disk JSON shape of galaxy_tokens.json, matching
// §3's Token attributes plus the legacy expires_in fallback.
type diskToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
	ExpiresIn    *int64 `json:"expires_in,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// Load reads a persisted token from path. If expires_at is absent but
// expires_in is present, expires_at is computed as file_mtime +
// expires_in, per §3's Token invariant.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading token file %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat token file %s: %w", path, err)
	}

	var d diskToken
	if err := json.Unmarshal(data, &d); err != nil {
		return errkind.ParseError.Wrap(fmt.Errorf("parsing token file %s: %w", path, err))
	}

	tok := model.Token{
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
		UserID:       d.UserID,
		SessionID:    d.SessionID,
	}
	switch {
	case d.ExpiresAt != nil:
		tok.ExpiresAt = time.Unix(*d.ExpiresAt, 0)
	case d.ExpiresIn != nil:
		tok.ExpiresAt = info.ModTime().Add(time.Duration(*d.ExpiresIn) * time.Second)
	}

	s.mu.Lock()
	s.token = tok
	s.path = path
	s.mu.Unlock()
	return nil
}

// Save atomically persists the token to path (temp file + rename),
// setting owner-only permissions unless adjustPerms is false. A write
// failure here is never fatal to the caller (§4.1): it is returned so
// the caller can log it, but the in-memory token remains usable.
func (s *Store) Save(path string, adjustPerms bool) error {
	s.mu.RLock()
	t := s.token
	s.mu.RUnlock()

	expiresAt := t.ExpiresAt.Unix()
	d := diskToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ClientID:     t.ClientID,
		ClientSecret: t.ClientSecret,
		ExpiresAt:    &expiresAt,
		UserID:       t.UserID,
		SessionID:    t.SessionID,
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp := path + ".tmp"
	mode := os.FileMode(0o644)
	if adjustPerms {
		mode = 0o600
	}
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("writing token temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming token file: %w", err)
	}

	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	return nil
}

// Path returns the last path this store was loaded from or saved to.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}
