// Package auth persists Google OAuth tokens and refreshes them on demand.
// Tokens live in the injected key-value store so the rest of the codebase
// never touches token material directly.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"meetsync/internal/store"
)

// KV keys for the persisted token parts.
const (
	KeyAccessToken  = "google_access_token"
	KeyRefreshToken = "google_refresh_token"
	KeyTokenExpiry  = "google_token_expiry"
)

// expirySkew treats tokens expiring within this window as already expired,
// so a token never dies mid-request.
const expirySkew = 30 * time.Second

// Store persists OAuth tokens and exchanges expired access tokens for fresh
// ones using the refresh token. A failed refresh clears the stored tokens;
// callers then proceed unauthenticated rather than crashing.
type Store struct {
	kv  store.KV
	cfg *oauth2.Config
	log *slog.Logger
}

// NewStore creates a token store. cfg supplies the OAuth client used for
// refresh exchanges.
func NewStore(kv store.KV, cfg *oauth2.Config, logger *slog.Logger) *Store {
	return &Store{kv: kv, cfg: cfg, log: logger}
}

// Save persists all parts of the token. A token without a refresh token
// keeps any previously stored refresh token, matching the OAuth convention
// that refresh tokens are only issued once.
func (s *Store) Save(ctx context.Context, tok *oauth2.Token) error {
	if err := s.kv.Set(ctx, KeyAccessToken, tok.AccessToken); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if tok.RefreshToken != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, tok.RefreshToken); err != nil {
			return fmt.Errorf("storing refresh token: %w", err)
		}
	}
	expiry := ""
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}
	if err := s.kv.Set(ctx, KeyTokenExpiry, expiry); err != nil {
		return fmt.Errorf("storing token expiry: %w", err)
	}
	return nil
}

// Clear removes all stored token material.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}
	return nil
}

// AccessToken returns a currently valid access token, refreshing
// transparently when the stored one has expired and a refresh token exists.
// It returns "" (with no error) when the user is not authenticated or the
// refresh failed — the caller proceeds unauthenticated.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", nil
	}
	return tok.AccessToken, nil
}

// TokenSource adapts the store to [oauth2.TokenSource] for wiring into the
// Google API client. It fails with an error when no valid token can be
// produced, which surfaces as an auth failure on the API call.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, store: s}
}

type tokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.store.current(ts.ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("not authenticated with google calendar")
	}
	return tok, nil
}

// current loads the stored token and refreshes it if needed. It returns
// (nil, nil) when no usable token exists.
func (s *Store) current(ctx context.Context) (*oauth2.Token, error) {
	tok, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}

	if tok.AccessToken != "" && !expired(tok) {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		s.log.Warn("access token expired and no refresh token stored, clearing tokens")
		_ = s.Clear(ctx)
		return nil, nil
	}

	fresh, err := s.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		s.log.Warn("token refresh failed, clearing tokens", "error", err)
		_ = s.Clear(ctx)
		return nil, nil
	}
	if err := s.Save(ctx, fresh); err != nil {
		return nil, err
	}
	s.log.Debug("access token refreshed", "expiry", fresh.Expiry)
	return fresh, nil
}

// load reads the persisted token parts. Returns (nil, nil) when nothing is
// stored.
func (s *Store) load(ctx context.Context) (*oauth2.Token, error) {
	access, err := s.kv.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}
	refresh, err := s.kv.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("reading refresh token: %w", err)
	}
	if access == "" && refresh == "" {
		return nil, nil
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh}
	if raw, err := s.kv.Get(ctx, KeyTokenExpiry); err == nil && raw != "" {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			tok.Expiry = t
		}
	}
	return tok, nil
}

func expired(tok *oauth2.Token) bool {
	if tok.Expiry.IsZero() {
		return false
	}
	return time.Now().After(tok.Expiry.Add(-expirySkew))
}
