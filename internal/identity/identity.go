// Package identity abstracts the credential provider. The core only ever
// asks for the current bearer token and, when the backend says it expired,
// asks for a refresh; everything else about authentication is external.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// Provider supplies the bearer credential for outbound requests.
type Provider interface {
	// Credential returns the current token. ok is false when there is no
	// token at all, in which case requests go out unauthenticated.
	Credential(ctx context.Context) (token string, ok bool)
	// Refresh exchanges the stored refresh token for a new credential.
	Refresh(ctx context.Context) error
}

// RefreshFunc performs the actual token exchange with the identity backend.
type RefreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// TokenFile is a Provider backed by a JSON token file on disk. The file
// holds an oauth2.Token and is rewritten after every successful refresh, so
// a restarted client picks up where it left off.
type TokenFile struct {
	path    string
	refresh RefreshFunc

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewTokenFile loads the token stored at path, if any. A missing or
// unreadable file is not an error: the provider just starts with no
// credential.
func NewTokenFile(path string, refresh RefreshFunc) *TokenFile {
	tf := &TokenFile{path: path, refresh: refresh}
	if tok, err := tokenFromFile(path); err == nil {
		tf.tok = tok
	}
	return tf
}

// Credential returns the stored access token. An expired token is still
// returned: the backend is the authority on expiry and its TOKEN_EXPIRED
// answer is what triggers Refresh.
func (tf *TokenFile) Credential(ctx context.Context) (string, bool) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.tok == nil || tf.tok.AccessToken == "" {
		return "", false
	}
	return tf.tok.AccessToken, true
}

// Refresh exchanges the refresh token for a new one and persists it.
func (tf *TokenFile) Refresh(ctx context.Context) error {
	tf.mu.Lock()
	defer tf.mu.Unlock()

	if tf.refresh == nil {
		return fmt.Errorf("no refresh function configured")
	}
	if tf.tok == nil || tf.tok.RefreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	tok, err := tf.refresh(ctx, tf.tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("unable to refresh credential: %w", err)
	}
	tf.tok = tok

	if err := saveToken(tf.path, tok); err != nil {
		// Keep the refreshed token in memory even if persisting failed
		return nil
	}
	return nil
}

// SetToken replaces the stored token and persists it. Used after an
// interactive login.
func (tf *TokenFile) SetToken(tok *oauth2.Token) error {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.tok = tok
	return saveToken(tf.path, tok)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken persists a token to a local file.
func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// Static is a fixed-credential Provider for tests and local development.
type Static struct {
	mu         sync.Mutex
	token      string
	next       string
	refreshErr error
	refreshes  int
}

// NewStatic creates a provider that always returns token. If next is
// non-empty, a Refresh swaps it in.
func NewStatic(token, next string) *Static {
	return &Static{token: token, next: next}
}

// FailRefresh makes subsequent Refresh calls return err.
func (s *Static) FailRefresh(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshErr = err
}

func (s *Static) Credential(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *Static) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	if s.next != "" {
		s.token = s.next
	}
	return nil
}

// Refreshes returns how many times Refresh was called.
func (s *Static) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}
