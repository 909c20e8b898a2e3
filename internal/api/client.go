// Package api is the resilient request client for the recommendation
// backend. Every outbound call goes through Client.do, which attaches the
// bearer credential, classifies failures into the error taxonomy, and on an
// auth failure refreshes the credential and resubmits the identical request
// exactly once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"stylesync/internal/identity"
)

// DefaultTimeout bounds a single backend call when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 15 * time.Second

// maxAttempts bounds one logical call: the original request plus at most
// one resubmission after a credential refresh.
const maxAttempts = 2

// envelope is the common wrapper on every backend response.
type envelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// Client performs authenticated calls against the backend API.
type Client struct {
	baseURL    string
	http       *http.Client
	ident      identity.Provider
	onReauth   func(returnTo string)
	locationFn func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithReauthHandler registers the side effect invoked when a credential
// refresh fails and the user must log in again. returnTo is the location to
// restore after login.
func WithReauthHandler(fn func(returnTo string)) Option {
	return func(c *Client) { c.onReauth = fn }
}

// WithLocation registers the function that reports the current UI location,
// recorded for post-login restoration.
func WithLocation(fn func() string) Option {
	return func(c *Client) { c.locationFn = fn }
}

// New creates a request client for the backend at baseURL.
func New(baseURL string, ident identity.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		ident:   ident,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one logical call. On an auth-classified failure it refreshes
// the credential and resubmits the identical payload once; if the refresh
// itself fails it surfaces AuthExpired and signals the reauth side effect.
// The client never touches any manager's cache.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = c.send(ctx, method, path, query, payload, out)
		if lastErr == nil {
			return nil
		}

		var apiErr *Error
		if !errors.As(lastErr, &apiErr) || !apiErr.AuthFailure() || attempt == maxAttempts-1 {
			return lastErr
		}

		if refreshErr := c.ident.Refresh(ctx); refreshErr != nil {
			c.signalReauth()
			return &Error{
				Kind:    KindAuthExpired,
				Message: apiErr.Message,
				Code:    apiErr.Code,
				Status:  apiErr.Status,
			}
		}
	}
	return lastErr
}

// send performs a single HTTP round trip and classifies the outcome.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok, ok := c.ident.Credential(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return &Error{Kind: KindTimeout, Message: err.Error()}
		}
		return &Error{Kind: KindServerUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindServerUnavailable, Message: err.Error(), Status: resp.StatusCode}
	}

	var env envelope
	// A non-JSON body on an error status still classifies by status alone
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode >= 400 || !env.Success {
		return classify(resp.StatusCode, env.ErrorCode, env.Error)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) signalReauth() {
	returnTo := ""
	if c.locationFn != nil {
		returnTo = c.locationFn()
	}
	if c.onReauth != nil {
		c.onReauth(returnTo)
	}
}
