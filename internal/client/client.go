// Package client talks to the travel log API. It implements the remote row
// store and the identity source the tracker consumes, and the account
// operations the CLI exposes.
//
// The client owns the auth session. A request answered with 401 triggers one
// refresh of the access token followed by one retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/localstore"
)

// Client is safe for concurrent use.
type Client struct {
	base       string
	http       *http.Client
	log        *slog.Logger
	store      localstore.Store
	sessionKey string

	mu        sync.Mutex
	session   *domain.AuthSession
	listeners []func(*domain.Identity)

	// refreshMu keeps concurrent 401s from spending the same refresh token twice.
	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// WithSessionStore persists the auth session under key so it survives
// restarts. Restore reads it back.
func WithSessionStore(s localstore.Store, key string) Option {
	return func(c *Client) {
		c.store = s
		c.sessionKey = key
	}
}

// New constructs a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Restore loads a persisted session, if any. A corrupt entry is discarded.
func (c *Client) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	data, ok, err := c.store.Get(ctx, c.sessionKey)
	if err != nil {
		return fmt.Errorf("client.Client.Restore: %w", err)
	}
	if !ok {
		return nil
	}
	var sess domain.AuthSession
	if err := json.Unmarshal(data, &sess); err != nil || sess.AccessToken == "" {
		c.log.WarnContext(ctx, "discarding unreadable stored session", "key", c.sessionKey)
		return c.store.Delete(ctx, c.sessionKey)
	}
	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()
	return nil
}

// Session returns the current auth session.
func (c *Client) Session() (domain.AuthSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return domain.AuthSession{}, false
	}
	return *c.session, true
}

// OnIdentityChange registers fn to be called after every sign-in, sign-out
// and session change. A nil identity means signed out. fn runs on the
// caller's goroutine without any client lock held.
func (c *Client) OnIdentityChange(fn func(*domain.Identity)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetSession installs sess, as done after following a password-reset link.
// When sess carries no user, the identity is fetched with its access token.
func (c *Client) SetSession(ctx context.Context, sess domain.AuthSession) error {
	if sess.AccessToken == "" {
		return fmt.Errorf("client.Client.SetSession: %w: empty access token", domain.ErrAuth)
	}
	if sess.User.ID == "" {
		c.replaceSession(ctx, &sess, false)
		var ident domain.Identity
		if err := c.do(ctx, http.MethodGet, "/auth/user", nil, &ident, true); err != nil {
			c.replaceSession(ctx, nil, false)
			return fmt.Errorf("client.Client.SetSession: %w", err)
		}
		c.mu.Lock()
		if c.session != nil {
			sess = *c.session
		}
		c.mu.Unlock()
		sess.User = ident
	}
	c.replaceSession(ctx, &sess, true)
	return nil
}

// replaceSession swaps the session, persists it and optionally notifies
// listeners.
func (c *Client) replaceSession(ctx context.Context, sess *domain.AuthSession, notify bool) {
	c.mu.Lock()
	c.session = sess
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.persistSession(ctx, sess)
	if !notify {
		return
	}
	var ident *domain.Identity
	if sess != nil {
		u := sess.User
		ident = &u
	}
	for _, fn := range listeners {
		fn(ident)
	}
}

func (c *Client) persistSession(ctx context.Context, sess *domain.AuthSession) {
	if c.store == nil {
		return
	}
	var err error
	if sess == nil {
		err = c.store.Delete(ctx, c.sessionKey)
	} else {
		var data []byte
		if data, err = json.Marshal(sess); err == nil {
			err = c.store.Set(ctx, c.sessionKey, data)
		}
	}
	if err != nil {
		c.log.WarnContext(ctx, "session not persisted", "error", err)
	}
}

// do sends one API request. body and out may be nil. When authed is set the
// bearer token is attached and a 401 triggers one refresh and one retry.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var payload []byte
	if body != nil {
		var err error
		if raw, ok := body.([]byte); ok {
			payload = raw
		} else if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	token := ""
	if authed {
		sess, ok := c.Session()
		if !ok {
			return fmt.Errorf("%w: not signed in", domain.ErrAuth)
		}
		token = sess.AccessToken
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && authed {
		resp.Body.Close()
		if err := c.refresh(ctx, token); err != nil {
			return err
		}
		sess, _ := c.Session()
		if resp, err = c.send(ctx, method, path, payload, sess.AccessToken); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %w", domain.ErrRemote, err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrRemote, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrRemote, method, path, err)
	}
	return resp, nil
}

// refresh exchanges the refresh token for a new session unless another
// goroutine already replaced the access token that failed. A rejected
// refresh token ends the session.
func (c *Client) refresh(ctx context.Context, failedToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess, ok := c.Session()
	if !ok {
		return fmt.Errorf("%w: not signed in", domain.ErrAuth)
	}
	if sess.AccessToken != failedToken {
		return nil
	}
	if sess.RefreshToken == "" {
		c.replaceSession(ctx, nil, true)
		return fmt.Errorf("%w: session expired", domain.ErrAuth)
	}

	var next domain.AuthSession
	err := c.do(ctx, http.MethodPost, "/auth/token", map[string]string{"refresh_token": sess.RefreshToken}, &next, false)
	if errors.Is(err, domain.ErrAuth) {
		c.log.InfoContext(ctx, "refresh token rejected, signing out")
		c.replaceSession(ctx, nil, true)
		return err
	}
	if err != nil {
		return err
	}
	c.log.DebugContext(ctx, "access token refreshed")
	c.replaceSession(ctx, &next, false)
	return nil
}

// statusError converts a non-2xx response into a domain error carrying the
// server's message.
func statusError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := resp.Status
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = domain.ErrParse
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = domain.ErrAuth
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrConflict
	case http.StatusUnprocessableEntity:
		sentinel = domain.ErrValidation
	default:
		sentinel = domain.ErrRemote
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
