package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkordes/travel-log/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers an account. When the server confirms accounts
// automatically the returned session is installed and listeners notified.
func (c *Client) SignUp(ctx context.Context, email, password string) (domain.SignUpResult, error) {
	var res domain.SignUpResult
	if err := c.do(ctx, http.MethodPost, "/auth/signup", credentials{email, password}, &res, false); err != nil {
		return domain.SignUpResult{}, fmt.Errorf("client.Client.SignUp: %w", err)
	}
	if res.Session != nil {
		c.replaceSession(ctx, res.Session, true)
	}
	return res, nil
}

// SignIn authenticates and installs the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.AuthSession, error) {
	var sess domain.AuthSession
	if err := c.do(ctx, http.MethodPost, "/auth/signin", credentials{email, password}, &sess, false); err != nil {
		return domain.AuthSession{}, fmt.Errorf("client.Client.SignIn: %w", err)
	}
	c.replaceSession(ctx, &sess, true)
	return sess, nil
}

// SignOut revokes the refresh token on the server and forgets the session.
// The local session is dropped even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	sess, ok := c.Session()
	if !ok {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/signout", map[string]string{"refresh_token": sess.RefreshToken}, nil, true)
	c.replaceSession(ctx, nil, true)
	if err != nil && !errors.Is(err, domain.ErrAuth) {
		return fmt.Errorf("client.Client.SignOut: %w", err)
	}
	return nil
}

// CurrentIdentity reports who is signed in, confirming the stored session
// with the server. A session the server no longer accepts counts as signed out.
func (c *Client) CurrentIdentity(ctx context.Context) (domain.Identity, bool, error) {
	if _, ok := c.Session(); !ok {
		return domain.Identity{}, false, nil
	}
	var ident domain.Identity
	err := c.do(ctx, http.MethodGet, "/auth/user", nil, &ident, true)
	if errors.Is(err, domain.ErrAuth) {
		c.replaceSession(ctx, nil, false)
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("client.Client.CurrentIdentity: %w", err)
	}
	return ident, true, nil
}

// UpdatePassword changes the password of the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, password string) (domain.Identity, error) {
	var ident domain.Identity
	err := c.do(ctx, http.MethodPut, "/auth/user", map[string]string{"password": password}, &ident, true)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("client.Client.UpdatePassword: %w", err)
	}
	return ident, nil
}

// SendPasswordReset asks the server to mail a recovery link that lands on
// redirectTo.
func (c *Client) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email, "redirect_to": redirectTo}
	if err := c.do(ctx, http.MethodPost, "/auth/recover", body, nil, false); err != nil {
		return fmt.Errorf("client.Client.SendPasswordReset: %w", err)
	}
	return nil
}

// ConfirmEmail redeems a confirmation link token, installs the session it
// yields and notifies listeners.
func (c *Client) ConfirmEmail(ctx context.Context, token string) (domain.AuthSession, error) {
	var sess domain.AuthSession
	if err := c.do(ctx, http.MethodPost, "/auth/verify", map[string]string{"token": token}, &sess, false); err != nil {
		return domain.AuthSession{}, fmt.Errorf("client.Client.ConfirmEmail: %w", err)
	}
	c.replaceSession(ctx, &sess, true)
	return sess, nil
}

// ResendConfirmation asks the server to mail a new confirmation link.
func (c *Client) ResendConfirmation(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email, "redirect_to": redirectTo}
	if err := c.do(ctx, http.MethodPost, "/auth/resend", body, nil, false); err != nil {
		return fmt.Errorf("client.Client.ResendConfirmation: %w", err)
	}
	return nil
}

// ParseConfirmationLink extracts the token of an email confirmation link.
// A bare token is returned unchanged.
func ParseConfirmationLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "token=") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("client.ParseConfirmationLink: %w: %w", domain.ErrParse, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		frag, _ := url.ParseQuery(u.Fragment)
		token = frag.Get("token")
	}
	if token == "" {
		return "", fmt.Errorf("client.ParseConfirmationLink: %w: link carries no token", domain.ErrAuth)
	}
	return token, nil
}

// EmailExists asks whether email is registered. nil means the server does
// not say, and callers should proceed as if it were unknown.
func (c *Client) EmailExists(ctx context.Context, email string) (*bool, error) {
	var res struct {
		Exists *bool `json:"exists"`
	}
	path := "/auth/email-exists?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &res, false); err != nil {
		return nil, fmt.Errorf("client.Client.EmailExists: %w", err)
	}
	return res.Exists, nil
}

// ParseRecoveryLink extracts the session carried by a password-reset link.
// The tokens may sit in the query string or in the fragment; the access
// token is read from access_token, or token as a fallback.
func ParseRecoveryLink(raw string) (domain.AuthSession, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("client.ParseRecoveryLink: %w: %w", domain.ErrParse, err)
	}
	frag, _ := url.ParseQuery(u.Fragment)
	query := u.Query()

	pick := func(keys ...string) string {
		for _, vals := range []url.Values{query, frag} {
			for _, k := range keys {
				if v := vals.Get(k); v != "" {
					return v
				}
			}
		}
		return ""
	}

	sess := domain.AuthSession{
		AccessToken:  pick("access_token", "token"),
		RefreshToken: pick("refresh_token"),
	}
	if sess.AccessToken == "" {
		return domain.AuthSession{}, fmt.Errorf("client.ParseRecoveryLink: %w: link carries no access token", domain.ErrAuth)
	}
	return sess, nil
}
