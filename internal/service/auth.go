package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pkordes/travel-log/internal/auth"
	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/metrics"
	"github.com/pkordes/travel-log/internal/repo"
)

// TokenIssuer signs access and email confirmation tokens.
type TokenIssuer interface {
	Issue(ident domain.Identity) (string, time.Time, error)
	IssueWithTTL(ident domain.Identity, ttl time.Duration) (string, time.Time, error)
	IssueConfirmation(ident domain.Identity, ttl time.Duration) (string, time.Time, error)
	VerifyConfirmation(token string) (domain.Identity, error)
}

// AuthConfig holds the policy knobs of AuthService.
type AuthConfig struct {
	AutoConfirm     bool
	AllowEmailCheck bool
	RefreshTTL      time.Duration
	ResetTTL        time.Duration
	ResetRedirect   string
	ConfirmTTL      time.Duration
	ConfirmRedirect string
	BcryptCost      int
}

// AuthService implements sign-up, sign-in, token refresh and password reset.
type AuthService struct {
	users   repo.UserRepo
	tokens  repo.TokenRepo
	issuer  TokenIssuer
	mailer  auth.Mailer
	cfg     AuthConfig
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewAuthService constructs an AuthService. m may be nil.
func NewAuthService(users repo.UserRepo, tokens repo.TokenRepo, issuer TokenIssuer, mailer auth.Mailer,
	cfg AuthConfig, m *metrics.Metrics, log *slog.Logger) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.ConfirmTTL == 0 {
		cfg.ConfirmTTL = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{users: users, tokens: tokens, issuer: issuer, mailer: mailer, cfg: cfg, metrics: m, log: log}
}

var errBadCredentials = fmt.Errorf("%w: invalid login credentials", domain.ErrAuth)

// SignUp registers an account. The result carries a session only when
// accounts are confirmed automatically; otherwise a confirmation link is
// mailed and the account can sign in once Confirm accepts it.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (result domain.SignUpResult, err error) {
	defer func() { s.metrics.Auth("signup", err) }()

	email, err = normalizeEmail(email)
	if err != nil {
		return domain.SignUpResult{}, fmt.Errorf("service.AuthService.SignUp: %w", err)
	}
	if err := checkPassword(password); err != nil {
		return domain.SignUpResult{}, fmt.Errorf("service.AuthService.SignUp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return domain.SignUpResult{}, fmt.Errorf("service.AuthService.SignUp: hash: %w", err)
	}

	u, err := s.users.Create(ctx, email, string(hash), s.cfg.AutoConfirm)
	if err != nil {
		return domain.SignUpResult{}, fmt.Errorf("service.AuthService.SignUp: %w", err)
	}
	result = domain.SignUpResult{User: domain.IdentityOf(u)}
	if !s.cfg.AutoConfirm {
		// The account exists either way; a failed mail is retried with
		// ResendConfirmation.
		if err := s.sendConfirmation(ctx, u, s.cfg.ConfirmRedirect); err != nil {
			s.log.WarnContext(ctx, "confirmation email not sent", "user_id", u.ID, "error", err)
		}
		return result, nil
	}
	sess, err := s.newSession(ctx, u, 0)
	if err != nil {
		return domain.SignUpResult{}, fmt.Errorf("service.AuthService.SignUp: %w", err)
	}
	result.Session = &sess
	return result, nil
}

// SignIn checks credentials and issues a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (sess domain.AuthSession, err error) {
	defer func() { s.metrics.Auth("signin", err) }()

	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.SignIn: %w", errBadCredentials)
	}
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.SignIn: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.SignIn: %w", errBadCredentials)
	}
	if u.ConfirmedAt == nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.SignIn: %w: email not confirmed", domain.ErrAuth)
	}
	sess, err = s.newSession(ctx, u, 0)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.SignIn: %w", err)
	}
	return sess, nil
}

// Confirm accepts a token from a confirmation link, marks the account
// confirmed and signs it in.
func (s *AuthService) Confirm(ctx context.Context, token string) (sess domain.AuthSession, err error) {
	defer func() { s.metrics.Auth("confirm", err) }()

	ident, err := s.issuer.VerifyConfirmation(token)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Confirm: %w", err)
	}
	id, err := uuid.Parse(ident.ID)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Confirm: %w: invalid subject", domain.ErrAuth)
	}
	u, err := s.users.Confirm(ctx, id)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Confirm: %w", authIfMissing(err))
	}
	if u.Email != ident.Email {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Confirm: %w: token was issued for another email", domain.ErrAuth)
	}
	sess, err = s.newSession(ctx, u, 0)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Confirm: %w", err)
	}
	return sess, nil
}

// ResendConfirmation mails a fresh confirmation link to an unconfirmed
// account. Unknown and already confirmed emails succeed silently.
func (s *AuthService) ResendConfirmation(ctx context.Context, email, redirectTo string) (err error) {
	defer func() { s.metrics.Auth("resend_confirmation", err) }()

	if redirectTo == "" {
		redirectTo = s.cfg.ConfirmRedirect
	}
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		s.log.InfoContext(ctx, "confirmation resend for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("service.AuthService.ResendConfirmation: %w", err)
	}
	if u.ConfirmedAt != nil {
		return nil
	}
	if err := s.sendConfirmation(ctx, u, redirectTo); err != nil {
		return fmt.Errorf("service.AuthService.ResendConfirmation: %w", err)
	}
	return nil
}

func (s *AuthService) sendConfirmation(ctx context.Context, u domain.User, redirectTo string) error {
	token, _, err := s.issuer.IssueConfirmation(domain.IdentityOf(u), s.cfg.ConfirmTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.SendConfirmation(ctx, u.Email, ConfirmationLink(redirectTo, token)); err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	return nil
}

// ConfirmationLink builds the email confirmation landing URL:
// redirectTo?token=...&type=signup
func ConfirmationLink(redirectTo, token string) string {
	base, _, _ := strings.Cut(redirectTo, "#")
	q := url.Values{}
	q.Set("token", token)
	q.Set("type", "signup")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// SignOut revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, auth.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("service.AuthService.SignOut: %w", err)
	}
	return nil
}

// Refresh exchanges a refresh token for a new session. The old token is
// consumed, so each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (sess domain.AuthSession, err error) {
	defer func() { s.metrics.Auth("refresh", err) }()

	userID, err := s.tokens.Consume(ctx, auth.HashRefreshToken(refreshToken))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Refresh: %w: invalid refresh token", domain.ErrAuth)
	}
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Refresh: %w", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Refresh: %w", authIfMissing(err))
	}
	sess, err = s.newSession(ctx, u, 0)
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("service.AuthService.Refresh: %w", err)
	}
	return sess, nil
}

// User returns the identity behind an access token subject.
func (s *AuthService) User(ctx context.Context, id uuid.UUID) (domain.Identity, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("service.AuthService.User: %w", authIfMissing(err))
	}
	return domain.IdentityOf(u), nil
}

// UpdatePassword sets a new password for the signed-in user.
func (s *AuthService) UpdatePassword(ctx context.Context, id uuid.UUID, password string) (ident domain.Identity, err error) {
	defer func() { s.metrics.Auth("update_password", err) }()

	if err := checkPassword(password); err != nil {
		return domain.Identity{}, fmt.Errorf("service.AuthService.UpdatePassword: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("service.AuthService.UpdatePassword: hash: %w", err)
	}
	u, err := s.users.UpdatePassword(ctx, id, string(hash))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("service.AuthService.UpdatePassword: %w", authIfMissing(err))
	}
	return domain.IdentityOf(u), nil
}

// SendPasswordReset mails a recovery link when email belongs to an account.
// It succeeds for unknown emails too, so callers cannot discover which accounts exist.
// The link carries a short-lived session in its fragment:
// redirectTo#access_token=...&refresh_token=...&type=recovery
func (s *AuthService) SendPasswordReset(ctx context.Context, email, redirectTo string) (err error) {
	defer func() { s.metrics.Auth("recover", err) }()

	if redirectTo == "" {
		redirectTo = s.cfg.ResetRedirect
	}
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		s.log.InfoContext(ctx, "password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("service.AuthService.SendPasswordReset: %w", err)
	}

	sess, err := s.newSession(ctx, u, s.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("service.AuthService.SendPasswordReset: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, u.Email, RecoveryLink(redirectTo, sess)); err != nil {
		return fmt.Errorf("service.AuthService.SendPasswordReset: mail: %w", err)
	}
	return nil
}

// RecoveryLink builds the password-reset landing URL for sess.
func RecoveryLink(redirectTo string, sess domain.AuthSession) string {
	base, _, _ := strings.Cut(redirectTo, "#")
	frag := url.Values{}
	frag.Set("access_token", sess.AccessToken)
	frag.Set("refresh_token", sess.RefreshToken)
	frag.Set("type", "recovery")
	return base + "#" + frag.Encode()
}

// EmailExists reports whether an account uses email. It returns nil when
// the check is disabled; callers must then proceed as if unknown.
func (s *AuthService) EmailExists(ctx context.Context, email string) (*bool, error) {
	if !s.cfg.AllowEmailCheck {
		return nil, nil
	}
	_, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	exists := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("service.AuthService.EmailExists: %w", err)
	}
	return &exists, nil
}

// newSession issues an access token (ttl 0 means the issuer default) and a
// stored refresh token.
func (s *AuthService) newSession(ctx context.Context, u domain.User, ttl time.Duration) (domain.AuthSession, error) {
	ident := domain.IdentityOf(u)
	var (
		access  string
		expires time.Time
		err     error
	)
	if ttl > 0 {
		access, expires, err = s.issuer.IssueWithTTL(ident, ttl)
	} else {
		access, expires, err = s.issuer.Issue(ident)
	}
	if err != nil {
		return domain.AuthSession{}, err
	}
	refresh, hash, err := auth.NewRefreshToken()
	if err != nil {
		return domain.AuthSession{}, err
	}
	if err := s.tokens.Create(ctx, u.ID, hash, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{AccessToken: access, RefreshToken: refresh, ExpiresAt: expires, User: ident}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < domain.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, domain.MinPasswordLength)
	}
	return nil
}

// authIfMissing turns a vanished user into an auth failure.
func authIfMissing(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: user no longer exists", domain.ErrAuth)
	}
	return err
}
