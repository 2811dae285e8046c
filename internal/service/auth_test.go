package service_test

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pkordes/travel-log/internal/auth"
	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/repo"
	"github.com/pkordes/travel-log/internal/service"
)

// ---- mocks -----------------------------------------------------------------

// memUsers is an in-memory repo.UserRepo keyed by email.
type memUsers struct {
	mu    sync.Mutex
	byKey map[string]domain.User
}

func newMemUsers() *memUsers { return &memUsers{byKey: map[string]domain.User{}} }

func (m *memUsers) Create(_ context.Context, email, hash string, confirmed bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byKey[email]; ok {
		return domain.User{}, domain.ErrConflict
	}
	u := domain.User{ID: uuid.New(), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	if confirmed {
		now := time.Now()
		u.ConfirmedAt = &now
	}
	m.byKey[email] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byKey[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byKey {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, u := range m.byKey {
		if u.ID == id {
			u.PasswordHash = hash
			m.byKey[k] = u
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) Confirm(_ context.Context, id uuid.UUID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, u := range m.byKey {
		if u.ID == id {
			if u.ConfirmedAt == nil {
				now := time.Now()
				u.ConfirmedAt = &now
				m.byKey[k] = u
			}
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

var _ repo.UserRepo = (*memUsers)(nil)

// memTokens is an in-memory repo.TokenRepo keyed by token hash.
type memTokens struct {
	mu     sync.Mutex
	owners map[string]uuid.UUID
}

func newMemTokens() *memTokens { return &memTokens{owners: map[string]uuid.UUID{}} }

func (m *memTokens) Create(_ context.Context, userID uuid.UUID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[hash] = userID
	return nil
}

func (m *memTokens) Consume(_ context.Context, hash string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.owners[hash]
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	delete(m.owners, hash)
	return id, nil
}

func (m *memTokens) Revoke(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, hash)
	return nil
}

func (m *memTokens) RevokeAll(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, id := range m.owners {
		if id == userID {
			delete(m.owners, h)
		}
	}
	return nil
}

var _ repo.TokenRepo = (*memTokens)(nil)

type mockMailer struct {
	sendPasswordReset func(ctx context.Context, email, link string) error
	sendConfirmation  func(ctx context.Context, email, link string) error
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	return m.sendPasswordReset(ctx, email, link)
}

func (m *mockMailer) SendConfirmation(ctx context.Context, email, link string) error {
	return m.sendConfirmation(ctx, email, link)
}

var _ auth.Mailer = (*mockMailer)(nil)

// ---- helpers ---------------------------------------------------------------

type authFixture struct {
	svc    *service.AuthService
	users  *memUsers
	tokens *memTokens
	issuer *auth.TokenIssuer
	links  []string
	// confirmLinks collects mailed confirmation links.
	confirmLinks []string
}

func newAuthFixture(t *testing.T, mutate func(*service.AuthConfig)) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  newMemUsers(),
		tokens: newMemTokens(),
		issuer: auth.NewTokenIssuer("test-secret", "travel-log", time.Hour),
	}
	cfg := service.AuthConfig{
		AutoConfirm:     true,
		AllowEmailCheck: true,
		RefreshTTL:      24 * time.Hour,
		ResetTTL:        10 * time.Minute,
		ResetRedirect:   "http://app.test/reset",
		ConfirmRedirect: "http://app.test/welcome",
		BcryptCost:      bcrypt.MinCost,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mailer := &mockMailer{
		sendPasswordReset: func(_ context.Context, _, link string) error {
			f.links = append(f.links, link)
			return nil
		},
		sendConfirmation: func(_ context.Context, _, link string) error {
			f.confirmLinks = append(f.confirmLinks, link)
			return nil
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = service.NewAuthService(f.users, f.tokens, f.issuer, mailer, cfg, nil, log)
	return f
}

// ---- SignUp ----------------------------------------------------------------

func TestAuthService_SignUp_AutoConfirmReturnsSession(t *testing.T) {
	f := newAuthFixture(t, nil)

	res, err := f.svc.SignUp(context.Background(), " Ana@Example.com ", "secret1")

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", res.User.Email)
	require.True(t, res.SessionPresent())
	ident, err := f.issuer.Verify(res.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User, ident)
}

func TestAuthService_SignUp_ConfirmationRequired(t *testing.T) {
	f := newAuthFixture(t, func(c *service.AuthConfig) { c.AutoConfirm = false })

	res, err := f.svc.SignUp(context.Background(), "ana@example.com", "secret1")

	require.NoError(t, err)
	assert.False(t, res.SessionPresent())

	_, err = f.svc.SignIn(context.Background(), "ana@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrAuth, "unconfirmed accounts cannot sign in")
}

func TestAuthService_SignUp_ConfirmThenSignIn(t *testing.T) {
	f := newAuthFixture(t, func(c *service.AuthConfig) { c.AutoConfirm = false })
	ctx := context.Background()

	res, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.Len(t, f.confirmLinks, 1)
	_, err = f.svc.SignIn(ctx, "ana@example.com", "secret1")
	require.ErrorIs(t, err, domain.ErrAuth)

	link, err := url.Parse(f.confirmLinks[0])
	require.NoError(t, err)
	assert.Equal(t, "app.test", link.Host)
	assert.Equal(t, "/welcome", link.Path)
	assert.Equal(t, "signup", link.Query().Get("type"))

	sess, err := f.svc.Confirm(ctx, link.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, res.User, sess.User)
	ident, err := f.issuer.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User, ident)

	_, err = f.svc.SignIn(ctx, "ana@example.com", "secret1")
	assert.NoError(t, err)
}

func TestAuthService_Confirm_Rejects(t *testing.T) {
	f := newAuthFixture(t, func(c *service.AuthConfig) { c.AutoConfirm = false })
	ctx := context.Background()
	res, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	access, _, err := f.issuer.Issue(res.User)
	require.NoError(t, err)
	ghost, _, err := f.issuer.IssueConfirmation(domain.Identity{ID: uuid.NewString(), Email: "g@b.co"}, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"access token": access,
		"unknown user": ghost,
		"garbage":      "nope",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Confirm(ctx, token)
			assert.ErrorIs(t, err, domain.ErrAuth)
		})
	}
	_, err = f.svc.SignIn(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestAuthService_ResendConfirmation(t *testing.T) {
	f := newAuthFixture(t, func(c *service.AuthConfig) { c.AutoConfirm = false })
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResendConfirmation(ctx, "Ana@example.com", "http://other.test/hi"))
	require.Len(t, f.confirmLinks, 2)
	assert.True(t, strings.HasPrefix(f.confirmLinks[1], "http://other.test/hi?token="))

	require.NoError(t, f.svc.ResendConfirmation(ctx, "ghost@example.com", ""))
	assert.Len(t, f.confirmLinks, 2, "unknown emails get nothing")

	link, err := url.Parse(f.confirmLinks[1])
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, link.Query().Get("token"))
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendConfirmation(ctx, "ana@example.com", ""))
	assert.Len(t, f.confirmLinks, 2, "confirmed accounts get nothing")
}

func TestConfirmationLink(t *testing.T) {
	assert.Equal(t, "http://a.test/w?token=t&type=signup", service.ConfirmationLink("http://a.test/w#x", "t"))
	assert.Equal(t, "http://a.test/w?lang=en&token=t&type=signup", service.ConfirmationLink("http://a.test/w?lang=en", "t"))
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.SignUp(context.Background(), "not-an-email", "secret1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.SignUp(context.Background(), "a@b.co", "12345")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_SignUp_Duplicate(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	_, err = f.svc.SignUp(context.Background(), "A@B.co", "secret1")

	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ---- SignIn / Refresh / SignOut --------------------------------------------

func TestAuthService_SignIn(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	sess, err := f.svc.SignIn(context.Background(), "A@b.co", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.RefreshToken)

	_, err = f.svc.SignIn(context.Background(), "a@b.co", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = f.svc.SignIn(context.Background(), "nobody@b.co", "secret1")
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestAuthService_Refresh_IsSingleUse(t *testing.T) {
	f := newAuthFixture(t, nil)
	res, err := f.svc.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	next, err := f.svc.Refresh(context.Background(), res.Session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Session.RefreshToken, next.RefreshToken)

	_, err = f.svc.Refresh(context.Background(), res.Session.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestAuthService_SignOut_RevokesRefreshToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	res, err := f.svc.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(context.Background(), res.Session.RefreshToken))
	require.NoError(t, f.svc.SignOut(context.Background(), ""))

	_, err = f.svc.Refresh(context.Background(), res.Session.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

// ---- password reset --------------------------------------------------------

func TestAuthService_SendPasswordReset(t *testing.T) {
	f := newAuthFixture(t, nil)
	res, err := f.svc.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.SendPasswordReset(context.Background(), "a@b.co", ""))
	require.Len(t, f.links, 1)

	base, frag, ok := strings.Cut(f.links[0], "#")
	require.True(t, ok)
	assert.Equal(t, "http://app.test/reset", base)
	vals, err := url.ParseQuery(frag)
	require.NoError(t, err)
	assert.Equal(t, "recovery", vals.Get("type"))

	ident, err := f.issuer.Verify(vals.Get("access_token"))
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, ident.ID)

	id := uuid.MustParse(ident.ID)
	_, err = f.svc.UpdatePassword(context.Background(), id, "newsecret")
	require.NoError(t, err)
	_, err = f.svc.SignIn(context.Background(), "a@b.co", "newsecret")
	assert.NoError(t, err)
}

func TestAuthService_SendPasswordReset_UnknownEmailSucceeds(t *testing.T) {
	f := newAuthFixture(t, nil)

	err := f.svc.SendPasswordReset(context.Background(), "ghost@b.co", "http://x.test/r")

	require.NoError(t, err)
	assert.Empty(t, f.links)
}

func TestAuthService_UpdatePassword_TooShort(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.UpdatePassword(context.Background(), uuid.New(), "123")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecoveryLink_ReplacesExistingFragment(t *testing.T) {
	link := service.RecoveryLink("http://a.test/r#old", domain.AuthSession{AccessToken: "acc", RefreshToken: "ref"})

	assert.Equal(t, "http://a.test/r#access_token=acc&refresh_token=ref&type=recovery", link)
}

// ---- EmailExists -----------------------------------------------------------

func TestAuthService_EmailExists(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)

	got, err := f.svc.EmailExists(context.Background(), "A@B.CO")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, *got)

	got, err = f.svc.EmailExists(context.Background(), "c@d.co")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestAuthService_EmailExists_Disabled(t *testing.T) {
	f := newAuthFixture(t, func(c *service.AuthConfig) { c.AllowEmailCheck = false })

	got, err := f.svc.EmailExists(context.Background(), "a@b.co")

	require.NoError(t, err)
	assert.Nil(t, got)
}
