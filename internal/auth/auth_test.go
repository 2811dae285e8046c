package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travel-log/internal/auth"
	"github.com/pkordes/travel-log/internal/domain"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	s := auth.NewTokenIssuer("secret", "travel-log", time.Hour)
	ident := domain.Identity{ID: uuid.NewString(), Email: "a@example.com"}

	token, expires, err := s.Issue(ident)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, ident, got)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	s := auth.NewTokenIssuer("secret", "travel-log", time.Hour)
	ident := domain.Identity{ID: uuid.NewString()}

	expired, _, err := auth.NewTokenIssuer("secret", "travel-log", -time.Minute).Issue(ident)
	require.NoError(t, err)
	otherKey, _, err := auth.NewTokenIssuer("other", "travel-log", time.Hour).Issue(ident)
	require.NoError(t, err)
	otherIssuer, _, err := auth.NewTokenIssuer("secret", "someone-else", time.Hour).Issue(ident)
	require.NoError(t, err)
	badSubject, _, err := s.Issue(domain.Identity{ID: "not-a-uuid"})
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: ident.ID, Issuer: "travel-log"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"other key":    otherKey,
		"other issuer": otherIssuer,
		"bad subject":  badSubject,
		"alg none":     none,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(token)
			assert.ErrorIs(t, err, domain.ErrAuth)
		})
	}
}

func TestTokenIssuer_Confirmation(t *testing.T) {
	s := auth.NewTokenIssuer("secret", "travel-log", time.Hour)
	ident := domain.Identity{ID: uuid.NewString(), Email: "a@example.com"}

	confirm, _, err := s.IssueConfirmation(ident, time.Hour)
	require.NoError(t, err)
	access, _, err := s.Issue(ident)
	require.NoError(t, err)

	got, err := s.VerifyConfirmation(confirm)
	require.NoError(t, err)
	assert.Equal(t, ident, got)

	_, err = s.Verify(confirm)
	assert.ErrorIs(t, err, domain.ErrAuth, "a confirmation token is not an access token")
	_, err = s.VerifyConfirmation(access)
	assert.ErrorIs(t, err, domain.ErrAuth, "an access token does not confirm an email")

	expired, _, err := s.IssueConfirmation(ident, -time.Minute)
	require.NoError(t, err)
	_, err = s.VerifyConfirmation(expired)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestRefreshToken(t *testing.T) {
	a, hashA, err := auth.NewRefreshToken()
	require.NoError(t, err)
	b, _, err := auth.NewRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, hashA, auth.HashRefreshToken(a))
	assert.NotEqual(t, a, hashA, "the token itself is never the stored value")
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := auth.NewLogMailer(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "https://app/reset#token=x"))

	assert.Contains(t, buf.String(), `"to":"a@example.com"`)
	assert.Contains(t, buf.String(), "https://app/reset#token=x")

	buf.Reset()
	require.NoError(t, m.SendConfirmation(context.Background(), "b@example.com", "https://app/?token=y&type=signup"))
	assert.Contains(t, buf.String(), "email confirmation")
	assert.Contains(t, buf.String(), `"to":"b@example.com"`)
}
