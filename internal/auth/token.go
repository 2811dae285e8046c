// Package auth issues and verifies the bearer tokens of the travel log API
// and delivers account emails.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pkordes/travel-log/internal/domain"
)

// Claims are the token claims. Subject is the user id. Access tokens carry
// no purpose; an email confirmation token carries PurposeConfirm and is
// accepted only by VerifyConfirmation.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// PurposeConfirm marks email confirmation tokens.
const PurposeConfirm = "confirm"

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewTokenIssuer constructs a TokenIssuer. Tokens expire after ttl.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL is the lifetime of issued access tokens.
func (s *TokenIssuer) TTL() time.Duration { return s.ttl }

// Issue returns a signed access token for ident and its expiry.
func (s *TokenIssuer) Issue(ident domain.Identity) (string, time.Time, error) {
	return s.IssueWithTTL(ident, s.ttl)
}

// IssueWithTTL is Issue with a custom lifetime, used for recovery links.
func (s *TokenIssuer) IssueWithTTL(ident domain.Identity, ttl time.Duration) (string, time.Time, error) {
	return s.sign(ident, ttl, "")
}

// IssueConfirmation returns a token proving control of ident's mailbox.
// It cannot be used as an access token.
func (s *TokenIssuer) IssueConfirmation(ident domain.Identity, ttl time.Duration) (string, time.Time, error) {
	return s.sign(ident, ttl, PurposeConfirm)
}

func (s *TokenIssuer) sign(ident domain.Identity, ttl time.Duration, purpose string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:   ident.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.TokenIssuer.sign: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and validates an access token. Every failure, including
// expiry, wraps domain.ErrAuth.
func (s *TokenIssuer) Verify(tokenString string) (domain.Identity, error) {
	return s.parse(tokenString, "")
}

// VerifyConfirmation validates a token made by IssueConfirmation.
func (s *TokenIssuer) VerifyConfirmation(tokenString string) (domain.Identity, error) {
	return s.parse(tokenString, PurposeConfirm)
}

func (s *TokenIssuer) parse(tokenString, purpose string) (domain.Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, fmt.Errorf("%w: token has expired", domain.ErrAuth)
		}
		return domain.Identity{}, fmt.Errorf("%w: invalid token", domain.ErrAuth)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: invalid token claims", domain.ErrAuth)
	}
	if claims.Purpose != purpose {
		return domain.Identity{}, fmt.Errorf("%w: wrong token type", domain.ErrAuth)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: invalid subject", domain.ErrAuth)
	}
	return domain.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// NewRefreshToken returns a random opaque refresh token and the hash under
// which it is stored.
func NewRefreshToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("auth.NewRefreshToken: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, HashRefreshToken(token), nil
}

// HashRefreshToken is the storage key of a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
