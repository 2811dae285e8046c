package domain

import (
	"time"

	"github.com/google/uuid"
)

// MinPasswordLength is the shortest password accepted at sign-up and reset.
const MinPasswordLength = 6

// User is an account in the auth backend. PasswordHash is a bcrypt hash and
// is never serialized.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Identity is the public view of a signed-in user. Its ID is the owner scope
// of the remote place rows.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IdentityOf returns the public identity of u.
func IdentityOf(u User) Identity {
	return Identity{ID: u.ID.String(), Email: u.Email}
}

// AuthSession is an access/refresh token pair issued at sign-in.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// SignUpResult is returned by sign-up. Session is nil when the account must
// be confirmed before it can sign in.
type SignUpResult struct {
	User    Identity     `json:"user"`
	Session *AuthSession `json:"session,omitempty"`
}

// SessionPresent reports whether sign-up also signed the user in.
func (r SignUpResult) SessionPresent() bool {
	return r.Session != nil
}
