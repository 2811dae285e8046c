package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/travel-log/internal/domain"
)

// UserRepo stores accounts. Emails are stored as given; callers normalize.
type UserRepo interface {
	// Create inserts an account. Returns domain.ErrConflict when the email is taken.
	Create(ctx context.Context, email, passwordHash string, confirmed bool) (domain.User, error)

	// GetByEmail returns domain.ErrNotFound for an unknown email.
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// GetByID returns domain.ErrNotFound for an unknown id.
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (domain.User, error)

	// Confirm marks the email confirmed. Confirming twice keeps the first
	// confirmation time. Returns domain.ErrNotFound for an unknown id.
	Confirm(ctx context.Context, id uuid.UUID) (domain.User, error)
}

type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

const userColumns = `id, email, password_hash, confirmed_at, created_at, updated_at`

func (r *pgUserRepo) Create(ctx context.Context, email, passwordHash string, confirmed bool) (domain.User, error) {
	const q = `
		INSERT INTO users (email, password_hash, confirmed_at)
		VALUES (@email, @password_hash, CASE WHEN @confirmed THEN now() END)
		RETURNING ` + userColumns

	args := pgx.NamedArgs{
		"email":         email,
		"password_hash": passwordHash,
		"confirmed":     confirmed,
	}
	u, err := scanUser(r.db.QueryRow(ctx, q, args))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("repo.UserRepo.Create: %w: email already registered", domain.ErrConflict)
		}
		return domain.User{}, fmt.Errorf("repo.UserRepo.Create: %w", err)
	}
	return u, nil
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = @email`

	u, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"email": email}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByEmail: %w", err)
	}
	return u, nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = @id`

	u, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *pgUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (domain.User, error) {
	const q = `
		UPDATE users
		SET password_hash = @password_hash,
		    updated_at    = now()
		WHERE id = @id
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "password_hash": passwordHash}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.UpdatePassword: %w", err)
	}
	return u, nil
}

func (r *pgUserRepo) Confirm(ctx context.Context, id uuid.UUID) (domain.User, error) {
	const q = `
		UPDATE users
		SET confirmed_at = COALESCE(confirmed_at, now()),
		    updated_at   = now()
		WHERE id = @id
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.Confirm: %w", err)
	}
	return u, nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u         domain.User
		id        pgtype.UUID
		confirmed pgtype.Timestamptz
	)
	err := s.Scan(&id, &u.Email, &u.PasswordHash, &confirmed, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	u.ID = uuid.UUID(id.Bytes)
	if confirmed.Valid {
		t := confirmed.Time
		u.ConfirmedAt = &t
	}
	return u, nil
}

// TokenRepo stores refresh tokens by hash. A token is single use: Consume
// deletes it.
type TokenRepo interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error

	// Consume deletes an unexpired token and returns its user.
	// Returns domain.ErrNotFound for unknown, used or expired tokens.
	Consume(ctx context.Context, tokenHash string) (uuid.UUID, error)

	// Revoke deletes a token. Unknown tokens are not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAll deletes every token of userID.
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type pgTokenRepo struct {
	db db
}

// NewTokenRepo constructs a TokenRepo.
func NewTokenRepo(db db) TokenRepo {
	return &pgTokenRepo{db: db}
}

func (r *pgTokenRepo) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	const q = `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES (@token_hash, @user_id, @expires_at)`

	args := pgx.NamedArgs{"token_hash": tokenHash, "user_id": userID, "expires_at": expiresAt}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.TokenRepo.Create: %w", err)
	}
	return nil
}

func (r *pgTokenRepo) Consume(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	const q = `
		DELETE FROM refresh_tokens
		WHERE token_hash = @token_hash AND expires_at > now()
		RETURNING user_id`

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"token_hash": tokenHash}).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("repo.TokenRepo.Consume: %w", domain.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("repo.TokenRepo.Consume: %w", err)
	}
	return uuid.UUID(id.Bytes), nil
}

func (r *pgTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = @token_hash`,
		pgx.NamedArgs{"token_hash": tokenHash}); err != nil {
		return fmt.Errorf("repo.TokenRepo.Revoke: %w", err)
	}
	return nil
}

func (r *pgTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = @user_id`,
		pgx.NamedArgs{"user_id": userID}); err != nil {
		return fmt.Errorf("repo.TokenRepo.RevokeAll: %w", err)
	}
	return nil
}
