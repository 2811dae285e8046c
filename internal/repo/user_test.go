package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/repo"
	"github.com/pkordes/travel-log/testutil"
)

func TestUserRepo_CreateAndGet(t *testing.T) {
	tx := testutil.NewTx(t)
	r := repo.NewUserRepo(tx)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"

	u, err := r.Create(ctx, email, "hash", false)
	require.NoError(t, err)
	assert.Nil(t, u.ConfirmedAt)

	byEmail, err := r.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)

	_, err = r.Create(ctx, email, "other", true)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = r.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_UpdatePassword(t *testing.T) {
	tx := testutil.NewTx(t)
	r := repo.NewUserRepo(tx)
	ctx := context.Background()
	u, err := r.Create(ctx, uuid.NewString()+"@example.com", "old", true)
	require.NoError(t, err)
	require.NotNil(t, u.ConfirmedAt)

	got, err := r.UpdatePassword(ctx, u.ID, "new")

	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	_, err = r.UpdatePassword(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_Confirm(t *testing.T) {
	tx := testutil.NewTx(t)
	r := repo.NewUserRepo(tx)
	ctx := context.Background()
	u, err := r.Create(ctx, uuid.NewString()+"@example.com", "hash", false)
	require.NoError(t, err)
	require.Nil(t, u.ConfirmedAt)

	got, err := r.Confirm(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ConfirmedAt)

	again, err := r.Confirm(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(*again.ConfirmedAt), "the first confirmation time is kept")

	_, err = r.Confirm(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTokenRepo_SingleUse(t *testing.T) {
	tx := testutil.NewTx(t)
	ctx := context.Background()
	owner := newOwner(t, tx)
	r := repo.NewTokenRepo(tx)

	require.NoError(t, r.Create(ctx, owner, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, r.Create(ctx, owner, "expired", time.Now().Add(-time.Hour)))

	got, err := r.Consume(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	_, err = r.Consume(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "consumed tokens are gone")
	_, err = r.Consume(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.Create(ctx, owner, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, r.RevokeAll(ctx, owner))
	_, err = r.Consume(ctx, "h2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, r.Revoke(ctx, "never-existed"))
}
