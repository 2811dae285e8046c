package testutil_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travel-log/testutil"
)

var migratedTables = []string{"users", "places", "refresh_tokens"}

// TestMigrations resets the schema, migrates up, checks the tables and the
// owner cascade, then migrates back down to nothing.
func TestMigrations(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	p, err := testutil.NewMigrator(db)
	require.NoError(t, err)

	// Another package's TestMain may already have migrated the shared database.
	_, err = p.DownTo(ctx, 0)
	require.NoError(t, err, "initial reset")

	results, err := p.Up(ctx)
	require.NoError(t, err, "goose up")
	assert.Len(t, results, len(migratedTables), "one migration per table")
	for _, table := range migratedTables {
		assert.True(t, tableExists(t, db, table), "expected table %q", table)
	}

	assertOwnerCascade(t, db)

	_, err = p.DownTo(ctx, 0)
	require.NoError(t, err, "goose down-to 0")
	for _, table := range migratedTables {
		assert.False(t, tableExists(t, db, table), "expected table %q to be dropped", table)
	}

	// Leave the schema migrated for packages that run afterwards.
	_, err = p.Up(ctx)
	require.NoError(t, err)
}

// assertOwnerCascade checks that deleting a user removes their places and
// refresh tokens.
func assertOwnerCascade(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	var userID string
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ('cascade@example.com', 'x') RETURNING id`,
	).Scan(&userID))
	_, err := db.ExecContext(ctx, `INSERT INTO places (owner_id, name, status) VALUES ($1, 'Bled', 'visited')`, userID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM places WHERE owner_id = $1`, userID).Scan(&n))
	assert.Zero(t, n)
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`
	var exists bool
	require.NoError(t, db.QueryRowContext(context.Background(), q, table).Scan(&exists))
	return exists
}
