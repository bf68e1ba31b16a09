package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_CreatesStorageTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer db.Close()

	require.True(t, tableExists(t, db, "storage"))
	require.True(t, tableExists(t, db, "goose_db_version"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	require.True(t, tableExists(t, db, "storage"))
}

func TestOpen_SharedFileSeenByTwoHandles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")

	a, err := Open(ctx, path)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, path)
	require.NoError(t, err)
	defer b.Close()

	_, err = a.ExecContext(ctx, `INSERT INTO storage(scope, key, value) VALUES ('local', 'token', 'T1')`)
	require.NoError(t, err)

	var v string
	require.NoError(t, b.QueryRowContext(ctx, `SELECT value FROM storage WHERE scope='local' AND key='token'`).Scan(&v))
	require.Equal(t, "T1", v)
}
