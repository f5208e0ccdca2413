package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB)`)
	require.NoError(t, err)
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	got, err := r.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Set(ctx, KeyDeviceID, []byte("dev-1")))
	got, err = r.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []byte("dev-1"), got)

	// upsert overwrites
	require.NoError(t, r.Set(ctx, KeyDeviceID, []byte("dev-2")))
	got, err = r.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []byte("dev-2"), got)

	require.NoError(t, r.Delete(ctx, KeyDeviceID))
	got, err = r.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClear(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyDeviceID, []byte("dev-1")))
	require.NoError(t, r.Set(ctx, KeyStaffToken, []byte("tok")))

	require.NoError(t, r.Clear(ctx))

	got, err := r.Get(ctx, KeyStaffToken)
	require.NoError(t, err)
	assert.Nil(t, got)
}
