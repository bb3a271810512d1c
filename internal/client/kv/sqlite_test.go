package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "client.db")
	s, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_SetGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "decks", []byte(`[{"name":"Spanish"}]`)))

	got, err := s.Get(ctx, "decks")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"name":"Spanish"}]`), got)

	// overwrite under the same key
	require.NoError(t, s.Set(ctx, "decks", []byte(`[]`)))
	got, err = s.Get(ctx, "decks")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)
}

func TestSQLiteStore_GetMissingKey(t *testing.T) {
	s := setupStore(t)

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "client.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "last_sync_timestamp", []byte("2025-06-01T10:00:00Z")))
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "last_sync_timestamp")
	require.NoError(t, err)
	assert.Equal(t, []byte("2025-06-01T10:00:00Z"), got)
}
