package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/test/helpers"
)

func TestLocalStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)

	key := "backups/user-1/20250301T090000Z.json"
	_, err = store.Upload(ctx, key, strings.NewReader(`{"version":"1"}`), "application/json")
	require.NoError(t, err)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Download(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1"}`, string(data))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Download(ctx, key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestLocalStorage_List(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)

	for _, key := range []string{
		"backups/user-1/b.json",
		"backups/user-1/a.json",
		"backups/user-2/a.json",
		"uploads/catalog.csv",
	} {
		_, err := store.Upload(ctx, key, strings.NewReader("x"), "")
		require.NoError(t, err)
	}

	keys, err := store.List(ctx, "backups/user-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"backups/user-1/a.json", "backups/user-1/b.json"}, keys)

	keys, err = store.List(ctx, "nothing/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalStorage_KeysStayInsideBase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, helpers.TestLogger())
	require.NoError(t, err)

	path, err := store.Upload(ctx, "../../escape.txt", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, dir))

	_, err = store.Upload(ctx, "", strings.NewReader("x"), "")
	assert.Error(t, err)
}
