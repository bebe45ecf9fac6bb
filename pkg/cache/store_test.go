package cache

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))
	require.NoError(t, store.Set("a", "3"))

	value, ok, err := store.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", value)

	keys, err := store.Keys()
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete("a"))
	_, ok, err = store.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(Key("ingredients"), `[{"id":"i1"}]`))
	require.NoError(t, store.Set(Key("recipes"), `[]`))

	value, ok, err := store.Get(Key("ingredients"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"i1"}]`, value)

	keys, err := store.Keys()
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{Key("ingredients"), Key("recipes")}, keys)

	require.NoError(t, store.Delete(Key("ingredients")))
	_, ok, err = store.Get(Key("ingredients"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete("never-existed"))
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set("key", "value"))

	second, err := NewFileStore(dir)
	require.NoError(t, err)

	value, ok, err := second.Get("key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", value)
}

func TestFileStoreSanitizesPathSeparators(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	key := "evil" + string(os.PathSeparator) + "key"
	require.NoError(t, store.Set(key, "value"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the key must map to a single file inside the store directory")
}
