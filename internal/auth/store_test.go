package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none", "token-cache.json"))

	data, ok := store.Load()
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestFileStore_SaveCreatesDirectoryAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token-cache.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save([]byte(`{"accounts":[{"username":"first"}]}`)))
	require.NoError(t, store.Save([]byte(`{}`)))

	data, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, `{}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_LoadUnreadableIsAbsent(t *testing.T) {
	// A directory at the cache path cannot be read as a file
	dir := t.TempDir()
	store := NewFileStore(dir)

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestKeyringStore_RoundTrip(t *testing.T) {
	store := NewKeyringStore(keyring.NewArrayKeyring(nil))

	_, ok := store.Load()
	assert.False(t, ok)

	require.NoError(t, store.Save([]byte("blob-1")))
	require.NoError(t, store.Save([]byte("blob-2")))

	data, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "blob-2", string(data))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(nil)
	_, ok := store.Load()
	assert.False(t, ok)

	require.NoError(t, store.Save([]byte("abc")))
	data, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))

	// Returned slices are copies
	data[0] = 'x'
	again, _ := store.Load()
	assert.Equal(t, "abc", string(again))

	boom := errors.New("disk full")
	store.FailSaves(boom)
	assert.ErrorIs(t, store.Save([]byte("def")), boom)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("file", filepath.Join(t.TempDir(), "c.json"), "")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = NewStore("s3", "", "")
	assert.ErrorIs(t, err, errNoStoreBackend)
}
