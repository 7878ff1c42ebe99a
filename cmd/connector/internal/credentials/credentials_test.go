package credentials

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "keyring.json")
	store, err := Open(BackendFile, path, "master")
	require.NoError(t, err)

	_, err = store.Get("orders")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Set("orders", "s3cret"))
	require.NoError(t, store.Set("billing", "other"))

	got, err := store.Get("orders")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	// A second store over the same file sees the entries.
	reopened, _ := Open(BackendFile, path, "master")
	got, err = reopened.Get("billing")
	require.NoError(t, err)
	assert.Equal(t, "other", got)

	wrongKey, _ := Open(BackendFile, path, "not-the-master")
	_, err = wrongKey.Get("orders")
	assert.Error(t, err)

	require.NoError(t, store.Delete("orders"))
	require.NoError(t, store.Delete("orders"))
	_, err = store.Get("orders")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSystemStore(t *testing.T) {
	keyring.MockInit()

	store, err := Open(BackendAuto, filepath.Join(t.TempDir(), "unused.json"), "")
	require.NoError(t, err)
	assert.IsType(t, systemStore{}, store)

	_, err = store.Get("orders")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Set("orders", "s3cret"))
	got, err := store.Get("orders")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, store.Delete("orders"))
	assert.NoError(t, store.Delete("orders"))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Backend("vault"), "", "")
	assert.Error(t, err)
}
