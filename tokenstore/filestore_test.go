package tokenstore_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tasknest/go-tasknest-client/tokenstore"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := tokenstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("access-123", "refresh-456"))

	tokens, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "access-123", tokens.Access)
	require.Equal(t, "refresh-456", tokens.Refresh)
}

func TestFileStoreLoadBeforeSave(t *testing.T) {
	store, err := tokenstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load()
	require.ErrorIs(t, err, tokenstore.ErrNoTokens)
}

func TestFileStoreClear(t *testing.T) {
	store, err := tokenstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("a", "r"))
	require.NoError(t, store.Clear())

	_, err = store.Load()
	require.ErrorIs(t, err, tokenstore.ErrNoTokens)

	// Clearing an already-empty store is not an error.
	require.NoError(t, store.Clear())
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := tokenstore.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save("persisted-access", "persisted-refresh"))

	reopened, err := tokenstore.NewFileStore(dir)
	require.NoError(t, err)

	tokens, err := reopened.Load()
	require.NoError(t, err)
	require.Equal(t, "persisted-access", tokens.Access)
	require.Equal(t, "persisted-refresh", tokens.Refresh)
}

func TestFileStoreAcceptsAnyString(t *testing.T) {
	store, err := tokenstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	// No shape validation: arbitrary strings round-trip unchanged.
	require.NoError(t, store.Save("definitely not a jwt \x00 with bytes", `{"nested":"json"}`))
	tokens, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "definitely not a jwt \x00 with bytes", tokens.Access)
}

func TestFileStorePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	dir := t.TempDir()
	store, err := tokenstore.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save("a", "r"))

	info, err := os.Stat(filepath.Join(dir, "tokens.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
