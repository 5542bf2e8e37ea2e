package toml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Version int      `toml:"version"`
	Names   []string `toml:"names"`
}

func TestStoreSetGetRoundtrip(t *testing.T) {
	t.Parallel()

	store, err := NewStoreAt(t.TempDir())
	require.NoError(t, err)

	in := payload{Version: 1, Names: []string{"a", "b"}}
	require.NoError(t, store.Set(context.Background(), "accounts", in))

	var out payload
	found, err := store.Get(context.Background(), "accounts", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestStoreGetMissingKey(t *testing.T) {
	t.Parallel()

	store, err := NewStoreAt(t.TempDir())
	require.NoError(t, err)

	var out payload
	found, err := store.Get(context.Background(), "assignments", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreSetOverwrites(t *testing.T) {
	t.Parallel()

	store, err := NewStoreAt(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "rotation_index", payload{Version: 1}))
	require.NoError(t, store.Set(context.Background(), "rotation_index", payload{Version: 1, Names: []string{"x"}}))

	var out payload
	found, err := store.Get(context.Background(), "rotation_index", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"x"}, out.Names)
}

func TestStoreWritesWithRestrictedMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStoreAt(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "switch_config", payload{Version: 1}))

	info, err := os.Stat(filepath.Join(dir, "switch_config.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreLeavesNoTempFilesBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStoreAt(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), "accounts", payload{Version: 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "accounts.toml", entries[0].Name())
}
