package inventory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutAndGet(t *testing.T) {
	store := openTestStore(t)

	server := domain.ServerInfo{AppName: "cursor", Name: "filesystem", Version: "1.0.0"}
	tools := []domain.ToolDescriptor{
		{Name: "read_file", Description: "Read a file."},
		{Name: "list_dir", Description: "List a directory."},
	}

	record, err := store.Put(server, tools)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.WithinDuration(t, time.Now().UTC(), record.RegisteredAt, 5*time.Second)

	got, err := store.Get("cursor", "filesystem")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Len(t, got.Tools, 2)
	assert.Equal(t, "read_file", got.Tools[0].Name)
}

func TestStore_PutReplacesSnapshot(t *testing.T) {
	store := openTestStore(t)
	server := domain.ServerInfo{AppName: "cursor", Name: "filesystem"}

	_, err := store.Put(server, []domain.ToolDescriptor{{Name: "read_file"}, {Name: "delete_file"}})
	require.NoError(t, err)
	_, err = store.Put(server, []domain.ToolDescriptor{{Name: "read_file"}})
	require.NoError(t, err)

	got, err := store.Get("cursor", "filesystem")
	require.NoError(t, err)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "read_file", got.Tools[0].Name)
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("cursor", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Put(domain.ServerInfo{AppName: "cursor", Name: "alpha"}, nil)
	require.NoError(t, err)
	_, err = store.Put(domain.ServerInfo{AppName: "claude", Name: "beta"}, nil)
	require.NoError(t, err)

	records, err := store.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStore_Closed(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Put(domain.ServerInfo{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List()
	assert.ErrorIs(t, err, ErrStoreClosed)
}
