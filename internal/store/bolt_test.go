package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emis/internal/identity"
)

func TestBoltContract(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "emis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.True(t, b.Healthy(context.Background()))
	runContract(t, b)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "emis.db")
	ctx := context.Background()

	b, err := OpenBolt(path)
	require.NoError(t, err)
	_, err = b.CreateParent(ctx, identity.Parent{ID: "p-1", Email: "a@b.com", DateOfBirth: "2001-01-01"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	got, err := b.ParentByLogin(ctx, "a@b.com", "2001-01-01")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "mongo"})
	assert.Error(t, err)

	h, err := Open(context.Background(), Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.True(t, h.Healthy(context.Background()))
}
