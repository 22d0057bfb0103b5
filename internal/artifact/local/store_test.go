package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestNew_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_CreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "nested", "storage")
	_, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_WriteFileAndOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	path, err := store.WriteFile(ctx, "example.com-1700000000000", "example.com-1700000000000.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join("key_value_stores", "example.com-1700000000000"))

	r, err := store.Open(ctx, "example.com-1700000000000", "example.com-1700000000000.csv")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestStore_OpenMissingArtifact(t *testing.T) {
	t.Parallel()

	_, err := newStore(t).Open(context.Background(), "job", "missing.csv")
	require.Error(t, err)
}

func TestStore_SetValueWritesJSON(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.SetValue(ctx, "job", "OUTPUT", []map[string]string{{"url": "https://example.com"}}))

	r, err := store.Open(ctx, "job", "OUTPUT.json")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"url": "https://example.com"`)
}

func TestStore_PathTraversalRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	_, err := store.WriteFile(ctx, "../../etc", "passwd", []byte("x"))
	require.Error(t, err)
}

func TestStore_PurgeQueueState(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	queueDir := filepath.Join(base, "request_queues", "default")
	require.NoError(t, os.MkdirAll(queueDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(queueDir, "req.json"), []byte("{}"), 0o600))

	require.NoError(t, store.PurgeQueueState(context.Background()))
	_, err = os.Stat(queueDir)
	assert.True(t, os.IsNotExist(err))

	// Purging an already clean state is a no-op.
	require.NoError(t, store.PurgeQueueState(context.Background()))
}
