package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestFileStore_Contract(t *testing.T) {
	for _, ext := range []string{".json", ".yaml", ".lfb"} {
		t.Run(ext, func(t *testing.T) {
			ports.RunFlowStoreContract(t, file.New(t.TempDir(), file.WithFormat(ext)))
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir, file.WithFormat(".yaml"))

	require.NoError(t, store.Save(ctx, ports.ContractFlow("orders")))

	_, err := os.Stat(filepath.Join(dir, "orders.yaml"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, ids)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store := file.New(t.TempDir())
	_, err := store.Load(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Save(context.Background(), ports.ContractFlow("a/b")))
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
