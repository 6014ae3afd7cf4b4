package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunFlowStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	flow := ports.ContractFlow("iso")
	require.NoError(t, store.Save(ctx, flow))

	flow.Nodes[0].Settings["value_to_add"] = flow.Nodes[2].Settings["payload"]
	loaded, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "int", loaded.Nodes[0].Settings["value_to_add"].Type)

	loaded.Nodes[2].Settings["payload"].Value.(map[string]any)["count"] = int64(99)
	again, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Nodes[2].Settings["payload"].Value.(map[string]any)["count"])
	assert.False(t, again.UpdatedAt.IsZero())
}
