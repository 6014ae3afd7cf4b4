package ports

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// ContractFlow returns a small flow document used by the contract suites:
// manual_start {"count": 1} -> add(4) -> record. Nodes and connections are
// listed in the order Encode produces.
func ContractFlow(id string) *document.Flow {
	return &document.Flow{
		ID:   id,
		Name: "contract " + id,
		Nodes: []document.Node{
			{
				ID:   "inc",
				Type: "add",
				Settings: map[string]document.Value{
					"value_to_add": {Type: "int", Value: int64(4)},
				},
			},
			{
				ID:   "out",
				Type: "record",
				Settings: map[string]document.Value{
					"key": {Type: "string", Value: "result"},
				},
			},
			{
				ID:   "start",
				Type: "manual_start",
				Settings: map[string]document.Value{
					"payload": {Type: "object", Value: map[string]any{"count": int64(1)}},
				},
				Layout: &graph.Layout{X: 10, Y: 20, Label: "Start"},
			},
		},
		Connections: []document.Connection{
			{From: document.Endpoint{Node: "inc", Name: "result", Type: "int"}, To: document.Endpoint{Node: "out", Name: "value", Type: "any"}, Type: "any"},
			{From: document.Endpoint{Node: "start", Name: "count", Type: "int"}, To: document.Endpoint{Node: "inc", Name: "value", Type: "int"}, Type: "int"},
		},
	}
}

// AssertSameFlow compares two flow documents, treating setting values as
// equal when they box to the same value.
func AssertSameFlow(t *testing.T, want, got *document.Flow) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	require.Len(t, got.Nodes, len(want.Nodes))

	for i, wn := range want.Nodes {
		gn := got.Nodes[i]
		assert.Equal(t, wn.ID, gn.ID)
		assert.Equal(t, wn.Type, gn.Type)
		assert.True(t, cmp.Equal(wn.Layout, gn.Layout), "layout of %s: %s", wn.ID, cmp.Diff(wn.Layout, gn.Layout))
		require.Len(t, gn.Settings, len(wn.Settings), "settings of %s", wn.ID)
		for name, wv := range wn.Settings {
			wb, err := wv.Box(types.Default())
			require.NoError(t, err)
			gb, err := gn.Settings[name].Box(types.Default())
			require.NoError(t, err, "setting %s.%s", wn.ID, name)
			assert.True(t, wb.Equal(gb), "setting %s.%s: want %s, got %s", wn.ID, name, wb, gb)
		}
	}
	if diff := cmp.Diff(want.Connections, got.Connections); diff != "" {
		t.Errorf("connections mismatch (-want +got):\n%s", diff)
	}
}

// RunFlowStoreContract runs a suite of tests to verify that a FlowStore implementation
// adheres to the defined interface contract.
func RunFlowStoreContract(t *testing.T, store FlowStore) {
	ctx := context.Background()
	flowID := "contract-flow-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		flow := ContractFlow(flowID)
		require.NoError(t, store.Save(ctx, flow), "Save should not return error")

		loaded, err := store.Load(ctx, flowID)
		require.NoError(t, err, "Load should not return error")
		AssertSameFlow(t, flow, loaded)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		flow := ContractFlow(flowID)
		flow.Name = "renamed"
		require.NoError(t, store.Save(ctx, flow))

		loaded, err := store.Load(ctx, flowID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", loaded.Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+flowID)
		assert.ErrorIs(t, err, document.ErrFlowNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, ContractFlow(flowID)))

		require.NoError(t, store.Delete(ctx, flowID), "Delete should not return error")

		_, err := store.Load(ctx, flowID)
		assert.ErrorIs(t, err, document.ErrFlowNotFound, "Load after Delete should return ErrFlowNotFound")
		assert.NoError(t, store.Delete(ctx, flowID), "Delete of a missing flow should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := flowID + "-1"
		id2 := flowID + "-2"
		require.NoError(t, store.Save(ctx, ContractFlow(id1)))
		require.NoError(t, store.Save(ctx, ContractFlow(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunFlowLoaderContract checks that loader serves exactly the flows in want.
func RunFlowLoaderContract(t *testing.T, loader FlowLoader, want map[string]*document.Flow) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadFlow_Success", func(t *testing.T) {
		for id, flow := range want {
			got, err := loader.LoadFlow(ctx, id)
			require.NoError(t, err, "flow %s", id)
			AssertSameFlow(t, flow, got)
		}
	})

	t.Run("LoadFlow_NotFound", func(t *testing.T) {
		_, err := loader.LoadFlow(ctx, "non-existent-flow")
		assert.ErrorIs(t, err, document.ErrFlowNotFound)
	})

	t.Run("ListFlows", func(t *testing.T) {
		ids, err := loader.ListFlows(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, len(want))
		for id := range want {
			assert.Contains(t, ids, id)
		}
	})
}
