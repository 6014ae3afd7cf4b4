package loam

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/ports"
)

const contractFlow = `---
name: contract orders
nodes:
  - id: inc
    type: add
    settings:
      value_to_add: {type: int, value: 4}
  - id: out
    type: record
    settings:
      key: result
  - id: start
    type: manual_start
    settings:
      payload:
        type: object
        value:
          count: 1
    layout: {x: 10, y: 20, label: Start}
connections:
  - from: {node: inc, name: result, type: int}
    to: {node: out, name: value, type: any}
    type: any
  - from: {node: start, name: count, type: int}
    to: {node: inc, name: value, type: int}
    type: int
---
Adds four to the incoming count.
`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, dir, files)
	return New(loam.NewTypedRepository[FlowMetadata](repo))
}

func TestLoader_Contract(t *testing.T) {
	loader := newLoader(t, map[string]string{"orders.md": contractFlow})
	ports.RunFlowLoaderContract(t, loader, map[string]*document.Flow{
		"orders": ports.ContractFlow("orders"),
	})
}

func TestLoader_DescriptionFromContent(t *testing.T) {
	loader := newLoader(t, map[string]string{"orders.md": contractFlow})

	f, err := loader.LoadFlow(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "Adds four to the incoming count.", f.Description)

	key := f.Nodes[1].Settings["key"]
	assert.Equal(t, "string", key.Type, "bare values get an inferred type")
}

func TestLoader_ListFlows_NormalizesIDs(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"start.md": `---
id: start.md
---
`,
		"choice.json": `{"id": "choice.json", "nodes": []}`,
		"implicit.md": `---
name: implicit
---
ID is implied from filename`,
	})

	ids, err := loader.ListFlows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"choice", "implicit", "start"}, ids)
}

func TestLoader_ListFlows_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"foo.md": `---
id: foo
---
`,
		"foo.json": `{"id": "foo"}`,
	})

	_, err := loader.ListFlows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestLoader_Watch(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t)
	loader := New(loam.NewTypedRepository[FlowMetadata](repo))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := loader.Watch(ctx)
	require.NoError(t, err)

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	testutils.WriteFiles(t, dir, map[string]string{"orders.md": contractFlow})

	select {
	case id := <-changes:
		assert.Equal(t, "orders", id)
	case <-ctx.Done():
		t.Fatal("no change notification received")
	}
}

func TestLoader_BareNumbers(t *testing.T) {
	loader := newLoader(t, map[string]string{"inc.json": `{
  "id": "inc",
  "nodes": [
    {"id": "inc", "type": "add", "settings": {"value_to_add": 4}},
    {"id": "start", "type": "manual_start", "settings": {"payload": {"count": 1, "ratio": 0.5}}}
  ]
}`})

	f, err := loader.LoadFlow(context.Background(), "inc")
	require.NoError(t, err)

	add := f.Nodes[0].Settings["value_to_add"]
	assert.Equal(t, document.Value{Type: "int", Value: int64(4)}, add)

	payload := f.Nodes[1].Settings["payload"]
	assert.Equal(t, "object", payload.Type)
	assert.Equal(t, map[string]any{"count": int64(1), "ratio": 0.5}, payload.Value)
}
