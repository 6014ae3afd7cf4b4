package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/types"
)

// assertConsistent checks that the per-node index is exactly the connection
// set filtered by endpoint.
func assertConsistent(t *testing.T, g *Graph) {
	t.Helper()
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id := range g.nodes {
		want := make(map[ConnectionKey]struct{})
		for k := range g.conns {
			if k.FromNode == id || k.ToNode == id {
				want[k] = struct{}{}
			}
		}
		got := g.index[id]
		if got == nil {
			got = map[ConnectionKey]struct{}{}
		}
		assert.Equal(t, want, got, "index of %s", id)
	}
	for id := range g.index {
		_, ok := g.nodes[id]
		assert.True(t, ok, "index entry for missing node %s", id)
	}
}

func mustAdd(t *testing.T, g *Graph, nt NodeType) *Node {
	t.Helper()
	n, err := g.AddNode(nt)
	require.NoError(t, err)
	return n
}

func mustConnect(t *testing.T, g *Graph, from *Node, out string, to *Node, in string) Connection {
	t.Helper()
	c, err := g.Connect(from.ID(), out, to.ID(), in)
	require.NoError(t, err)
	return c
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}

func TestGraph_LinearOrder(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	proc := mustAdd(t, g, newRenamer())
	end := mustAdd(t, g, newSink())

	mustConnect(t, g, start, "value", proc, "in")
	mustConnect(t, g, proc, "x", end, "value")
	assertConsistent(t, g)

	order, ok := g.ExecutionOrder()
	require.True(t, ok)
	assert.Equal(t, []string{start.ID(), proc.ID(), end.ID()}, ids(order))
	assert.Empty(t, g.Validate())
}

func TestGraph_CycleIsInvalid(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	m := mustAdd(t, g, newMerge())
	n := mustAdd(t, g, newMerge())
	end := mustAdd(t, g, newSink())

	mustConnect(t, g, start, "value", m, "a")
	mustConnect(t, g, m, "out", n, "a")
	mustConnect(t, g, n, "out", end, "value")

	_, ok := g.ExecutionOrder()
	require.True(t, ok)

	mustConnect(t, g, n, "out", m, "b")
	assertConsistent(t, g)

	_, ok = g.ExecutionOrder()
	assert.False(t, ok)
	assert.Contains(t, g.Validate(), Issue{Message: "flow contains a cycle or connections that cannot be ordered"})
}

func TestGraph_RequiresStartAndEnd(t *testing.T) {
	g := New()
	p := mustAdd(t, g, newRenamer())
	end := mustAdd(t, g, newSink())
	mustConnect(t, g, p, "x", end, "value")

	_, ok := g.ExecutionOrder()
	assert.False(t, ok)
	assert.Contains(t, g.Validate(), Issue{Message: "no connected start node"})

	g = New()
	start := mustAdd(t, g, newIntStart())
	p = mustAdd(t, g, newRenamer())
	mustConnect(t, g, start, "value", p, "in")

	_, ok = g.ExecutionOrder()
	assert.False(t, ok)
	assert.Contains(t, g.Validate(), Issue{Message: "no end node is reachable"})
}

func TestGraph_IsolatedNodesIgnored(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	end := mustAdd(t, g, newSink())
	lonely := mustAdd(t, g, newRenamer())
	mustAdd(t, g, newIntStart())

	mustConnect(t, g, start, "value", end, "value")

	order, ok := g.ExecutionOrder()
	require.True(t, ok)
	assert.NotContains(t, ids(order), lonely.ID())
	assert.Len(t, order, 2)
	assert.Empty(t, g.Validate())
}

func TestGraph_AddConnectionRejections(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	other := mustAdd(t, g, newIntStart())
	p := mustAdd(t, g, newRenamer())

	mustConnect(t, g, start, "value", p, "in")

	_, err := g.Connect(other.ID(), "value", p.ID(), "in")
	assert.ErrorIs(t, err, ErrInputOccupied)

	_, err = g.Connect("ghost", "value", p.ID(), "in")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = g.Connect(other.ID(), "nope", p.ID(), "in")
	assert.ErrorIs(t, err, ErrConnectorNotFound)

	free := mustAdd(t, g, newRenamer())
	out, _ := other.Output("value")
	in, _ := free.Input("in")
	err = g.AddConnection(Connection{From: out, To: in, Type: types.String})
	assert.ErrorIs(t, err, ErrIncompatibleTypes)

	assert.Len(t, g.Connections(), 1)
	assertConsistent(t, g)
}

func TestGraph_IncompatibleSourceType(t *testing.T) {
	g := New()
	r := mustAdd(t, g, newRelay())
	p := mustAdd(t, g, newRenamer())

	_, err := g.Connect(r.ID(), "value", p.ID(), "in")
	assert.ErrorIs(t, err, ErrIncompatibleTypes)
	assert.Empty(t, g.Connections())
}

func TestGraph_ModifyPurgesDanglingConnections(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	a := mustAdd(t, g, newRenamer())
	b := mustAdd(t, g, newSink())

	mustConnect(t, g, start, "value", a, "in")
	mustConnect(t, g, a, "x", b, "value")
	require.Len(t, g.ConnectionsFor(b.ID()), 1)

	next, err := g.ModifyNode(a.ID(), func(n *Node) (*Node, error) {
		return n.WithSetting("output", types.StringValue("y"))
	})
	require.NoError(t, err)

	_, hasX := next.Output("x")
	assert.False(t, hasX)
	assert.Empty(t, g.ConnectionsFor(b.ID()))
	assert.Len(t, g.ConnectionsFor(a.ID()), 1)
	assert.Len(t, g.Connections(), 1)
	assertConsistent(t, g)

	cur, _ := g.Node(a.ID())
	assert.Same(t, next, cur)
	assert.Equal(t, a.ID(), cur.ID())
}

func TestGraph_ModifyRejectsNil(t *testing.T) {
	g := New()
	a := mustAdd(t, g, newRenamer())

	_, err := g.ModifyNode(a.ID(), func(*Node) (*Node, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrNilNode)

	_, err = g.ModifyNode("ghost", func(n *Node) (*Node, error) { return n, nil })
	assert.ErrorIs(t, err, ErrNodeNotFound)

	cur, _ := g.Node(a.ID())
	assert.Same(t, a, cur)
}

func TestGraph_InputHintsPropagate(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	r := mustAdd(t, g, newRelay())
	p := mustAdd(t, g, newRenamer())
	end := mustAdd(t, g, newSink())

	in := mustConnect(t, g, start, "value", r, "value")
	relayed, _ := g.Node(r.ID())
	out, _ := relayed.Output("value")
	assert.Same(t, types.Int, out.Type)

	mustConnect(t, g, r, "value", p, "in")
	mustConnect(t, g, p, "x", end, "value")
	_, ok := g.ExecutionOrder()
	require.True(t, ok)

	require.NoError(t, g.RemoveConnection(in))
	relayed, _ = g.Node(r.ID())
	out, _ = relayed.Output("value")
	assert.Same(t, types.Any, out.Type)
	for _, c := range g.Connections() {
		assert.NotEqual(t, r.ID(), c.From.NodeID, "relay output should be purged")
	}
	assertConsistent(t, g)
}

func TestGraph_RemoveNode(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	p := mustAdd(t, g, newRenamer())
	end := mustAdd(t, g, newSink())
	mustConnect(t, g, start, "value", p, "in")
	mustConnect(t, g, p, "x", end, "value")
	require.NoError(t, g.SetLayout(p.ID(), Layout{X: 1, Y: 2}))

	require.NoError(t, g.RemoveNode(p.ID()))

	_, ok := g.Node(p.ID())
	assert.False(t, ok)
	_, ok = g.Layout(p.ID())
	assert.False(t, ok)
	assert.Empty(t, g.Connections())
	assertConsistent(t, g)

	assert.ErrorIs(t, g.RemoveNode(p.ID()), ErrNodeNotFound)
	assert.ErrorIs(t, g.SetLayout("ghost", Layout{}), ErrNodeNotFound)
}

func TestGraph_RemoveConnection(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	end := mustAdd(t, g, newSink())
	c := mustConnect(t, g, start, "value", end, "value")

	require.NoError(t, g.RemoveConnection(c))
	assert.Empty(t, g.Connections())
	assertConsistent(t, g)
	assert.ErrorIs(t, g.RemoveConnection(c), ErrConnectionNotFound)
}

func TestGraph_MissingInputIssue(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	m := mustAdd(t, g, newMerge())
	end := mustAdd(t, g, newSink())
	other := mustAdd(t, g, newSink())
	mustConnect(t, g, m, "out", end, "value")
	mustConnect(t, g, start, "value", other, "value")

	_, ok := g.ExecutionOrder()
	assert.True(t, ok)

	issues := g.Validate()
	assert.Equal(t, Issues{{NodeID: m.ID(), Message: `missing input "a"`}}, issues)
	assert.Error(t, issues.Err())
	assert.NoError(t, Issues(nil).Err())
}

func TestNode_Settings(t *testing.T) {
	n, err := NewNode(newIntStart())
	require.NoError(t, err)

	next, err := n.WithSetting("value", types.IntValue(5))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n.Settings()["value"].Value())
	assert.Equal(t, int64(5), next.Settings()["value"].Value())
	assert.Equal(t, n.ID(), next.ID())

	_, err = n.WithSetting("nope", types.IntValue(1))
	assert.ErrorIs(t, err, ErrUnknownSetting)

	_, err = n.WithSetting("value", types.BoolValue(true))
	assert.ErrorIs(t, err, types.ErrConversion)

	_, err = NewNodeWithID("fixed", newIntStart(), Settings{"value": types.IntValue(3)})
	require.NoError(t, err)
}

func TestCheckNodeType(t *testing.T) {
	assert.NoError(t, CheckNodeType(newIntStart()))
	assert.NoError(t, CheckNodeType(newMerge()))
	assert.NoError(t, CheckNodeType(newSink()))
	assert.ErrorIs(t, CheckNodeType(broken{NewStartBase("broken", nil)}), ErrNotSealed)

	_, err := NewNode(broken{NewStartBase("broken", nil)})
	assert.ErrorIs(t, err, ErrNotSealed)
}

func TestSettings_Decode(t *testing.T) {
	s := Settings{"name": types.StringValue("x"), "count": types.IntValue(3)}
	var cfg struct {
		Name  string `mapstructure:"name"`
		Count int    `mapstructure:"count"`
	}
	require.NoError(t, s.Decode(&cfg))
	assert.Equal(t, "x", cfg.Name)
	assert.Equal(t, 3, cfg.Count)
}

func TestGraph_AddConnectionRollsBackOnRederive(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	p := mustAdd(t, g, newPicky())

	_, err := g.Connect(start.ID(), "value", p.ID(), "value")
	assert.ErrorIs(t, err, ErrIncompatibleTypes)
	assert.Empty(t, g.Connections())

	cur, _ := g.Node(p.ID())
	assert.Same(t, p, cur)
	assert.Empty(t, cur.InputTypes())
	assertConsistent(t, g)
}

func TestGraph_ModifyNodeCanReadGraph(t *testing.T) {
	g := New()
	start := mustAdd(t, g, newIntStart())
	a := mustAdd(t, g, newRenamer())
	mustConnect(t, g, start, "value", a, "in")

	var (
		seen []string
		next *Node
		err  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		next, err = g.ModifyNode(a.ID(), func(n *Node) (*Node, error) {
			seen = append(seen, n.Settings().String("output"))
			assert.Len(t, g.ConnectionsFor(n.ID()), 1)
			if len(seen) == 1 {
				// Another edit lands before this one is applied.
				_, err := g.ModifyNode(n.ID(), func(n *Node) (*Node, error) {
					return n.WithSetting("output", types.StringValue("y"))
				})
				assert.NoError(t, err)
			}
			return n.WithSetting("output", types.StringValue("z"))
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ModifyNode did not return")
	}
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, seen, "fn is retried with the current node")
	_, ok := next.Output("z")
	assert.True(t, ok)
	assertConsistent(t, g)
}

func TestGraph_NodesUseGraphConversions(t *testing.T) {
	conv := types.NewConversions()
	conv.Register(types.Bool, types.Int, func(v any) any {
		if v.(bool) {
			return int64(1)
		}
		return int64(0)
	})
	g := New(WithConversions(conv))
	n := mustAdd(t, g, newIntStart())

	next, err := n.WithSetting("value", types.BoolValue(true))
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.Settings()["value"].Value())

	plain, err := NewNode(newIntStart())
	require.NoError(t, err)
	_, err = plain.WithSetting("value", types.BoolValue(true))
	assert.ErrorIs(t, err, types.ErrConversion)
}
