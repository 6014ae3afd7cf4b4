package graph

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/types"
)

// Layout is per-node editor metadata. The engine never reads it.
type Layout struct {
	X     float64 `json:"x" yaml:"x" msgpack:"x" mapstructure:"x"`
	Y     float64 `json:"y" yaml:"y" msgpack:"y" mapstructure:"y"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty" mapstructure:"label"`
}

// Graph holds nodes, the connections between their connectors and layout
// metadata. The per-node connection index is maintained together with the
// connection set by every operation and is never edited on its own.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	conns  map[ConnectionKey]Connection
	index  map[string]map[ConnectionKey]struct{}
	layout map[string]Layout

	conv   *types.Conversions
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithConversions sets the conversion table used to check connections.
func WithConversions(c *types.Conversions) Option {
	return func(g *Graph) {
		if c != nil {
			g.conv = c
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:  make(map[string]*Node),
		conns:  make(map[ConnectionKey]Connection),
		index:  make(map[string]map[ConnectionKey]struct{}),
		layout: make(map[string]Layout),
		conv:   types.Default().Conversions(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Conversions returns the table used by the graph.
func (g *Graph) Conversions() *types.Conversions { return g.conv }

// AddNode creates a node of type nt with default settings and inserts it.
// The node coerces settings with the graph's conversion table.
func (g *Graph) AddNode(nt NodeType) (*Node, error) {
	n, err := NewNode(nt, WithNodeConversions(g.conv))
	if err != nil {
		return nil, err
	}
	if err := g.InsertNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// InsertNode adds an existing node value, e.g. one rebuilt from a document.
func (g *Graph) InsertNode(n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.id)
	}
	g.nodes[n.id] = n
	return nil
}

// Node returns the current value of the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node sorted by id.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNodes()
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ModifyNode replaces the node with fn's result. Connections whose endpoints
// no longer exist on the new node (or whose types can no longer be joined)
// are removed; type changes propagate downstream.
//
// fn runs without the graph lock and may read the graph. When the node is
// replaced by someone else before fn returns, fn is called again with the
// current value.
func (g *Graph) ModifyNode(id string, fn func(*Node) (*Node, error)) (*Node, error) {
	for {
		cur, ok := g.Node(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("%w: modify %s", ErrNilNode, id)
		}
		if next.id != id {
			return nil, fmt.Errorf("modify %s: node id changed to %s", id, next.id)
		}

		g.mu.Lock()
		if g.nodes[id] != cur {
			g.mu.Unlock()
			continue
		}
		g.nodes[id] = next
		g.reconcile(id)
		out := g.nodes[id]
		g.mu.Unlock()
		return out, nil
	}
}

// RemoveNode deletes a node, its layout and every connection touching it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	var downstream []string
	for _, c := range g.connectionsFor(id) {
		g.unlink(c)
		if c.To.NodeID != id {
			downstream = append(downstream, c.To.NodeID)
		}
	}
	delete(g.nodes, id)
	delete(g.layout, id)
	delete(g.index, id)
	g.reconcile(downstream...)
	return nil
}

// AddConnection inserts c. It fails without changing the graph when either
// node is missing, an endpoint is not a connector of its node, the types
// cannot be joined or the input is already connected.
func (g *Graph) AddConnection(c Connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.nodes[c.From.NodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.From.NodeID)
	}
	to, ok := g.nodes[c.To.NodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, c.To.NodeID)
	}
	out, ok := from.Output(c.From.Name)
	if !ok {
		return fmt.Errorf("%w: output %q on %s", ErrConnectorNotFound, c.From.Name, from)
	}
	in, ok := to.Input(c.To.Name)
	if !ok {
		return fmt.Errorf("%w: input %q on %s", ErrConnectorNotFound, c.To.Name, to)
	}
	if g.inputOccupied(in) {
		return fmt.Errorf("%w: %s.%s", ErrInputOccupied, in.NodeID, in.Name)
	}
	checked, err := NewConnection(out, in, c.Type, g.conv)
	if err != nil {
		return err
	}

	before := g.snapshot()
	g.link(checked)
	g.reconcile(in.NodeID)
	if _, kept := g.conns[checked.Key()]; !kept {
		g.restore(before)
		return fmt.Errorf("%w: %s does not type-check once %s takes the new input type", ErrIncompatibleTypes, checked, in.NodeID)
	}
	return nil
}

// Connect joins output fromName of fromID to input toName of toID using the
// connectors' current types.
func (g *Graph) Connect(fromID, fromName, toID, toName string) (Connection, error) {
	g.mu.RLock()
	var c Connection
	if n, ok := g.nodes[fromID]; ok {
		c.From, _ = n.Output(fromName)
	}
	if n, ok := g.nodes[toID]; ok {
		c.To, _ = n.Input(toName)
	}
	g.mu.RUnlock()

	c.From.NodeID, c.From.Name = fromID, fromName
	c.To.NodeID, c.To.Name = toID, toName
	c.Type = c.To.Type
	if err := g.AddConnection(c); err != nil {
		return Connection{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conns[c.Key()], nil
}

// RemoveConnection deletes the connection with c's endpoints.
func (g *Graph) RemoveConnection(c Connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.conns[c.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, c)
	}
	g.unlink(cur)
	g.reconcile(cur.To.NodeID)
	return nil
}

// Connections returns every connection in a stable order.
func (g *Graph) Connections() []Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Connection, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, c)
	}
	sortConnections(out)
	return out
}

// ConnectionsFor returns the connections touching the node, in a stable order.
func (g *Graph) ConnectionsFor(id string) []Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connectionsFor(id)
}

// SetLayout stores editor metadata for a node.
func (g *Graph) SetLayout(id string, l Layout) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	g.layout[id] = l
	return nil
}

// Layout returns the editor metadata of a node.
func (g *Graph) Layout(id string) (Layout, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.layout[id]
	return l, ok
}

func (g *Graph) sortedNodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (g *Graph) connectionsFor(id string) []Connection {
	keys := g.index[id]
	out := make([]Connection, 0, len(keys))
	for k := range keys {
		out = append(out, g.conns[k])
	}
	sortConnections(out)
	return out
}

func (g *Graph) inputOccupied(in Input) bool {
	for k := range g.index[in.NodeID] {
		if k.ToNode == in.NodeID && k.ToName == in.Name {
			return true
		}
	}
	return false
}

// state is a copy of the mutable parts of a graph. Nodes are immutable, so
// copying the maps is enough.
type state struct {
	nodes map[string]*Node
	conns map[ConnectionKey]Connection
	index map[string]map[ConnectionKey]struct{}
}

func (g *Graph) snapshot() state {
	index := make(map[string]map[ConnectionKey]struct{}, len(g.index))
	for id, keys := range g.index {
		index[id] = maps.Clone(keys)
	}
	return state{nodes: maps.Clone(g.nodes), conns: maps.Clone(g.conns), index: index}
}

func (g *Graph) restore(s state) {
	g.nodes, g.conns, g.index = s.nodes, s.conns, s.index
}

// link and unlink are the only writers of conns and index.
func (g *Graph) link(c Connection) {
	k := c.Key()
	g.conns[k] = c
	for _, id := range []string{k.FromNode, k.ToNode} {
		if g.index[id] == nil {
			g.index[id] = make(map[ConnectionKey]struct{})
		}
		g.index[id][k] = struct{}{}
	}
}

func (g *Graph) unlink(c Connection) {
	k := c.Key()
	delete(g.conns, k)
	for _, id := range []string{k.FromNode, k.ToNode} {
		delete(g.index[id], k)
		if len(g.index[id]) == 0 {
			delete(g.index, id)
		}
	}
}

// reconcile re-derives the given nodes for their live input types and drops
// or refreshes their connections, following type changes downstream. Each
// node is visited at most once per call so cycles terminate.
func (g *Graph) reconcile(ids ...string) {
	queue := append([]string(nil), ids...)
	seen := make(map[string]bool)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		hints := make(map[string]*types.Descriptor)
		for _, c := range g.connectionsFor(id) {
			if c.To.NodeID == id {
				hints[c.To.Name] = c.From.Type
			}
		}
		if !sameHints(hints, n.hints) {
			n = n.WithInputTypes(hints)
			g.nodes[id] = n
		}

		for _, c := range g.connectionsFor(id) {
			fresh, keep := g.refresh(c)
			switch {
			case !keep:
				g.unlink(c)
				g.logger.Debug("connection purged", "connection", c.String())
				if c.From.NodeID == id {
					queue = append(queue, c.To.NodeID)
				}
			case fresh != c:
				g.conns[c.Key()] = fresh
				if c.From.NodeID == id && !fresh.From.Type.Equal(c.From.Type) {
					queue = append(queue, c.To.NodeID)
				}
			}
		}
	}
}

// refresh re-reads both endpoints of c from the current nodes.
func (g *Graph) refresh(c Connection) (Connection, bool) {
	from, ok := g.nodes[c.From.NodeID]
	if !ok {
		return c, false
	}
	to, ok := g.nodes[c.To.NodeID]
	if !ok {
		return c, false
	}
	out, ok := from.Output(c.From.Name)
	if !ok {
		return c, false
	}
	in, ok := to.Input(c.To.Name)
	if !ok {
		return c, false
	}
	if !g.conv.CanConvert(out.Type, in.Type) {
		return c, false
	}
	return Connection{From: out, To: in, Type: in.Type}, true
}

func sortConnections(cs []Connection) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Key().less(cs[j].Key()) })
}
