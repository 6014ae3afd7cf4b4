package graph

import "sort"

type orderResult struct {
	order     []*Node
	sawStart  bool
	sawEnd    bool
	leftover  int
	connected int
}

func (r orderResult) valid() bool {
	return r.sawStart && r.sawEnd && r.leftover == 0
}

// ExecutionOrder returns the connected nodes in topological order, or false
// when the graph is not executable: no connected start node, no connected end
// node, or connections that were never reached (a cycle or a component that
// cannot be ordered). Nodes without connections are ignored.
func (g *Graph) ExecutionOrder() ([]*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r := g.kahn()
	if !r.valid() {
		return nil, false
	}
	return r.order, true
}

// kahn orders nodes by id among ready candidates so the result is deterministic.
func (g *Graph) kahn() orderResult {
	var r orderResult

	pending := make(map[string]int)
	var ready []string
	for _, n := range g.sortedNodes() {
		keys := g.index[n.id]
		if len(keys) == 0 {
			continue
		}
		r.connected++
		incoming := 0
		for k := range keys {
			if k.ToNode == n.id {
				incoming++
			}
		}
		pending[n.id] = incoming
		if incoming == 0 {
			ready = append(ready, n.id)
		}
	}

	visited := make(map[ConnectionKey]bool, len(g.conns))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]

		n := g.nodes[id]
		r.order = append(r.order, n)
		switch n.Category() {
		case CategoryStart:
			r.sawStart = true
		case CategoryEnd:
			r.sawEnd = true
		}

		var released []string
		for _, c := range g.connectionsFor(id) {
			k := c.Key()
			if k.FromNode != id || visited[k] {
				continue
			}
			visited[k] = true
			pending[k.ToNode]--
			if pending[k.ToNode] == 0 {
				released = append(released, k.ToNode)
			}
		}
		sort.Strings(released)
		ready = mergeSorted(ready, released)
	}

	r.leftover = len(g.conns) - len(visited)
	return r
}

func mergeSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.Strings(out)
	return out
}
