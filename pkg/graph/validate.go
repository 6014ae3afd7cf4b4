package graph

import "sort"

// Validate reports every problem that keeps the graph from running: missing
// start or end nodes, cyclic or unreachable connections, and node-level issues
// from each node type's IsValid hook. Graph-level issues come first, then
// node issues sorted by node id.
func (g *Graph) Validate() Issues {
	g.mu.RLock()
	r := g.kahn()
	nodes := g.sortedNodes()
	g.mu.RUnlock()

	var issues Issues
	if !r.sawStart {
		issues = append(issues, Issue{Message: "no connected start node"})
	}
	if !r.sawEnd {
		issues = append(issues, Issue{Message: "no end node is reachable"})
	}
	if r.leftover > 0 {
		issues = append(issues, Issue{Message: "flow contains a cycle or connections that cannot be ordered"})
	}
	for _, n := range nodes {
		issues = append(issues, n.typ.IsValid(n, g)...)
	}

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].NodeID < issues[j].NodeID })
	return issues
}
