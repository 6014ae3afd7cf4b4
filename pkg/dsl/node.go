package dsl

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	id       string
	typ      string
	settings graph.Settings
	layout   *graph.Layout
	builder  *Builder
}

// Set assigns a setting. Plain Go values are boxed with their inferred type;
// the node converts them to the setting's declared type.
func (n *NodeBuilder) Set(name string, value any) *NodeBuilder {
	if b, ok := value.(types.Box); ok {
		n.settings[name] = b
		return n
	}
	b, err := types.NewBox(value, n.builder.types.Infer(value))
	if err != nil {
		n.builder.fail(fmt.Errorf("node %s setting %q: %w", n.id, name, err))
		return n
	}
	n.settings[name] = b
	return n
}

// At places the node on the editor canvas.
func (n *NodeBuilder) At(x, y float64, label string) *NodeBuilder {
	n.layout = &graph.Layout{X: x, Y: y, Label: label}
	return n
}

// To connects one of this node's outputs to "node.input".
func (n *NodeBuilder) To(output, target string) *NodeBuilder {
	n.builder.Connect(n.id+"."+output, target)
	return n
}

// Flow returns the enclosing builder.
func (n *NodeBuilder) Flow() *Builder {
	return n.builder
}
