package graph

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/types"
)

// Input is a named, typed slot a node receives a value on.
type Input struct {
	NodeID string
	Name   string
	Type   *types.Descriptor
}

// Optional reports whether the input may stay unconnected.
func (i Input) Optional() bool {
	return i.Type != nil && i.Type.Kind() == types.KindOptional
}

func (i Input) String() string {
	return fmt.Sprintf("%s.%s:%s", i.NodeID, i.Name, i.Type)
}

// Output is a named, typed slot a node produces a value on.
type Output struct {
	NodeID string
	Name   string
	Type   *types.Descriptor
}

// WithType narrows the output to the type currently flowing through it.
func (o Output) WithType(t *types.Descriptor) Output {
	o.Type = t
	return o
}

func (o Output) String() string {
	return fmt.Sprintf("%s.%s:%s", o.NodeID, o.Name, o.Type)
}

// Connection is a directed edge from an Output to an Input. Type is the
// destination's declared type; values are converted to it on delivery.
type Connection struct {
	From Output
	To   Input
	Type *types.Descriptor
}

// ConnectionKey identifies a connection by its endpoints.
type ConnectionKey struct {
	FromNode string
	FromName string
	ToNode   string
	ToName   string
}

// NewConnection joins from and to with type t. It fails when t is not the
// input's declared type or when from's type cannot be converted to it.
func NewConnection(from Output, to Input, t *types.Descriptor, conv *types.Conversions) (Connection, error) {
	if !t.Equal(to.Type) {
		return Connection{}, fmt.Errorf("%w: %s is declared %s, not %s", ErrIncompatibleTypes, to.Name, to.Type, t)
	}
	if !conv.CanConvert(from.Type, to.Type) {
		return Connection{}, fmt.Errorf("%w: %s cannot flow into %s", ErrIncompatibleTypes, from.Type, to.Type)
	}
	return Connection{From: from, To: to, Type: to.Type}, nil
}

// Key returns the endpoint identity of c.
func (c Connection) Key() ConnectionKey {
	return ConnectionKey{
		FromNode: c.From.NodeID,
		FromName: c.From.Name,
		ToNode:   c.To.NodeID,
		ToName:   c.To.Name,
	}
}

// Touches reports whether nodeID is either end of c.
func (c Connection) Touches(nodeID string) bool {
	return c.From.NodeID == nodeID || c.To.NodeID == nodeID
}

func (c Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s)", c.From.NodeID, c.From.Name, c.To.NodeID, c.To.Name, c.Type)
}

func (k ConnectionKey) less(o ConnectionKey) bool {
	if k.FromNode != o.FromNode {
		return k.FromNode < o.FromNode
	}
	if k.FromName != o.FromName {
		return k.FromName < o.FromName
	}
	if k.ToNode != o.ToNode {
		return k.ToNode < o.ToNode
	}
	return k.ToName < o.ToName
}
