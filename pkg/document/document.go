package document

import (
	"errors"
	"time"

	"github.com/aretw0/lattice/pkg/graph"
)

// ErrFlowNotFound is returned by stores and loaders for unknown flow ids.
var ErrFlowNotFound = errors.New("flow not found")

// Flow is the durable form of a graph. Connectors are not stored: they are
// re-derived from each node's type and settings on decode.
type Flow struct {
	ID          string       `json:"id" yaml:"id" msgpack:"id" mapstructure:"id" validate:"required"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name,omitempty" mapstructure:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty" msgpack:"description,omitempty" mapstructure:"description"`
	UpdatedAt   time.Time    `json:"updated_at,omitzero" yaml:"updated_at,omitempty" msgpack:"updated_at,omitempty" mapstructure:"updated_at"`
	Nodes       []Node       `json:"nodes" yaml:"nodes" msgpack:"nodes" mapstructure:"nodes" validate:"dive"`
	Connections []Connection `json:"connections" yaml:"connections" msgpack:"connections" mapstructure:"connections" validate:"dive"`
}

// Node is a node's id, type name, settings and editor layout.
type Node struct {
	ID       string           `json:"id" yaml:"id" msgpack:"id" mapstructure:"id" validate:"required"`
	Type     string           `json:"type" yaml:"type" msgpack:"type" mapstructure:"type" validate:"required"`
	Settings map[string]Value `json:"settings,omitempty" yaml:"settings,omitempty" msgpack:"settings,omitempty" mapstructure:"settings" validate:"dive"`
	Layout   *graph.Layout    `json:"layout,omitempty" yaml:"layout,omitempty" msgpack:"layout,omitempty" mapstructure:"layout"`
}

// Value is a boxed value: its type name and raw value.
type Value struct {
	Type  string `json:"type" yaml:"type" msgpack:"type" mapstructure:"type" validate:"required"`
	Value any    `json:"value" yaml:"value" msgpack:"value" mapstructure:"value"`
}

// Endpoint references a connector by node id and name.
type Endpoint struct {
	Node string `json:"node" yaml:"node" msgpack:"node" mapstructure:"node" validate:"required"`
	Name string `json:"name" yaml:"name" msgpack:"name" mapstructure:"name" validate:"required"`
	Type string `json:"type,omitempty" yaml:"type,omitempty" msgpack:"type,omitempty" mapstructure:"type"`
}

// Connection references its two connectors and the connection type.
type Connection struct {
	From Endpoint `json:"from" yaml:"from" msgpack:"from" mapstructure:"from"`
	To   Endpoint `json:"to" yaml:"to" msgpack:"to" mapstructure:"to"`
	Type string   `json:"type" yaml:"type" msgpack:"type" mapstructure:"type" validate:"required"`
}

// Summary is the listing form of a flow.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Nodes int    `json:"nodes"`
}

func (f *Flow) Summary() Summary {
	return Summary{ID: f.ID, Name: f.Name, Nodes: len(f.Nodes)}
}

// Node returns the node document with the given id.
func (f *Flow) Node(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
