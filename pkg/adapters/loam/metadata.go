package loam

import (
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/graph"
)

// FlowMetadata is the header of a flow document kept in a Loam repository.
// It uses "mapstructure" tags to match the front matter / YAML keys.
type FlowMetadata struct {
	ID          string                `json:"id" mapstructure:"id"`
	Name        string                `json:"name" mapstructure:"name"`
	Description string                `json:"description" mapstructure:"description"`
	Nodes       []NodeMetadata        `json:"nodes" mapstructure:"nodes"`
	Connections []document.Connection `json:"connections" mapstructure:"connections"`
}

// NodeMetadata is one node entry. A setting is either a {type, value} pair
// or a bare value whose type is inferred.
type NodeMetadata struct {
	ID       string         `json:"id" mapstructure:"id"`
	Type     string         `json:"type" mapstructure:"type"`
	Settings map[string]any `json:"settings" mapstructure:"settings"`
	Layout   *graph.Layout  `json:"layout,omitempty" mapstructure:"layout"`
}
