package graph

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/future"
	"github.com/aretw0/lattice/pkg/types"
)

// Category is the closed set of node roles.
type Category uint8

const (
	CategoryStart Category = iota + 1
	CategoryProcess
	CategoryEnd
)

func (c Category) String() string {
	switch c {
	case CategoryStart:
		return "start"
	case CategoryProcess:
		return "process"
	case CategoryEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Shape is what connector derivation sees: the node's id, its settings and the
// types currently flowing into its connected inputs.
type Shape struct {
	NodeID     string
	Settings   Settings
	InputTypes map[string]*types.Descriptor
}

// Hint returns the live type of the named input, or fallback when unconnected.
func (s Shape) Hint(input string, fallback *types.Descriptor) *types.Descriptor {
	if t, ok := s.InputTypes[input]; ok && t != nil {
		return t
	}
	return fallback
}

// Outputs maps output names to pending values.
type Outputs map[string]*future.Future[types.Box]

// FlowRef identifies the flow a start node is being wired into.
type FlowRef struct {
	ID   string
	Name string
}

// TriggerFunc starts a run of the flow. payload is nil when the source carries no data.
type TriggerFunc func(ctx context.Context, payload *types.Box) error

// NodeType is the behavior shared by many nodes. Implementations embed one of
// StartBase, ProcessBase or EndBase and implement the matching protocol
// (StartType, ProcessType or EndType).
type NodeType interface {
	Name() string
	Category() Category
	// DefaultSettings is the template a new node copies.
	DefaultSettings() Settings
	// IsValid reports node-level problems. The base implementation requires
	// every non-optional input of a connected node to be connected.
	IsValid(n *Node, g *Graph) []Issue

	sealed()
}

// StartType declares outputs and produces them when the flow is triggered.
type StartType interface {
	NodeType
	Outputs(s Shape) map[string]*types.Descriptor
	// Emit produces the outputs. external is nil when this node did not originate the run.
	Emit(ctx context.Context, external *types.Box, settings Settings) (Outputs, error)
	// Setup registers the node with its external trigger source.
	Setup(ctx context.Context, flow FlowRef, trigger TriggerFunc, n *Node) error
	// Teardown undoes Setup.
	Teardown(ctx context.Context, flow FlowRef, n *Node) error
}

// ProcessType maps inputs to outputs.
type ProcessType interface {
	NodeType
	Inputs(s Shape) map[string]*types.Descriptor
	Outputs(s Shape) map[string]*types.Descriptor
	Compute(ctx context.Context, inputs map[string]types.Box, settings Settings) (Outputs, error)
}

// EndType consumes inputs for a side effect.
type EndType interface {
	NodeType
	Inputs(s Shape) map[string]*types.Descriptor
	Effect(ctx context.Context, inputs map[string]types.Box, settings Settings) *future.Future[struct{}]
}

// Base carries the name and default settings of a node type.
type Base struct {
	name     string
	defaults Settings
}

func (b Base) Name() string { return b.name }

func (b Base) DefaultSettings() Settings { return b.defaults.Clone() }

func (b Base) IsValid(n *Node, g *Graph) []Issue { return RequireInputs(n, g) }

func (b Base) sealed() {}

// StartBase is embedded by start node types.
type StartBase struct{ Base }

// NewStartBase names a start node type and its default settings.
func NewStartBase(name string, defaults Settings) StartBase {
	return StartBase{Base{name: name, defaults: defaults.Clone()}}
}

func (StartBase) Category() Category { return CategoryStart }

func (StartBase) Setup(context.Context, FlowRef, TriggerFunc, *Node) error { return nil }

func (StartBase) Teardown(context.Context, FlowRef, *Node) error { return nil }

// ProcessBase is embedded by process node types.
type ProcessBase struct{ Base }

func NewProcessBase(name string, defaults Settings) ProcessBase {
	return ProcessBase{Base{name: name, defaults: defaults.Clone()}}
}

func (ProcessBase) Category() Category { return CategoryProcess }

// EndBase is embedded by end node types.
type EndBase struct{ Base }

func NewEndBase(name string, defaults Settings) EndBase {
	return EndBase{Base{name: name, defaults: defaults.Clone()}}
}

func (EndBase) Category() Category { return CategoryEnd }

// CheckNodeType verifies that nt implements the protocol of its category.
func CheckNodeType(nt NodeType) error {
	if nt == nil {
		return fmt.Errorf("%w: nil node type", ErrNotSealed)
	}
	var ok bool
	switch nt.Category() {
	case CategoryStart:
		_, ok = nt.(StartType)
	case CategoryProcess:
		_, ok = nt.(ProcessType)
	case CategoryEnd:
		_, ok = nt.(EndType)
	}
	if !ok || nt.Name() == "" {
		return fmt.Errorf("%w: %q (%s)", ErrNotSealed, nt.Name(), nt.Category())
	}
	return nil
}

func deriveInputs(nt NodeType, s Shape) map[string]*types.Descriptor {
	switch nt.Category() {
	case CategoryProcess:
		return nt.(ProcessType).Inputs(s)
	case CategoryEnd:
		return nt.(EndType).Inputs(s)
	}
	return nil
}

func deriveOutputs(nt NodeType, s Shape) map[string]*types.Descriptor {
	switch nt.Category() {
	case CategoryStart:
		return nt.(StartType).Outputs(s)
	case CategoryProcess:
		return nt.(ProcessType).Outputs(s)
	}
	return nil
}

// RequireInputs is the default validity rule: a node with any connection must
// have every non-optional input connected.
func RequireInputs(n *Node, g *Graph) []Issue {
	conns := g.ConnectionsFor(n.ID())
	if len(conns) == 0 {
		return nil
	}
	connected := make(map[string]bool, len(conns))
	for _, c := range conns {
		if c.To.NodeID == n.ID() {
			connected[c.To.Name] = true
		}
	}
	var issues []Issue
	for _, in := range n.Inputs() {
		if in.Optional() || connected[in.Name] {
			continue
		}
		issues = append(issues, Issue{NodeID: n.ID(), Message: fmt.Sprintf("missing input %q", in.Name)})
	}
	return issues
}
