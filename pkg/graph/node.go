package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/aretw0/lattice/pkg/types"
)

// Node is an immutable placement of a NodeType. Its connectors are always
// derived from (type, settings, input hints); modifying a node yields a new value.
type Node struct {
	id       string
	typ      NodeType
	settings Settings
	hints    map[string]*types.Descriptor
	inputs   map[string]Input
	outputs  map[string]Output
	conv     *types.Conversions
}

// NodeOption configures a new Node.
type NodeOption func(*Node)

// WithNodeConversions sets the table used to coerce setting values to their
// declared types. The node and the values derived from it keep using it.
func WithNodeConversions(c *types.Conversions) NodeOption {
	return func(n *Node) {
		if c != nil {
			n.conv = c
		}
	}
}

// NewNode creates a node with a fresh id and the type's default settings.
func NewNode(nt NodeType, opts ...NodeOption) (*Node, error) {
	return NewNodeWithID(uuid.NewString(), nt, nil, opts...)
}

// NewNodeWithID rebuilds a node with a known id. settings override the
// type's defaults; names the type does not declare are rejected.
func NewNodeWithID(id string, nt NodeType, settings Settings, opts ...NodeOption) (*Node, error) {
	if err := CheckNodeType(nt); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("node id must not be empty")
	}
	n := &Node{id: id, typ: nt, settings: nt.DefaultSettings(), conv: types.Default().Conversions()}
	for _, opt := range opts {
		opt(n)
	}
	for _, name := range settings.Names() {
		b, err := n.coerceSetting(name, settings[name])
		if err != nil {
			return nil, err
		}
		n.settings[name] = b
	}
	return n.derive(), nil
}

func (n *Node) ID() string { return n.id }

func (n *Node) Type() NodeType { return n.typ }

func (n *Node) Category() Category { return n.typ.Category() }

// Settings returns a copy of the node's settings.
func (n *Node) Settings() Settings { return n.settings.Clone() }

func (n *Node) Setting(name string) (types.Box, bool) { return n.settings.Get(name) }

// InputTypes returns the live types feeding connected inputs.
func (n *Node) InputTypes() map[string]*types.Descriptor {
	out := make(map[string]*types.Descriptor, len(n.hints))
	for k, v := range n.hints {
		out[k] = v
	}
	return out
}

func (n *Node) Input(name string) (Input, bool) {
	in, ok := n.inputs[name]
	return in, ok
}

func (n *Node) Output(name string) (Output, bool) {
	out, ok := n.outputs[name]
	return out, ok
}

// Inputs returns the input connectors sorted by name.
func (n *Node) Inputs() []Input {
	out := make([]Input, 0, len(n.inputs))
	for _, in := range n.inputs {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Outputs returns the output connectors sorted by name.
func (n *Node) Outputs() []Output {
	out := make([]Output, 0, len(n.outputs))
	for _, o := range n.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WithSetting returns a copy of n with one setting replaced and connectors re-derived.
// The value is converted to the declared setting type when needed.
func (n *Node) WithSetting(name string, value types.Box) (*Node, error) {
	b, err := n.coerceSetting(name, value)
	if err != nil {
		return nil, err
	}
	next := n.clone()
	next.settings[name] = b
	return next.derive(), nil
}

// WithSettings applies several settings at once.
func (n *Node) WithSettings(s Settings) (*Node, error) {
	next := n.clone()
	for _, name := range s.Names() {
		b, err := n.coerceSetting(name, s[name])
		if err != nil {
			return nil, err
		}
		next.settings[name] = b
	}
	return next.derive(), nil
}

// WithInputTypes returns a copy of n re-derived for the given input hints.
func (n *Node) WithInputTypes(hints map[string]*types.Descriptor) *Node {
	next := n.clone()
	next.hints = make(map[string]*types.Descriptor, len(hints))
	for k, v := range hints {
		next.hints[k] = v
	}
	return next.derive()
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.typ.Name(), n.id)
}

func (n *Node) coerceSetting(name string, value types.Box) (types.Box, error) {
	def, ok := n.settings[name]
	if !ok {
		return types.Box{}, fmt.Errorf("%w: %s has no setting %q", ErrUnknownSetting, n.typ.Name(), name)
	}
	if value.IsZero() {
		return types.Box{}, fmt.Errorf("setting %q: empty value", name)
	}
	if def.IsZero() || value.Type().Equal(def.Type()) {
		return value, nil
	}
	b, err := n.conv.Convert(value, def.Type())
	if err != nil {
		return types.Box{}, fmt.Errorf("setting %q: %w", name, err)
	}
	return b, nil
}

func (n *Node) clone() *Node {
	next := *n
	next.settings = n.settings.Clone()
	next.hints = n.InputTypes()
	return &next
}

func (n *Node) derive() *Node {
	shape := Shape{NodeID: n.id, Settings: n.settings.Clone(), InputTypes: n.InputTypes()}

	n.inputs = make(map[string]Input)
	for name, t := range deriveInputs(n.typ, shape) {
		n.inputs[name] = Input{NodeID: n.id, Name: name, Type: t}
	}
	n.outputs = make(map[string]Output)
	for name, t := range deriveOutputs(n.typ, shape) {
		n.outputs[name] = Output{NodeID: n.id, Name: name, Type: t}
	}
	return n
}

func sameHints(a, b map[string]*types.Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !v.Equal(b[k]) {
			return false
		}
	}
	return true
}
