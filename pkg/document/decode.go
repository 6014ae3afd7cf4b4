package document

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// NodeTypes resolves node type names.
type NodeTypes interface {
	Lookup(name string) (graph.NodeType, error)
}

// Decoder rebuilds graphs from documents.
type Decoder struct {
	nodes    NodeTypes
	types    *types.Registry
	opts     []graph.Option
	validate *validator.Validate
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithTypes sets the registry used to resolve value types.
func WithTypes(r *types.Registry) DecoderOption {
	return func(d *Decoder) {
		if r != nil {
			d.types = r
		}
	}
}

// WithGraphOptions passes options to every decoded graph.
func WithGraphOptions(opts ...graph.Option) DecoderOption {
	return func(d *Decoder) { d.opts = append(d.opts, opts...) }
}

// NewDecoder creates a decoder resolving node types through nodes.
func NewDecoder(nodes NodeTypes, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		nodes:    nodes,
		types:    types.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Validate checks the document structure without building a graph.
func (d *Decoder) Validate(f *Flow) error {
	if f == nil {
		return errors.New("nil flow document")
	}
	if err := d.validate.Struct(f); err != nil {
		return fmt.Errorf("flow %s: %w", f.ID, err)
	}
	return nil
}

// Decode rebuilds the graph described by f. Problems are reported together,
// each tagged with the node or connection it concerns.
func (d *Decoder) Decode(f *Flow) (*graph.Graph, error) {
	if err := d.Validate(f); err != nil {
		return nil, err
	}

	opts := append([]graph.Option{graph.WithConversions(d.types.Conversions())}, d.opts...)
	g := graph.New(opts...)
	var errs []error

	for _, doc := range f.Nodes {
		n, err := d.decodeNode(doc, g.Conversions())
		if err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", doc.ID, err))
			continue
		}
		if err := g.InsertNode(n); err != nil {
			errs = append(errs, err)
			continue
		}
		if doc.Layout != nil {
			_ = g.SetLayout(doc.ID, *doc.Layout)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := connectAll(g, f.Connections); err != nil {
		return nil, err
	}
	return g, nil
}

func (d *Decoder) decodeNode(doc Node, conv *types.Conversions) (*graph.Node, error) {
	nt, err := d.nodes.Lookup(doc.Type)
	if err != nil {
		return nil, err
	}
	settings := make(graph.Settings, len(doc.Settings))
	for name, v := range doc.Settings {
		b, err := v.Box(d.types)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", name, err)
		}
		settings[name] = b
	}
	return graph.NewNodeWithID(doc.ID, nt, settings, graph.WithNodeConversions(conv))
}

// connectAll adds connections in passes. A connection out of a node whose
// output type depends on its own inputs may only type-check once those inputs
// are connected, so incompatible connections are retried while progress is made.
func connectAll(g *graph.Graph, conns []Connection) error {
	pending := conns
	for len(pending) > 0 {
		var retry []Connection
		var errs []error
		for _, c := range pending {
			got, err := g.Connect(c.From.Node, c.From.Name, c.To.Node, c.To.Name)
			switch {
			case errors.Is(err, graph.ErrIncompatibleTypes):
				retry = append(retry, c)
				errs = append(errs, connErr(c, err))
			case err != nil:
				return connErr(c, err)
			case got.Type.Name() != c.Type:
				return connErr(c, fmt.Errorf("%w: stored type %s, input is %s", graph.ErrIncompatibleTypes, c.Type, got.Type))
			}
		}
		if len(retry) == len(pending) {
			return errors.Join(errs...)
		}
		pending = retry
	}
	return nil
}

func connErr(c Connection, err error) error {
	return fmt.Errorf("connection %s.%s -> %s.%s: %w", c.From.Node, c.From.Name, c.To.Node, c.To.Name, err)
}
