package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

type endpoint struct {
	node, name string
}

type link struct {
	from, to endpoint
}

// Builder manages the flow construction.
type Builder struct {
	id          string
	name        string
	description string
	types       *types.Registry
	order       []string
	nodes       map[string]*NodeBuilder
	links       []link
	errs        []error
}

// New creates a builder for the flow with the given id.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		types: types.Default(),
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name of the flow.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Describe sets the flow description.
func (b *Builder) Describe(text string) *Builder {
	b.description = text
	return b
}

// WithTypes sets the registry used to box settings and derive types.
func (b *Builder) WithTypes(r *types.Registry) *Builder {
	if r != nil {
		b.types = r
	}
	return b
}

// Add creates a node of the named type.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id, nodeType string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id, typ: nodeType, settings: graph.Settings{}, builder: b}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Connect joins "node.output" to "node.input".
func (b *Builder) Connect(from, to string) *Builder {
	f, err := parseEndpoint(from)
	if err != nil {
		b.fail(err)
		return b
	}
	t, err := parseEndpoint(to)
	if err != nil {
		b.fail(err)
		return b
	}
	b.links = append(b.links, link{from: f, to: t})
	return b
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}

func parseEndpoint(s string) (endpoint, error) {
	node, name, ok := strings.Cut(s, ".")
	if !ok || node == "" || name == "" {
		return endpoint{}, fmt.Errorf("endpoint %q: want node.connector", s)
	}
	return endpoint{node: node, name: name}, nil
}

// Graph builds the graph, resolving node types through nodes.
func (b *Builder) Graph(nodes document.NodeTypes, opts ...graph.Option) (*graph.Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	opts = append([]graph.Option{graph.WithConversions(b.types.Conversions())}, opts...)
	g := graph.New(opts...)
	for _, id := range b.order {
		nb := b.nodes[id]
		nt, err := nodes.Lookup(nb.typ)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		n, err := graph.NewNodeWithID(id, nt, nb.settings, graph.WithNodeConversions(g.Conversions()))
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		if err := g.InsertNode(n); err != nil {
			return nil, err
		}
		if nb.layout != nil {
			_ = g.SetLayout(id, *nb.layout)
		}
	}

	// Outputs typed by their node's inputs may only accept a connection once
	// those inputs are connected, so incompatible links are retried while
	// progress is made.
	pending := b.links
	for len(pending) > 0 {
		var retry []link
		var errs []error
		for _, l := range pending {
			_, err := g.Connect(l.from.node, l.from.name, l.to.node, l.to.name)
			switch {
			case errors.Is(err, graph.ErrIncompatibleTypes):
				retry = append(retry, l)
				errs = append(errs, linkErr(l, err))
			case err != nil:
				return nil, linkErr(l, err)
			}
		}
		if len(retry) == len(pending) {
			return nil, errors.Join(errs...)
		}
		pending = retry
	}
	return g, nil
}

func linkErr(l link, err error) error {
	return fmt.Errorf("connection %s.%s -> %s.%s: %w", l.from.node, l.from.name, l.to.node, l.to.name, err)
}

// Build compiles the flow into its document form.
func (b *Builder) Build(nodes document.NodeTypes, opts ...graph.Option) (*document.Flow, error) {
	g, err := b.Graph(nodes, opts...)
	if err != nil {
		return nil, err
	}
	f := document.Encode(b.id, b.name, g)
	f.Description = b.description
	return f, nil
}

// Loader compiles the flow into a memory loader serving it.
func (b *Builder) Loader(nodes document.NodeTypes) (*memory.Loader, error) {
	f, err := b.Build(nodes)
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewLoader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
