package document

import (
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// Encode captures g as a Flow document with the given id and name.
// Nodes and connections are emitted in a stable order.
func Encode(id, name string, g *graph.Graph) *Flow {
	f := &Flow{ID: id, Name: name}
	for _, n := range g.Nodes() {
		doc := Node{ID: n.ID(), Type: n.Type().Name()}
		settings := n.Settings()
		if len(settings) > 0 {
			doc.Settings = make(map[string]Value, len(settings))
			for _, k := range settings.Names() {
				doc.Settings[k] = FromBox(settings[k])
			}
		}
		if l, ok := g.Layout(n.ID()); ok {
			l := l
			doc.Layout = &l
		}
		f.Nodes = append(f.Nodes, doc)
	}
	for _, c := range g.Connections() {
		f.Connections = append(f.Connections, Connection{
			From: Endpoint{Node: c.From.NodeID, Name: c.From.Name, Type: c.From.Type.Name()},
			To:   Endpoint{Node: c.To.NodeID, Name: c.To.Name, Type: c.To.Type.Name()},
			Type: c.Type.Name(),
		})
	}
	return f
}

// FromBox converts a box to its document form.
func FromBox(b types.Box) Value {
	d := b.Document()
	return Value{Type: d.Type, Value: d.Value}
}

// Box resolves v's type in r and boxes its value.
func (v Value) Box(r *types.Registry) (types.Box, error) {
	return r.FromDocument(types.BoxDocument{Type: v.Type, Value: v.Value})
}
