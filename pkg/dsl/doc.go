/*
Package dsl provides a Go DSL for constructing lattice flows in code.

It builds the same graphs a flow file describes, using a fluent builder
instead of JSON or YAML. Connector types are derived by the node types, so
the resulting documents carry every endpoint type without spelling them out.

Example usage:

	b := dsl.New("orders").Name("Orders")

	b.Add("start", "manual_start").Set("payload", map[string]any{"count": 1})
	b.Add("inc", "add").Set("value_to_add", 4)
	b.Add("out", "record")

	b.Connect("start.count", "inc.value").
		Connect("inc.result", "out.value")

	flow, err := b.Build(engine.Nodes())
	// ... save the flow or pass it to engine.RunFlow
*/
package dsl
