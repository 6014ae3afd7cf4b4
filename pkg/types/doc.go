/*
Package types is the runtime type system for values that move between nodes.

A Descriptor names a value type. Descriptors live in a Registry and compare by
name. Requesting "list$T" or "optional$T" derives the composite type on first use
and memoizes it, so each logical type has exactly one descriptor.

Values travel as Boxes: a value plus the descriptor it conforms to. Boxing
normalizes decoder artifacts (json.Number, plain int, whole-number floats,
map[any]any), so a value read from JSON, YAML or MessagePack compares equal
to one built in Go.

The Conversions table holds one-directional, total conversion functions. Every
type converts to "any"; conversions are never composed transitively.

	r := types.Default()
	ints, _ := r.Get("list$int")
	b, err := types.NewBox([]int{1, 2, 3}, ints)
*/
package types
