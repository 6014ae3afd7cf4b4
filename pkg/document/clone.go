package document

// Clone returns a deep copy of f.
func Clone(f *Flow) *Flow {
	if f == nil {
		return nil
	}
	out := *f
	out.Nodes = make([]Node, len(f.Nodes))
	for i, n := range f.Nodes {
		cp := n
		if n.Settings != nil {
			cp.Settings = make(map[string]Value, len(n.Settings))
			for k, v := range n.Settings {
				cp.Settings[k] = Value{Type: v.Type, Value: cloneValue(v.Value)}
			}
		}
		if n.Layout != nil {
			l := *n.Layout
			cp.Layout = &l
		}
		out.Nodes[i] = cp
	}
	out.Connections = append([]Connection(nil), f.Connections...)
	return &out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}
