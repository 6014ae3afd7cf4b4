package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/lattice/pkg/document"
)

// Loader implements ports.FlowLoader over a fixed set of flows.
type Loader struct {
	flows map[string]*document.Flow
}

// NewLoader creates a loader serving the given flows.
func NewLoader(flows ...*document.Flow) (*Loader, error) {
	data := make(map[string]*document.Flow, len(flows))
	for _, f := range flows {
		if f == nil || f.ID == "" {
			return nil, fmt.Errorf("flow missing ID")
		}
		data[f.ID] = document.Clone(f)
	}
	return &Loader{flows: data}, nil
}

// LoadFlow returns a copy of the flow.
func (l *Loader) LoadFlow(_ context.Context, id string) (*document.Flow, error) {
	f, ok := l.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrFlowNotFound, id)
	}
	return document.Clone(f), nil
}

// ListFlows returns all available flow ids.
func (l *Loader) ListFlows(context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.flows))
	for k := range l.flows {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
