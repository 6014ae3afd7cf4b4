package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/graph"
)

var (
	// ErrDuplicate is returned when a node type name is registered twice.
	ErrDuplicate = errors.New("node type already registered")

	// ErrNotFound is returned when a node type name is unknown.
	ErrNotFound = errors.New("node type not found")
)

// Registry maps node type names to node types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]graph.NodeType
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]graph.NodeType),
	}
}

// Register adds a node type under its own name.
// Types that do not implement their category's protocol are rejected.
func (r *Registry) Register(nt graph.NodeType) error {
	if err := graph.CheckNodeType(nt); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[nt.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, nt.Name())
	}
	r.types[nt.Name()] = nt
	return nil
}

// MustRegister registers every node type and panics on the first conflict.
func (r *Registry) MustRegister(nts ...graph.NodeType) *Registry {
	for _, nt := range nts {
		if err := r.Register(nt); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the node type registered under name.
func (r *Registry) Lookup(name string) (graph.NodeType, error) {
	r.mu.RLock()
	nt, ok := r.types[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nt, nil
}

// Names lists registered node type names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Each calls fn for every node type in name order.
func (r *Registry) Each(fn func(graph.NodeType)) {
	for _, name := range r.Names() {
		nt, err := r.Lookup(name)
		if err == nil {
			fn(nt)
		}
	}
}
