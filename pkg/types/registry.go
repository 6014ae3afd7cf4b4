package types

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps type names to descriptors. Entries are never removed.
// Derived list/optional descriptors are created on first request and memoized,
// so every request for the same logical type returns the same *Descriptor.
type Registry struct {
	mu          sync.RWMutex
	byName      map[string]*Descriptor
	conversions *Conversions
}

// NewRegistry creates a registry seeded with the built-in types and their
// default conversions.
func NewRegistry() *Registry {
	r := &Registry{
		byName:      make(map[string]*Descriptor),
		conversions: NewConversions(),
	}
	r.registerBuiltins()
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Built-in descriptors of the process-wide registry.
var (
	Any    = defaultRegistry.mustGet(NameAny)
	String = defaultRegistry.mustGet(NameString)
	Int    = defaultRegistry.mustGet(NameInt)
	Float  = defaultRegistry.mustGet(NameFloat)
	Bool   = defaultRegistry.mustGet(NameBool)
	Object = defaultRegistry.mustGet(NameObject)
)

// Built-in type names.
const (
	NameAny    = "any"
	NameString = "string"
	NameInt    = "int"
	NameFloat  = "float"
	NameBool   = "bool"
	NameObject = "object"
)

func (r *Registry) registerBuiltins() {
	builtins := []struct {
		name  string
		kind  Kind
		check CheckFunc
	}{
		{NameAny, KindAny, checkAny},
		{NameString, KindString, checkString},
		{NameInt, KindInt, checkInt},
		{NameFloat, KindFloat, checkFloat},
		{NameBool, KindBool, checkBool},
		{NameObject, KindObject, checkObject},
	}
	for _, b := range builtins {
		r.MustRegister(b.name, b.kind, b.check)
	}
	registerDefaultConversions(r)
}

// Register adds a new named type. Names containing '$' are reserved for
// derived types. Registering a taken name returns ErrTypeExists.
func (r *Registry) Register(name string, kind Kind, check CheckFunc) (*Descriptor, error) {
	if name == "" {
		return nil, fmt.Errorf("types: empty type name")
	}
	if strings.Contains(name, "$") {
		return nil, fmt.Errorf("types: %q uses the reserved '$' separator", name)
	}
	if kind == KindList || kind == KindOptional {
		return nil, fmt.Errorf("types: %q: list and optional types are derived, not registered", name)
	}

	r.mu.Lock()
	if _, exists := r.byName[name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTypeExists, name)
	}
	d := &Descriptor{name: name, kind: kind, check: check, owner: r}
	r.byName[name] = d
	r.mu.Unlock()

	r.bindToAny(d)
	return d, nil
}

// MustRegister is Register for program initialization; conflicts panic.
func (r *Registry) MustRegister(name string, kind Kind, check CheckFunc) *Descriptor {
	d, err := r.Register(name, kind, check)
	if err != nil {
		panic(err)
	}
	return d
}

// Get resolves a type name. Unknown names carrying a "list$" or "optional$"
// prefix are derived from their (recursively resolved) inner type.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	d, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return d, true
	}

	switch {
	case strings.HasPrefix(name, ListPrefix):
		inner, ok := r.Get(strings.TrimPrefix(name, ListPrefix))
		if !ok {
			return nil, false
		}
		return r.derive(KindList, inner), true
	case strings.HasPrefix(name, OptionalPrefix):
		inner, ok := r.Get(strings.TrimPrefix(name, OptionalPrefix))
		if !ok {
			return nil, false
		}
		return inner.OptionalOf(), true
	}
	return nil, false
}

// Lookup is Get with an error for unknown names.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return d, nil
}

func (r *Registry) mustGet(name string) *Descriptor {
	d, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Names lists every registered (including already derived) type name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conversions returns the conversion table bound to this registry.
func (r *Registry) Conversions() *Conversions {
	return r.conversions
}

func (r *Registry) derive(kind Kind, inner *Descriptor) *Descriptor {
	prefix := ListPrefix
	if kind == KindOptional {
		prefix = OptionalPrefix
	}
	name := prefix + inner.name

	r.mu.Lock()
	if d, ok := r.byName[name]; ok {
		r.mu.Unlock()
		return d
	}
	d := &Descriptor{name: name, kind: kind, elem: inner, owner: r}
	if kind == KindList {
		d.check = listCheck(name, inner)
	} else {
		d.check = optionalCheck(inner)
	}
	r.byName[name] = d
	r.mu.Unlock()

	r.bindToAny(d)
	if kind == KindOptional {
		r.conversions.Register(inner, d, identity)
	}
	return d
}

func (r *Registry) bindToAny(d *Descriptor) {
	if d.name == NameAny {
		return
	}
	anyType, ok := r.Get(NameAny)
	if !ok {
		return
	}
	r.conversions.Register(d, anyType, identity)
}
