package types

import (
	"fmt"
	"strconv"
	"sync"
)

// ConvertFunc maps a value of the source type to a value of the destination
// type. It has no error path: only total conversions may be registered.
type ConvertFunc func(v any) any

type conversionKey struct {
	from string
	to   string
}

// Conversions is an append-only table of one-directional conversions.
// Transitive conversions are never derived.
type Conversions struct {
	mu    sync.RWMutex
	table map[conversionKey]ConvertFunc
}

// NewConversions creates an empty table.
func NewConversions() *Conversions {
	return &Conversions{table: make(map[conversionKey]ConvertFunc)}
}

// Register stores fn for (from, to). The last registration for a pair wins.
func (c *Conversions) Register(from, to *Descriptor, fn ConvertFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table[conversionKey{from.name, to.name}] = fn
}

// CanConvert reports whether a value of type from can flow into type to.
func (c *Conversions) CanConvert(from, to *Descriptor) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Equal(to) {
		return true
	}
	_, ok := c.lookup(from, to)
	return ok
}

// Convert returns b unchanged when it already has type to. Otherwise it applies
// the registered function and re-checks the result against the destination.
func (c *Conversions) Convert(b Box, to *Descriptor) (Box, error) {
	if b.typ == nil || to == nil {
		return Box{}, &ConversionError{From: b.typ.nameOrNil(), To: to.nameOrNil(), Reason: "missing type"}
	}
	if b.typ.Equal(to) {
		return b, nil
	}

	fn, ok := c.lookup(b.typ, to)
	if !ok {
		return Box{}, &ConversionError{From: b.typ.name, To: to.name, Reason: "no conversion registered"}
	}

	out, panicked := apply(fn, b.value)
	if panicked != nil {
		return Box{}, &ConversionError{From: b.typ.name, To: to.name, Reason: fmt.Sprintf("conversion panicked: %v", panicked)}
	}
	if out == nil && to.kind != KindOptional && to.kind != KindAny {
		return Box{}, &ConversionError{From: b.typ.name, To: to.name, Reason: "conversion returned no value"}
	}
	norm, err := to.Normalize(out)
	if err != nil {
		return Box{}, &ConversionError{From: b.typ.name, To: to.name, Reason: "result rejected: " + err.Error()}
	}
	return Box{value: norm, typ: to}, nil
}

func (c *Conversions) lookup(from, to *Descriptor) (ConvertFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.table[conversionKey{from.name, to.name}]
	return fn, ok
}

func (d *Descriptor) nameOrNil() string {
	if d == nil {
		return "<nil>"
	}
	return d.name
}

func apply(fn ConvertFunc, v any) (out any, panicked any) {
	defer func() {
		panicked = recover()
	}()
	return fn(v), nil
}

func identity(v any) any { return v }

func registerDefaultConversions(r *Registry) {
	intType := r.mustGet(NameInt)
	floatType := r.mustGet(NameFloat)
	stringType := r.mustGet(NameString)
	boolType := r.mustGet(NameBool)

	conv := r.conversions
	conv.Register(intType, floatType, func(v any) any {
		return float64(v.(int64))
	})
	conv.Register(intType, stringType, func(v any) any {
		return strconv.FormatInt(v.(int64), 10)
	})
	conv.Register(floatType, stringType, func(v any) any {
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	})
	conv.Register(boolType, stringType, func(v any) any {
		return strconv.FormatBool(v.(bool))
	})
}
