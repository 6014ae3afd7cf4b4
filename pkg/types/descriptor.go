package types

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Kind is the representation class behind a Descriptor.
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindObject
	KindList
	KindOptional
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindOptional:
		return "optional"
	default:
		return "custom"
	}
}

// Prefixes of derived type names.
const (
	ListPrefix     = "list$"
	OptionalPrefix = "optional$"
)

// CheckFunc normalizes a raw value into the representation of a type.
// It returns an error when the value cannot conform.
type CheckFunc func(v any) (any, error)

// Descriptor is the runtime identity of a value type.
// Two descriptors are equal iff their names are equal.
type Descriptor struct {
	name  string
	kind  Kind
	elem  *Descriptor
	check CheckFunc
	owner *Registry
}

// Name returns the globally unique type name (e.g. "int", "list$string").
func (d *Descriptor) Name() string { return d.name }

// Kind returns the representation class.
func (d *Descriptor) Kind() Kind { return d.kind }

// Elem returns the inner descriptor of a list or optional type, or nil.
func (d *Descriptor) Elem() *Descriptor { return d.elem }

func (d *Descriptor) String() string { return d.name }

// Equal compares descriptors by name.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.name == other.name
}

// Normalize checks v against the descriptor and returns its canonical form.
func (d *Descriptor) Normalize(v any) (any, error) {
	if d.check == nil {
		return v, nil
	}
	return d.check(v)
}

// ListOf returns the memoized "list$<name>" descriptor.
func (d *Descriptor) ListOf() *Descriptor {
	return d.registry().derive(KindList, d)
}

// OptionalOf returns the memoized "optional$<name>" descriptor.
// Optional types are not nested: the optional of an optional is itself.
func (d *Descriptor) OptionalOf() *Descriptor {
	if d.kind == KindOptional {
		return d
	}
	return d.registry().derive(KindOptional, d)
}

func (d *Descriptor) registry() *Registry {
	if d.owner == nil {
		panic(fmt.Sprintf("types: descriptor %q is not bound to a registry", d.name))
	}
	return d.owner
}

// --- Built-in checks ---

func checkAny(v any) (any, error) {
	return normalizeDynamic(v), nil
}

func checkString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &MismatchError{Type: "string", Reason: "expected string", Value: v}
	}
	return s, nil
}

func checkInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt(uint64(n), v)
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt(n, v)
	case float32:
		return floatToInt(float64(n), v)
	case float64:
		return floatToInt(n, v)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, &MismatchError{Type: "int", Reason: "malformed number", Value: v}
		}
		return floatToInt(f, v)
	default:
		return nil, &MismatchError{Type: "int", Reason: "expected int", Value: v}
	}
}

func uintToInt(n uint64, raw any) (any, error) {
	if n > math.MaxInt64 {
		return nil, &MismatchError{Type: "int", Reason: "value overflows int64", Value: raw}
	}
	return int64(n), nil
}

func floatToInt(f float64, raw any) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, &MismatchError{Type: "int", Reason: "expected int, got float (not a whole number)", Value: raw}
	}
	return int64(f), nil
}

func checkFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, &MismatchError{Type: "float", Reason: "malformed number", Value: v}
		}
		return f, nil
	}
	i, err := checkInt(v)
	if err != nil {
		return nil, &MismatchError{Type: "float", Reason: "expected float", Value: v}
	}
	return float64(i.(int64)), nil
}

func checkBool(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, &MismatchError{Type: "bool", Reason: "expected bool", Value: v}
	}
	return b, nil
}

func checkObject(v any) (any, error) {
	switch m := normalizeDynamic(v).(type) {
	case map[string]any:
		return m, nil
	default:
		return nil, &MismatchError{Type: "object", Reason: "expected object", Value: v}
	}
}

func listCheck(name string, elem *Descriptor) CheckFunc {
	return func(v any) (any, error) {
		rv := reflect.ValueOf(v)
		if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return nil, &MismatchError{Type: name, Reason: "expected list", Value: v}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := elem.Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, &MismatchError{Type: name, Reason: fmt.Sprintf("element %d: %v", i, err)}
			}
			out[i] = item
		}
		return out, nil
	}
}

func optionalCheck(elem *Descriptor) CheckFunc {
	return func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return elem.Normalize(v)
	}
}

// normalizeDynamic canonicalizes decoder artifacts (json.Number, map[any]any)
// so values read from JSON, YAML and MessagePack compare equal. Whole-number
// floats become int64, the form a JSON round trip yields for them.
func normalizeDynamic(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return wholeFloat(f)
		}
		return t.String()
	case int:
		return int64(t)
	case int8, int16, int32, uint8, uint16, uint32:
		i, _ := checkInt(t)
		return i
	case float32:
		return wholeFloat(float64(t))
	case float64:
		return wholeFloat(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeDynamic(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeDynamic(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeDynamic(val)
		}
		return out
	default:
		return v
	}
}

// wholeFloat returns f as int64 when it is a whole number that fits.
func wholeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}
