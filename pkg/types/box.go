package types

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Box pairs a value with the descriptor it conforms to. Boxes are immutable;
// With returns a new box.
type Box struct {
	value any
	typ   *Descriptor
}

// NewBox normalizes v against t and boxes it.
func NewBox(v any, t *Descriptor) (Box, error) {
	if t == nil {
		return Box{}, fmt.Errorf("types: cannot box %T without a type", v)
	}
	norm, err := t.Normalize(v)
	if err != nil {
		return Box{}, err
	}
	return Box{value: norm, typ: t}, nil
}

// MustBox is NewBox for literals known to conform.
func MustBox(v any, t *Descriptor) Box {
	b, err := NewBox(v, t)
	if err != nil {
		panic(err)
	}
	return b
}

// Null returns the empty box of an optional (or any) type.
func Null(t *Descriptor) Box {
	return Box{typ: t}
}

// Value returns the boxed value.
func (b Box) Value() any { return b.value }

// Type returns the descriptor.
func (b Box) Type() *Descriptor { return b.typ }

// IsZero reports whether b was never constructed.
func (b Box) IsZero() bool { return b.typ == nil }

// IsNull reports whether the boxed value is nil.
func (b Box) IsNull() bool { return b.value == nil }

// With boxes a new value under the same type.
func (b Box) With(v any) (Box, error) {
	return NewBox(v, b.typ)
}

// Equal compares type names and values.
func (b Box) Equal(other Box) bool {
	return b.typ.Equal(other.typ) && reflect.DeepEqual(b.value, other.value)
}

func (b Box) String() string {
	return fmt.Sprintf("%v(%s)", b.value, b.typ.nameOrNil())
}

// As reads the boxed value as T, the check applied where a value leaves a box.
func As[T any](b Box) (T, error) {
	v, ok := b.value.(T)
	if !ok {
		var zero T
		return zero, &MismatchError{Type: b.typ.nameOrNil(), Reason: fmt.Sprintf("cannot read as %T", zero), Value: b.value}
	}
	return v, nil
}

// BoxDocument is the structured form of a Box.
type BoxDocument struct {
	Type  string `json:"type" yaml:"type" msgpack:"type" mapstructure:"type"`
	Value any    `json:"value" yaml:"value" msgpack:"value" mapstructure:"value"`
}

// Document returns the structured form of b.
func (b Box) Document() BoxDocument {
	return BoxDocument{Type: b.typ.nameOrNil(), Value: b.value}
}

// MarshalJSON encodes b as {"type": ..., "value": ...}.
func (b Box) MarshalJSON() ([]byte, error) {
	if b.typ == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.Document())
}

// Convenience constructors over the process-wide built-ins.

func StringValue(s string) Box { return Box{value: s, typ: String} }

func IntValue(i int64) Box { return Box{value: i, typ: Int} }

func FloatValue(f float64) Box { return Box{value: f, typ: Float} }

func BoolValue(v bool) Box { return Box{value: v, typ: Bool} }

// ObjectValue boxes m as an object; nested decoder artifacts are normalized.
func ObjectValue(m map[string]any) Box {
	if m == nil {
		m = map[string]any{}
	}
	return MustBox(m, Object)
}
