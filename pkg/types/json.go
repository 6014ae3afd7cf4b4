package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseJSON parses externally supplied JSON into a box of type t.
// Numbers are decoded without loss before normalization.
func (r *Registry) ParseJSON(raw []byte, t *Descriptor) (Box, error) {
	var v any
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return Box{}, fmt.Errorf("types: parse %s: %w", t.nameOrNil(), err)
		}
	}
	return NewBox(v, t)
}

// FromDocument resolves the document's type name and boxes its value.
func (r *Registry) FromDocument(doc BoxDocument) (Box, error) {
	t, err := r.Lookup(doc.Type)
	if err != nil {
		return Box{}, err
	}
	return NewBox(doc.Value, t)
}

// DecodeBox reads the {"type": ..., "value": ...} form produced by Box.MarshalJSON.
func (r *Registry) DecodeBox(data []byte) (Box, error) {
	var doc struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Box{}, fmt.Errorf("types: decode box: %w", err)
	}
	t, err := r.Lookup(doc.Type)
	if err != nil {
		return Box{}, err
	}
	return r.ParseJSON(doc.Value, t)
}

// Infer picks the built-in descriptor that best describes v.
// Slices become list$any and nil becomes any.
func (r *Registry) Infer(v any) *Descriptor {
	switch normalizeDynamic(v).(type) {
	case string:
		return r.mustGet(NameString)
	case int64, uint, uint64:
		return r.mustGet(NameInt)
	case float64:
		return r.mustGet(NameFloat)
	case bool:
		return r.mustGet(NameBool)
	case map[string]any:
		return r.mustGet(NameObject)
	case []any:
		return r.mustGet(NameAny).ListOf()
	default:
		return r.mustGet(NameAny)
	}
}
