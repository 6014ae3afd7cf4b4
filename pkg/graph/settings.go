package graph

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/lattice/pkg/types"
)

// Settings maps setting names to boxed values.
type Settings map[string]types.Box

// Clone returns a shallow copy. Boxes are immutable, so this is a full copy.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Get returns the named setting.
func (s Settings) Get(name string) (types.Box, bool) {
	b, ok := s[name]
	return b, ok
}

// Names returns the setting names in order.
func (s Settings) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values unboxes every setting.
func (s Settings) Values() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v.Value()
	}
	return out
}

// Decode copies the unboxed settings into out, a pointer to a struct tagged
// with `mapstructure`.
func (s Settings) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(s.Values()); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

// String returns a string setting or "" when absent.
func (s Settings) String(name string) string {
	v, _ := s[name].Value().(string)
	return v
}

// Int returns an int setting or 0 when absent.
func (s Settings) Int(name string) int64 {
	v, _ := s[name].Value().(int64)
	return v
}

// Object returns an object setting or nil when absent.
func (s Settings) Object(name string) map[string]any {
	v, _ := s[name].Value().(map[string]any)
	return v
}
