package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.FlowStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks, on save, string settings whose name matches one
// of the patterns, and matching keys nested inside object settings. The
// caller's document is left untouched.
func NewRedactMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.FlowStore) ports.FlowStore {
		return &redactMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, f *document.Flow) error {
	if f == nil {
		return m.next.Save(ctx, f)
	}
	masked := document.Clone(f)
	for _, n := range masked.Nodes {
		for name, v := range n.Settings {
			switch val := v.Value.(type) {
			case string:
				if m.matches(name) {
					n.Settings[name] = document.Value{Type: v.Type, Value: Mask}
				}
			case map[string]any:
				m.maskMap(val)
			}
		}
	}
	return m.next.Save(ctx, masked)
}

func (m *redactMiddleware) Load(ctx context.Context, id string) (*document.Flow, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *redactMiddleware) maskMap(obj map[string]any) {
	for k, v := range obj {
		if m.matches(k) {
			obj[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			m.maskMap(sub)
		}
	}
}
