package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/types"
)

// Loader adapts a Loam repository to the FlowLoader and Watchable ports.
// It is read-only: flows are authored as files and picked up by id.
type Loader struct {
	Repo  *loam.TypedRepository[FlowMetadata]
	types *types.Registry
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[FlowMetadata]) *Loader {
	return &Loader{
		Repo:  repo,
		types: types.Default(),
	}
}

// WithTypes sets the registry used to infer the type of bare setting values.
func (l *Loader) WithTypes(r *types.Registry) *Loader {
	l.types = r
	return l
}

// LoadFlow resolves id against the normalized ids of the repository and
// converts the matching document.
func (l *Loader) LoadFlow(ctx context.Context, id string) (*document.Flow, error) {
	index, err := l.index(ctx)
	if err != nil {
		return nil, err
	}
	path, ok := index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrFlowNotFound, id)
	}

	doc, err := l.Repo.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return l.toFlow(id, doc.Data, doc.Content)
}

// ListFlows lists all flow ids in the repository.
func (l *Loader) ListFlows(ctx context.Context) ([]string, error) {
	index, err := l.index(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// index maps normalized ids to document paths, rejecting collisions.
func (l *Loader) index(ctx context.Context) (map[string]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	for _, doc := range docs {
		// Use the ID from metadata if available, otherwise filename ID
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
	}
	return seen, nil
}

func (l *Loader) toFlow(id string, meta FlowMetadata, content string) (*document.Flow, error) {
	f := &document.Flow{
		ID:          id,
		Name:        meta.Name,
		Description: meta.Description,
		Nodes:       make([]document.Node, 0, len(meta.Nodes)),
		Connections: meta.Connections,
	}
	if f.Description == "" {
		f.Description = strings.TrimSpace(content)
	}

	for _, n := range meta.Nodes {
		settings, err := l.settings(n.Settings)
		if err != nil {
			return nil, fmt.Errorf("flow %s node %s: %w", id, n.ID, err)
		}
		f.Nodes = append(f.Nodes, document.Node{
			ID:       n.ID,
			Type:     n.Type,
			Settings: settings,
			Layout:   n.Layout,
		})
	}
	return f, nil
}

func (l *Loader) settings(raw map[string]any) (map[string]document.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]document.Value, len(raw))
	for name, v := range raw {
		if typed, ok := asTypedValue(v); ok {
			var val document.Value
			if err := mapstructure.Decode(typed, &val); err != nil {
				return nil, fmt.Errorf("setting %s: %w", name, err)
			}
			out[name] = val
			continue
		}
		b, err := types.NewBox(normalizeMap(v), l.types.Infer(v))
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, err)
		}
		out[name] = document.FromBox(b)
	}
	return out, nil
}

// asTypedValue reports whether v is a {type, value} pair.
func asTypedValue(v any) (map[string]any, bool) {
	m, ok := normalizeMap(v).(map[string]any)
	if !ok || len(m) != 2 {
		return nil, false
	}
	if _, ok := m["type"].(string); !ok {
		return nil, false
	}
	_, ok = m["value"]
	return m, ok
}

// normalizeMap turns YAML map[any]any values into map[string]any.
func normalizeMap(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			val[k] = normalizeMap(sub)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprintf("%v", k)] = normalizeMap(sub)
		}
		return out
	case []any:
		for i, sub := range val {
			val[i] = normalizeMap(sub)
		}
		return val
	default:
		return v
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
