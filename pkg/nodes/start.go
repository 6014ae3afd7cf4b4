package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/lattice/pkg/future"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/types"
)

// PayloadOutput is the output carrying the whole start payload.
const PayloadOutput = "payload"

// payloadShape exposes one output per key of the "payload" setting, typed by
// the default value, plus the whole payload as an object.
func payloadShape(s graph.Shape) map[string]*types.Descriptor {
	out := map[string]*types.Descriptor{PayloadOutput: types.Object}
	for k, v := range s.Settings.Object("payload") {
		if k == PayloadOutput {
			continue
		}
		out[k] = types.Default().Infer(v)
	}
	return out
}

// emitPayload overlays the external payload on the default payload and
// resolves every output.
func emitPayload(external *types.Box, s graph.Settings) (graph.Outputs, error) {
	defaults := s.Object("payload")
	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	if external != nil && !external.IsNull() {
		obj, err := types.As[map[string]any](*external)
		if err != nil {
			return nil, fmt.Errorf("start payload must be an object: %w", err)
		}
		for k, v := range obj {
			merged[k] = v
		}
	}

	outs := graph.Outputs{}
	for k, v := range defaults {
		if k == PayloadOutput {
			continue
		}
		b, err := types.NewBox(merged[k], types.Default().Infer(v))
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", k, err)
		}
		outs[k] = future.Resolved(b)
	}
	whole, err := types.NewBox(merged, types.Object)
	if err != nil {
		return nil, err
	}
	outs[PayloadOutput] = future.Resolved(whole)
	return outs, nil
}

// ManualStart is triggered by hand (CLI, MCP, API). The keys of its "payload"
// setting become typed outputs; a run payload overrides their values.
type ManualStart struct{ graph.StartBase }

func NewManualStart() *ManualStart {
	return &ManualStart{graph.NewStartBase("manual_start", graph.Settings{
		"payload": types.ObjectValue(nil),
	})}
}

func (*ManualStart) Outputs(s graph.Shape) map[string]*types.Descriptor { return payloadShape(s) }

func (*ManualStart) Emit(_ context.Context, external *types.Box, s graph.Settings) (graph.Outputs, error) {
	return emitPayload(external, s)
}

// subscriptions tracks live event source subscriptions per flow and node.
type subscriptions struct {
	mu   sync.Mutex
	subs map[string]ports.Unsubscribe
}

func subKey(flow graph.FlowRef, n *graph.Node) string {
	return flow.ID + "/" + n.ID()
}

func (s *subscriptions) add(key string, un ports.Unsubscribe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[string]ports.Unsubscribe)
	}
	if prev, ok := s.subs[key]; ok {
		prev()
	}
	s.subs[key] = un
}

func (s *subscriptions) remove(key string) {
	s.mu.Lock()
	un, ok := s.subs[key]
	delete(s.subs, key)
	s.mu.Unlock()
	if ok {
		un()
	}
}

// ErrNoSource is returned by Setup when the node type has no event source.
var ErrNoSource = errors.New("no event source configured")

// WebhookStart is triggered by an HTTP request on its "path". The request
// body is the run payload.
type WebhookStart struct {
	graph.StartBase
	source ports.EventSource
	subs   subscriptions
}

func NewWebhookStart(source ports.EventSource) *WebhookStart {
	return &WebhookStart{
		StartBase: graph.NewStartBase("webhook_start", graph.Settings{
			"path":    types.StringValue(""),
			"payload": types.ObjectValue(nil),
		}),
		source: source,
	}
}

func (*WebhookStart) Outputs(s graph.Shape) map[string]*types.Descriptor { return payloadShape(s) }

func (*WebhookStart) Emit(_ context.Context, external *types.Box, s graph.Settings) (graph.Outputs, error) {
	return emitPayload(external, s)
}

func (w *WebhookStart) IsValid(n *graph.Node, g *graph.Graph) []graph.Issue {
	issues := graph.RequireInputs(n, g)
	if b, _ := n.Setting("path"); strings.TrimSpace(stringOf(b)) == "" {
		issues = append(issues, graph.Issue{NodeID: n.ID(), Message: "webhook path must not be blank"})
	}
	return issues
}

func (w *WebhookStart) Setup(_ context.Context, flow graph.FlowRef, trigger graph.TriggerFunc, n *graph.Node) error {
	if w.source == nil {
		return ErrNoSource
	}
	b, _ := n.Setting("path")
	path := WebhookTopic(stringOf(b))
	un, err := w.source.Subscribe(path, func(ctx context.Context, payload any) error {
		return trigger(ctx, boxPayload(payload))
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", path, err)
	}
	w.subs.add(subKey(flow, n), un)
	return nil
}

func (w *WebhookStart) Teardown(_ context.Context, flow graph.FlowRef, n *graph.Node) error {
	w.subs.remove(subKey(flow, n))
	return nil
}

// WebhookTopic normalizes a webhook path into a subscription topic.
func WebhookTopic(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// EventStart is triggered by a named event on an event bus. The event data is
// emitted unchanged on "data".
type EventStart struct {
	graph.StartBase
	source ports.EventSource
	subs   subscriptions
}

func NewEventStart(source ports.EventSource) *EventStart {
	return &EventStart{
		StartBase: graph.NewStartBase("event_start", graph.Settings{
			"event": types.StringValue(""),
		}),
		source: source,
	}
}

func (*EventStart) Outputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"data": types.Any, "event": types.String}
}

func (*EventStart) Emit(_ context.Context, external *types.Box, s graph.Settings) (graph.Outputs, error) {
	data := types.Null(types.Any)
	if external != nil {
		var err error
		if data, err = types.NewBox(external.Value(), types.Any); err != nil {
			return nil, err
		}
	}
	return graph.Outputs{
		"data":  future.Resolved(data),
		"event": future.Resolved(types.StringValue(s.String("event"))),
	}, nil
}

func (e *EventStart) IsValid(n *graph.Node, g *graph.Graph) []graph.Issue {
	issues := graph.RequireInputs(n, g)
	if b, _ := n.Setting("event"); strings.TrimSpace(stringOf(b)) == "" {
		issues = append(issues, graph.Issue{NodeID: n.ID(), Message: "event name must not be blank"})
	}
	return issues
}

func (e *EventStart) Setup(_ context.Context, flow graph.FlowRef, trigger graph.TriggerFunc, n *graph.Node) error {
	if e.source == nil {
		return ErrNoSource
	}
	b, _ := n.Setting("event")
	event := strings.TrimSpace(stringOf(b))
	un, err := e.source.Subscribe(event, func(ctx context.Context, payload any) error {
		box, err := types.NewBox(payload, types.Any)
		if err != nil {
			return err
		}
		return trigger(ctx, &box)
	})
	if err != nil {
		return fmt.Errorf("event %s: %w", event, err)
	}
	e.subs.add(subKey(flow, n), un)
	return nil
}

func (e *EventStart) Teardown(_ context.Context, flow graph.FlowRef, n *graph.Node) error {
	e.subs.remove(subKey(flow, n))
	return nil
}

func boxPayload(payload any) *types.Box {
	if payload == nil {
		return nil
	}
	b, err := types.NewBox(payload, types.Object)
	if err != nil {
		b = types.MustBox(map[string]any{"body": payload}, types.Object)
	}
	return &b
}

func stringOf(b types.Box) string {
	s, _ := b.Value().(string)
	return s
}
