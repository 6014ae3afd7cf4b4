package executor

import (
	"context"
	"time"

	"github.com/aretw0/lattice/pkg/graph"
)

// NodeEvent describes a node being dispatched or finishing.
type NodeEvent struct {
	RunID    string
	FlowID   string
	NodeID   string
	NodeType string
	Category graph.Category
	// Set on finish only.
	Duration time.Duration
	Err      error
	Upstream bool
}

// Hooks are optional callbacks for observability.
// They run on the node's goroutine and must not block.
type Hooks struct {
	OnNodeStart  func(context.Context, NodeEvent)
	OnNodeFinish func(context.Context, NodeEvent)
	OnRunFinish  func(context.Context, Report, error)
}

// Merge returns hooks that call h and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnNodeStart:  chainNode(h.OnNodeStart, other.OnNodeStart),
		OnNodeFinish: chainNode(h.OnNodeFinish, other.OnNodeFinish),
		OnRunFinish: func(ctx context.Context, r Report, err error) {
			if h.OnRunFinish != nil {
				h.OnRunFinish(ctx, r, err)
			}
			if other.OnRunFinish != nil {
				other.OnRunFinish(ctx, r, err)
			}
		},
	}
}

func chainNode(a, b func(context.Context, NodeEvent)) func(context.Context, NodeEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, ev NodeEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}

func (h Hooks) nodeStart(ctx context.Context, ev NodeEvent) {
	if h.OnNodeStart != nil {
		h.OnNodeStart(ctx, ev)
	}
}

func (h Hooks) nodeFinish(ctx context.Context, ev NodeEvent) {
	if h.OnNodeFinish != nil {
		h.OnNodeFinish(ctx, ev)
	}
}

func (h Hooks) runFinish(ctx context.Context, r Report, err error) {
	if h.OnRunFinish != nil {
		h.OnRunFinish(ctx, r, err)
	}
}
