package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/executor"
)

// LogHooks returns executor hooks that write one structured record per node
// and per run.
func LogHooks(logger *slog.Logger) executor.Hooks {
	return executor.Hooks{
		OnNodeStart: func(ctx context.Context, ev executor.NodeEvent) {
			logger.DebugContext(ctx, "node_enter",
				"run_id", ev.RunID,
				"flow", ev.FlowID,
				"node_id", ev.NodeID,
				"type", ev.NodeType,
			)
		},
		OnNodeFinish: func(ctx context.Context, ev executor.NodeEvent) {
			if ev.Err != nil && !ev.Upstream {
				logger.WarnContext(ctx, "node_failed",
					"run_id", ev.RunID,
					"flow", ev.FlowID,
					"node_id", ev.NodeID,
					"type", ev.NodeType,
					"err", ev.Err,
				)
				return
			}
			logger.DebugContext(ctx, "node_leave",
				"run_id", ev.RunID,
				"node_id", ev.NodeID,
				"duration", ev.Duration,
				"skipped", ev.Upstream,
			)
		},
		OnRunFinish: func(ctx context.Context, r executor.Report, err error) {
			attrs := []any{
				"run_id", r.RunID,
				"flow", r.FlowID,
				"nodes", len(r.Nodes),
				"duration", r.Duration,
			}
			if err != nil {
				logger.WarnContext(ctx, "run_failed", append(attrs, "err", err)...)
				return
			}
			logger.InfoContext(ctx, "run_finished", attrs...)
		},
	}
}
