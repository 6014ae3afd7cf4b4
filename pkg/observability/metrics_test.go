package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	h := m.Hooks()
	ctx := context.Background()

	h.OnNodeStart(ctx, executor.NodeEvent{NodeType: "add"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesRunning))

	h.OnNodeFinish(ctx, executor.NodeEvent{NodeType: "add", Duration: time.Millisecond})
	h.OnNodeFinish(ctx, executor.NodeEvent{NodeType: "add", Err: errors.New("x")})
	h.OnNodeFinish(ctx, executor.NodeEvent{NodeType: "record", Err: errors.New("x"), Upstream: true})
	h.OnRunFinish(ctx, executor.Report{FlowID: "f", Duration: time.Second}, nil)

	assert.Equal(t, -2.0, testutil.ToFloat64(m.NodesRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeRuns.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeRuns.WithLabelValues("add", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeRuns.WithLabelValues("record", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("f", "ok")))
}

func TestNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	second, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, first.Runs, second.Runs)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	h := observability.LogHooks(logging.NewWithWriter(&buf, slog.LevelDebug))
	ctx := context.Background()

	h.OnNodeStart(ctx, executor.NodeEvent{NodeID: "inc", NodeType: "add"})
	h.OnNodeFinish(ctx, executor.NodeEvent{NodeID: "inc", NodeType: "add", Err: errors.New("boom")})
	h.OnRunFinish(ctx, executor.Report{FlowID: "f"}, nil)

	out := buf.String()
	assert.Contains(t, out, "node_enter")
	assert.Contains(t, out, "node_failed")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "run_finished")
}
