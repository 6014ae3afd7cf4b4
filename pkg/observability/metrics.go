package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/lattice/pkg/executor"
)

// Namespace prefixes every metric name.
const Namespace = "lattice"

// Metrics holds the collectors fed by executor hooks.
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	NodeRuns     *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	NodesRunning prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered are reused, so NewMetrics may be called once
// per engine against a shared registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Total number of flow runs by outcome.",
			},
			[]string{"flow", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of flow runs.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"flow"},
		),
		NodeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "node_runs_total",
				Help:      "Total number of node computations by node type and outcome.",
			},
			[]string{"node_type", "status"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node computations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node_type"},
		),
		NodesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "nodes_running",
			Help:      "Node computations currently in flight.",
		}),
	}

	var err error
	if m.Runs, err = reuse(reg, m.Runs); err != nil {
		return nil, err
	}
	if m.RunDuration, err = reuse(reg, m.RunDuration); err != nil {
		return nil, err
	}
	if m.NodeRuns, err = reuse(reg, m.NodeRuns); err != nil {
		return nil, err
	}
	if m.NodeDuration, err = reuse(reg, m.NodeDuration); err != nil {
		return nil, err
	}
	if m.NodesRunning, err = reuse(reg, m.NodesRunning); err != nil {
		return nil, err
	}
	return m, nil
}

// reuse registers c, or returns the collector already registered under the same descriptor.
func reuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns executor hooks that feed the collectors.
func (m *Metrics) Hooks() executor.Hooks {
	return executor.Hooks{
		OnNodeStart: func(context.Context, executor.NodeEvent) {
			m.NodesRunning.Inc()
		},
		OnNodeFinish: func(_ context.Context, ev executor.NodeEvent) {
			m.NodesRunning.Dec()
			m.NodeRuns.WithLabelValues(ev.NodeType, status(ev.Err, ev.Upstream)).Inc()
			if !ev.Upstream {
				m.NodeDuration.WithLabelValues(ev.NodeType).Observe(ev.Duration.Seconds())
			}
		},
		OnRunFinish: func(_ context.Context, r executor.Report, err error) {
			m.Runs.WithLabelValues(r.FlowID, status(err, false)).Inc()
			m.RunDuration.WithLabelValues(r.FlowID).Observe(r.Duration.Seconds())
		},
	}
}

func status(err error, upstream bool) string {
	switch {
	case upstream:
		return "skipped"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}
