package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/types"
)

var (
	// ErrNotActive is returned for flows that are not activated.
	ErrNotActive = errors.New("flow is not active")
	// ErrUnknownStart is returned when a run names a node that is not a start node of the flow.
	ErrUnknownStart = errors.New("not a start node of the flow")
)

// DefaultLockTTL bounds how long a replica may hold a flow's distributed lock.
const DefaultLockTTL = 30 * time.Second

// activation is the frozen form of an active flow.
type activation struct {
	ref    graph.FlowRef
	order  []*graph.Node
	conns  []graph.Connection
	conv   *types.Conversions
	starts []*graph.Node
}

func (a *activation) start(id string) bool {
	for _, n := range a.starts {
		if n.ID() == id {
			return true
		}
	}
	return false
}

// Manager keeps the set of active flows and serializes their runs.
type Manager struct {
	flowsMu sync.RWMutex
	flows   map[string]*activation

	lockMu  sync.Mutex
	locks   map[string]*lockEntry
	locker  ports.DistributedLocker
	lockTTL time.Duration

	hooks  executor.Hooks
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithHooks installs executor hooks on every run.
func WithHooks(h executor.Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}

// WithLogger configures a logger for the Manager and its runs.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager with no active flows.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		flows:   make(map[string]*activation),
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate validates g, freezes it and sets up its start nodes. A flow that
// is already active is deactivated first, so Activate doubles as reload.
func (m *Manager) Activate(ctx context.Context, flow graph.FlowRef, g *graph.Graph) error {
	if err := g.Validate().Err(); err != nil {
		return fmt.Errorf("flow %s: %w", flow.ID, err)
	}
	order, ok := g.ExecutionOrder()
	if !ok {
		return fmt.Errorf("flow %s has no execution order", flow.ID)
	}

	act := &activation{
		ref:   flow,
		order: order,
		conns: g.Connections(),
		conv:  g.Conversions(),
	}
	for _, n := range order {
		if n.Category() == graph.CategoryStart {
			act.starts = append(act.starts, n)
		}
	}

	if _, active := m.lookup(flow.ID); active {
		if err := m.Deactivate(ctx, flow.ID); err != nil {
			m.logger.Warn("teardown before re-activation failed", "flow", flow.ID, "err", err)
		}
	}

	for i, n := range act.starts {
		st := n.Type().(graph.StartType)
		if err := st.Setup(ctx, flow, m.triggerFor(flow.ID, n.ID()), n); err != nil {
			teardown(ctx, flow, act.starts[:i])
			return fmt.Errorf("flow %s: setup of %s: %w", flow.ID, n.ID(), err)
		}
	}

	m.flowsMu.Lock()
	m.flows[flow.ID] = act
	m.flowsMu.Unlock()

	m.logger.Info("flow activated", "flow", flow.ID, "nodes", len(order), "starts", len(act.starts))
	return nil
}

// Deactivate tears down every start node of the flow.
func (m *Manager) Deactivate(ctx context.Context, flowID string) error {
	m.flowsMu.Lock()
	act, ok := m.flows[flowID]
	delete(m.flows, flowID)
	m.flowsMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotActive, flowID)
	}

	err := teardown(ctx, act.ref, act.starts)
	m.logger.Info("flow deactivated", "flow", flowID)
	return err
}

// Close deactivates every flow.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, id := range m.Active() {
		if err := m.Deactivate(ctx, id); err != nil && !errors.Is(err, ErrNotActive) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active lists the ids of active flows.
func (m *Manager) Active() []string {
	m.flowsMu.RLock()
	defer m.flowsMu.RUnlock()
	ids := make([]string, 0, len(m.flows))
	for id := range m.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Starts returns the ids of the start nodes of an active flow, in execution order.
func (m *Manager) Starts(flowID string) ([]string, error) {
	act, ok := m.lookup(flowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, flowID)
	}
	ids := make([]string, len(act.starts))
	for i, n := range act.starts {
		ids[i] = n.ID()
	}
	return ids, nil
}

// Run executes the active flow once and waits for it. An empty
// trig.NodeID runs the flow with every start node emitting its defaults.
func (m *Manager) Run(ctx context.Context, flowID string, trig executor.Trigger) (executor.Report, error) {
	act, ok := m.lookup(flowID)
	if !ok {
		return executor.Report{}, fmt.Errorf("%w: %s", ErrNotActive, flowID)
	}
	if trig.NodeID != "" && !act.start(trig.NodeID) {
		return executor.Report{}, fmt.Errorf("%w: %s", ErrUnknownStart, trig.NodeID)
	}

	var (
		report executor.Report
		runErr error
	)
	err := m.WithLock(ctx, flowID, func(ctx context.Context) error {
		ex := executor.New(act.order, act.conns,
			executor.WithConversions(act.conv),
			executor.WithFlowID(flowID),
			executor.WithHooks(m.hooks),
			executor.WithLogger(m.logger),
		)
		report, runErr = ex.Execute(ctx, trig).Await(ctx)
		return nil
	})
	if err != nil {
		return executor.Report{}, err
	}
	if runErr != nil {
		m.logger.Warn("flow run failed", "flow", flowID, "trigger", trig.NodeID, "err", runErr)
	}
	return report, runErr
}

func (m *Manager) lookup(flowID string) (*activation, bool) {
	m.flowsMu.RLock()
	defer m.flowsMu.RUnlock()
	act, ok := m.flows[flowID]
	return act, ok
}

// triggerFor binds a start node to runs of its flow.
func (m *Manager) triggerFor(flowID, nodeID string) graph.TriggerFunc {
	return func(ctx context.Context, payload *types.Box) error {
		_, err := m.Run(ctx, flowID, executor.Trigger{NodeID: nodeID, Payload: payload})
		return err
	}
}

func teardown(ctx context.Context, flow graph.FlowRef, starts []*graph.Node) error {
	var errs []error
	for _, n := range starts {
		st := n.Type().(graph.StartType)
		if err := st.Teardown(ctx, flow, n); err != nil {
			errs = append(errs, fmt.Errorf("teardown of %s: %w", n.ID(), err))
		}
	}
	return errors.Join(errs...)
}
