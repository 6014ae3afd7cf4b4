package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/future"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// Trigger names the start node that originated a run and the payload it carries.
// Other start nodes emit with a nil payload. A payload without a node id goes
// to the only start node of the run.
type Trigger struct {
	NodeID  string
	Payload *types.Box
}

// NodeReport is the outcome of one node in a run.
type NodeReport struct {
	NodeID   string         `json:"node_id"`
	NodeType string         `json:"node_type"`
	Category graph.Category `json:"category"`
	Duration time.Duration  `json:"duration"`
	Err      error          `json:"-"`
	// Upstream is set when the node did not run because an input failed.
	Upstream bool `json:"upstream,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID    string        `json:"run_id"`
	FlowID   string        `json:"flow_id,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Nodes    []NodeReport  `json:"nodes"`
	Ends     int           `json:"ends"`
}

// Failed returns the reports of nodes that failed at their own hand.
func (r Report) Failed() []NodeReport {
	var out []NodeReport
	for _, n := range r.Nodes {
		if n.Err != nil && !n.Upstream {
			out = append(out, n)
		}
	}
	return out
}

// Executor runs one ordered graph once. It owns its results map; executors
// share no mutable state.
type Executor struct {
	order      []*graph.Node
	upstream   map[string][]graph.Connection
	downstream map[string][]graph.Connection

	conv   *types.Conversions
	hooks  Hooks
	logger *slog.Logger
	flowID string
	used   atomic.Bool
}

// Option configures an Executor.
type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(e *Executor) { e.hooks = h }
}

// WithConversions sets the table used to convert values on delivery.
func WithConversions(c *types.Conversions) Option {
	return func(e *Executor) {
		if c != nil {
			e.conv = c
		}
	}
}

// WithFlowID tags reports, hooks and logs with a flow id.
func WithFlowID(id string) Option {
	return func(e *Executor) { e.flowID = id }
}

// New prepares an executor from an execution order and the connection set.
// Connections whose destination input is not on a node of order are ignored.
func New(order []*graph.Node, conns []graph.Connection, opts ...Option) *Executor {
	e := &Executor{
		order:      order,
		upstream:   make(map[string][]graph.Connection),
		downstream: make(map[string][]graph.Connection),
		conv:       types.Default().Conversions(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	inOrder := make(map[string]*graph.Node, len(order))
	for _, n := range order {
		inOrder[n.ID()] = n
	}
	for _, c := range conns {
		to, ok := inOrder[c.To.NodeID]
		if !ok {
			continue
		}
		if _, ok := to.Input(c.To.Name); !ok {
			continue
		}
		e.upstream[c.To.NodeID] = append(e.upstream[c.To.NodeID], c)
		e.downstream[c.From.NodeID] = append(e.downstream[c.From.NodeID], c)
	}
	return e
}

// FromGraph orders g and prepares an executor for it.
func FromGraph(g *graph.Graph, opts ...Option) (*Executor, error) {
	order, ok := g.ExecutionOrder()
	if !ok {
		if err := g.Validate().Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("flow has no execution order")
	}
	opts = append([]Option{WithConversions(g.Conversions())}, opts...)
	return New(order, g.Connections(), opts...), nil
}

// Execute starts the run and returns immediately. The future resolves when
// every node and every terminal effect has finished; it fails with the joined
// errors of the nodes where failures originated.
func (e *Executor) Execute(ctx context.Context, trig Trigger) *future.Future[Report] {
	if !e.used.CompareAndSwap(false, true) {
		return future.Failed[Report](ErrExecutorUsed)
	}
	trig, err := e.resolveTrigger(trig)
	if err != nil {
		return future.Failed[Report](err)
	}
	return future.Go(ctx, func(ctx context.Context) (Report, error) {
		return e.run(ctx, trig)
	})
}

// resolveTrigger checks the trigger node and assigns an unaddressed payload.
func (e *Executor) resolveTrigger(trig Trigger) (Trigger, error) {
	var starts []string
	for _, n := range e.order {
		if n.Category() == graph.CategoryStart {
			starts = append(starts, n.ID())
		}
	}
	if trig.NodeID != "" {
		if !slices.Contains(starts, trig.NodeID) {
			return trig, fmt.Errorf("%w: %s", ErrUnknownTrigger, trig.NodeID)
		}
		return trig, nil
	}
	if trig.Payload == nil || trig.Payload.IsNull() {
		return trig, nil
	}
	if len(starts) != 1 {
		return trig, fmt.Errorf("%w: %d start nodes", ErrAmbiguousTrigger, len(starts))
	}
	trig.NodeID = starts[0]
	return trig, nil
}

type dependency struct {
	conn   graph.Connection
	result *future.Future[types.Box]
}

func (e *Executor) run(ctx context.Context, trig Trigger) (Report, error) {
	rep := Report{RunID: uuid.NewString(), FlowID: e.flowID, Started: time.Now()}
	logger := e.logger.With("flow", e.flowID, "run_id", rep.RunID)

	results := make(map[graph.ConnectionKey]*future.Future[types.Box])
	var runs []*future.Future[NodeReport]

	for _, n := range e.order {
		if n.Category() == graph.CategoryEnd {
			continue
		}
		deps := e.dependencies(n, results)
		promises := make(map[graph.ConnectionKey]*future.Promise[types.Box])
		for _, c := range e.downstream[n.ID()] {
			p := future.New[types.Box]()
			promises[c.Key()] = p
			results[c.Key()] = p.Future()
		}
		runs = append(runs, e.dispatch(ctx, logger, rep.RunID, n, trig, deps, promises))
	}
	for _, n := range e.order {
		if n.Category() != graph.CategoryEnd {
			continue
		}
		rep.Ends++
		runs = append(runs, e.dispatch(ctx, logger, rep.RunID, n, trig, e.dependencies(n, results), nil))
	}

	reports, err := future.All(ctx, runs...)
	rep.Nodes = reports
	rep.Duration = time.Since(rep.Started)
	if err == nil {
		var errs []error
		for _, r := range rep.Failed() {
			errs = append(errs, r.Err)
		}
		err = errors.Join(errs...)
	}

	if err != nil {
		logger.Warn("run failed", "error", err, "duration", rep.Duration)
	} else {
		logger.Debug("run finished", "nodes", len(rep.Nodes), "duration", rep.Duration)
	}
	e.hooks.runFinish(ctx, rep, err)
	return rep, err
}

func (e *Executor) dependencies(n *graph.Node, results map[graph.ConnectionKey]*future.Future[types.Box]) []dependency {
	conns := e.upstream[n.ID()]
	deps := make([]dependency, 0, len(conns))
	for _, c := range conns {
		f, ok := results[c.Key()]
		if !ok {
			// Not a NodeError: the failure is reported against n itself.
			f = future.Failed[types.Box](fmt.Errorf("%w: %s was not dispatched before %s", ErrMissingInput, c.From.NodeID, n.ID()))
		}
		deps = append(deps, dependency{conn: c, result: f})
	}
	return deps
}

// dispatch runs n on its own goroutine. The returned future always resolves;
// the node outcome is carried in the report.
func (e *Executor) dispatch(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	n *graph.Node,
	trig Trigger,
	deps []dependency,
	promises map[graph.ConnectionKey]*future.Promise[types.Box],
) *future.Future[NodeReport] {
	ev := NodeEvent{RunID: runID, FlowID: e.flowID, NodeID: n.ID(), NodeType: n.Type().Name(), Category: n.Category()}
	logger = logger.With("node_id", n.ID(), "node_type", ev.NodeType)

	p := future.New[NodeReport]()
	go func() {
		e.hooks.nodeStart(ctx, ev)
		logger.Debug("node dispatched")
		began := time.Now()

		upstream, err := e.runNode(ctx, n, trig, deps, promises)

		ev.Duration = time.Since(began)
		ev.Err = err
		ev.Upstream = upstream
		switch {
		case err == nil:
			logger.Debug("node finished", "duration", ev.Duration)
		case upstream:
			logger.Debug("node skipped", "error", err)
		default:
			logger.Warn("node failed", "error", err)
		}
		e.hooks.nodeFinish(ctx, ev)

		p.Resolve(NodeReport{
			NodeID:   ev.NodeID,
			NodeType: ev.NodeType,
			Category: ev.Category,
			Duration: ev.Duration,
			Err:      err,
			Upstream: upstream,
		})
	}()
	return p.Future()
}

func (e *Executor) runNode(
	ctx context.Context,
	n *graph.Node,
	trig Trigger,
	deps []dependency,
	promises map[graph.ConnectionKey]*future.Promise[types.Box],
) (upstream bool, err error) {
	inputs, upstream, err := e.gather(ctx, n, deps)
	if err != nil {
		if !upstream {
			err = e.nodeError(n, err)
		}
		rejectAll(promises, err)
		return upstream, err
	}

	outs, err := invoke(ctx, n, trig, inputs)
	if err != nil {
		err = e.nodeError(n, err)
		rejectAll(promises, err)
		return false, err
	}
	return false, e.fanOut(ctx, n, outs, promises)
}

// gather awaits every upstream value of n and converts it to the input's
// declared type. Unconnected optional inputs receive a null box.
// The bool reports whether the failure came from an upstream node.
func (e *Executor) gather(ctx context.Context, n *graph.Node, deps []dependency) (map[string]types.Box, bool, error) {
	inputs := make(map[string]types.Box, len(deps))
	for _, d := range deps {
		b, err := d.result.Await(ctx)
		if err != nil {
			var nerr *NodeError
			return nil, errors.As(err, &nerr), err
		}
		in, _ := n.Input(d.conn.To.Name)
		converted, err := e.conv.Convert(b, in.Type)
		if err != nil {
			return nil, false, fmt.Errorf("input %q: %w", in.Name, err)
		}
		inputs[in.Name] = converted
	}
	for _, in := range n.Inputs() {
		if _, ok := inputs[in.Name]; ok {
			continue
		}
		if !in.Optional() {
			return nil, false, fmt.Errorf("%w: %q", ErrMissingInput, in.Name)
		}
		inputs[in.Name] = types.Null(in.Type)
	}
	return inputs, false, nil
}

// invoke calls the node type's computation, turning panics into errors.
// End nodes are awaited here; their Outputs are nil.
func invoke(ctx context.Context, n *graph.Node, trig Trigger, inputs map[string]types.Box) (outs graph.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &future.PanicError{Value: r}
		}
	}()

	settings := n.Settings()
	switch n.Category() {
	case graph.CategoryStart:
		var external *types.Box
		if trig.NodeID == n.ID() {
			external = trig.Payload
		}
		return n.Type().(graph.StartType).Emit(ctx, external, settings)
	case graph.CategoryProcess:
		return n.Type().(graph.ProcessType).Compute(ctx, inputs, settings)
	case graph.CategoryEnd:
		done := n.Type().(graph.EndType).Effect(ctx, inputs, settings)
		if done == nil {
			return nil, nil
		}
		_, err := done.Await(ctx)
		return nil, err
	}
	return nil, fmt.Errorf("unknown node category %s", n.Category())
}

// fanOut forwards each produced output to the connections it feeds and waits
// until all of them settle. It returns the first failure of this node.
func (e *Executor) fanOut(ctx context.Context, n *graph.Node, outs graph.Outputs, promises map[graph.ConnectionKey]*future.Promise[types.Box]) error {
	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() { first = err })
	}

	for key, p := range promises {
		f, ok := outs[key.FromName]
		if !ok || f == nil {
			err := e.nodeError(n, fmt.Errorf("%w: %q", ErrMissingOutput, key.FromName))
			p.Reject(err)
			fail(err)
			continue
		}
		declared, _ := n.Output(key.FromName)
		wg.Add(1)
		go func(f *future.Future[types.Box], p *future.Promise[types.Box]) {
			defer wg.Done()
			b, err := f.Await(ctx)
			if err == nil {
				b, err = e.narrow(b, declared.Type)
			}
			if err != nil {
				err = e.nodeError(n, err)
				p.Reject(err)
				fail(err)
				return
			}
			p.Resolve(b)
		}(f, p)
	}
	wg.Wait()
	return first
}

// narrow re-types a produced value to its output's declared type. Values
// produced as "any" by generic nodes are re-checked against the live type.
func (e *Executor) narrow(b types.Box, declared *types.Descriptor) (types.Box, error) {
	if declared == nil || b.Type().Equal(declared) {
		return b, nil
	}
	if e.conv.CanConvert(b.Type(), declared) {
		return e.conv.Convert(b, declared)
	}
	return types.NewBox(b.Value(), declared)
}

func (e *Executor) nodeError(n *graph.Node, err error) error {
	return &NodeError{NodeID: n.ID(), NodeType: n.Type().Name(), Err: err}
}

func rejectAll(promises map[graph.ConnectionKey]*future.Promise[types.Box], err error) {
	for _, p := range promises {
		p.Reject(err)
	}
}
