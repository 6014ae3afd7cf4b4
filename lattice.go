package lattice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/document"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/nodes"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/trigger"
	"github.com/aretw0/lattice/pkg/types"
)

// ErrNotWatchable is returned by Watch when the loader cannot report changes.
var ErrNotWatchable = errors.New("flow loader does not support watching")

// Engine is the high-level entry point for the Lattice library.
// It wires the type and node registries, a flow store, the trigger manager
// and observability into one value hosts can embed.
type Engine struct {
	types    *types.Registry
	nodes    *registry.Registry
	recorder *nodes.Recorder
	decoder  *document.Decoder

	store    ports.FlowStore
	loader   ports.FlowLoader
	triggers *trigger.Manager

	webhooks ports.EventSource
	events   ports.EventSource
	commands ports.CommandRunner
	locker   ports.DistributedLocker
	extra    []graph.NodeType

	hooks      executor.Hooks
	registerer prometheus.Registerer
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the flow store. The default is an in-memory store.
func WithStore(s ports.FlowStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLoader sets a read-only flow source, bypassing the store for reads.
func WithLoader(l ports.FlowLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithWebhooks sets the event source used by webhook_start nodes.
func WithWebhooks(src ports.EventSource) Option {
	return func(e *Engine) {
		e.webhooks = src
	}
}

// WithEvents sets the event source used by event_start nodes.
func WithEvents(src ports.EventSource) Option {
	return func(e *Engine) {
		e.events = src
	}
}

// WithCommands sets the runner used by exec nodes.
func WithCommands(r ports.CommandRunner) Option {
	return func(e *Engine) {
		e.commands = r
	}
}

// WithLocker serializes runs of a flow across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithNodeTypes registers additional node types next to the standard ones.
func WithNodeTypes(nts ...graph.NodeType) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, nts...)
	}
}

// WithTypes replaces the default type registry.
func WithTypes(r *types.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.types = r
		}
	}
}

// WithLifecycleHooks registers observability hooks on every run.
func WithLifecycleHooks(h executor.Hooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(h)
	}
}

// WithMetrics exports Prometheus metrics through reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine with the standard node types registered.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		types:    types.Default(),
		nodes:    registry.NewRegistry(),
		recorder: nodes.NewRecorder(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.loader == nil {
		e.loader = ports.StoreLoader{Store: e.store}
	}

	if err := nodes.Register(e.nodes, nodes.Deps{
		Logger:   e.logger,
		Recorder: e.recorder,
		Types:    e.types,
		Webhooks: e.webhooks,
		Events:   e.events,
		Commands: e.commands,
	}); err != nil {
		return nil, err
	}
	for _, nt := range e.extra {
		if err := e.nodes.Register(nt); err != nil {
			return nil, err
		}
	}

	if e.registerer != nil {
		m, err := observability.NewMetrics(e.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		e.metrics = m
		e.hooks = e.hooks.Merge(m.Hooks())
	}
	e.hooks = e.hooks.Merge(observability.LogHooks(e.logger))

	e.decoder = document.NewDecoder(e.nodes,
		document.WithTypes(e.types),
		document.WithGraphOptions(
			graph.WithLogger(e.logger),
			graph.WithConversions(e.types.Conversions()),
		),
	)

	topts := []trigger.Option{trigger.WithHooks(e.hooks), trigger.WithLogger(e.logger)}
	if e.locker != nil {
		topts = append(topts, trigger.WithLocker(e.locker))
	}
	e.triggers = trigger.NewManager(topts...)
	return e, nil
}

// Types returns the type registry.
func (e *Engine) Types() *types.Registry { return e.types }

// Nodes returns the node-type registry.
func (e *Engine) Nodes() *registry.Registry { return e.nodes }

// Recorder collects the values of record nodes.
func (e *Engine) Recorder() *nodes.Recorder { return e.recorder }

// Store returns the flow store.
func (e *Engine) Store() ports.FlowStore { return e.store }

// Triggers returns the trigger manager.
func (e *Engine) Triggers() *trigger.Manager { return e.triggers }

// Metrics returns the exported collectors, or nil without WithMetrics.
func (e *Engine) Metrics() *observability.Metrics { return e.metrics }

// NewGraph returns an empty graph bound to the engine's conversions.
func (e *Engine) NewGraph() *graph.Graph {
	return graph.New(graph.WithLogger(e.logger), graph.WithConversions(e.types.Conversions()))
}

// Decode rebuilds the graph of a flow document.
func (e *Engine) Decode(f *document.Flow) (*graph.Graph, error) {
	return e.decoder.Decode(f)
}

// Encode turns a graph into its document form.
func (e *Engine) Encode(id, name string, g *graph.Graph) *document.Flow {
	return document.Encode(id, name, g)
}

// Validate decodes f and returns the validity issues of its graph. The
// error is set only when the document cannot be decoded.
func (e *Engine) Validate(f *document.Flow) (graph.Issues, error) {
	g, err := e.Decode(f)
	if err != nil {
		return nil, err
	}
	return g.Validate(), nil
}

// LoadFlow reads a flow document through the loader.
func (e *Engine) LoadFlow(ctx context.Context, id string) (*document.Flow, error) {
	return e.loader.LoadFlow(ctx, id)
}

// ListFlows summarizes every flow the loader knows about.
func (e *Engine) ListFlows(ctx context.Context) ([]document.Summary, error) {
	ids, err := e.loader.ListFlows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]document.Summary, 0, len(ids))
	for _, id := range ids {
		f, err := e.loader.LoadFlow(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", id, err)
		}
		out = append(out, f.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveFlow validates f and writes it to the store.
func (e *Engine) SaveFlow(ctx context.Context, f *document.Flow) error {
	if _, err := e.Decode(f); err != nil {
		return err
	}
	return e.store.Save(ctx, f)
}

// Run executes g once, outside of any activation.
func (e *Engine) Run(ctx context.Context, flowID string, g *graph.Graph, trig executor.Trigger) (executor.Report, error) {
	ex, err := executor.FromGraph(g,
		executor.WithFlowID(flowID),
		executor.WithHooks(e.hooks),
		executor.WithLogger(e.logger),
	)
	if err != nil {
		return executor.Report{}, err
	}
	return ex.Execute(ctx, trig).Await(ctx)
}

// RunFlow decodes and runs a flow document once.
func (e *Engine) RunFlow(ctx context.Context, f *document.Flow, trig executor.Trigger) (executor.Report, error) {
	g, err := e.Decode(f)
	if err != nil {
		return executor.Report{}, err
	}
	return e.Run(ctx, f.ID, g, trig)
}

// Activate loads a flow and sets up its start nodes.
func (e *Engine) Activate(ctx context.Context, id string) error {
	f, err := e.loader.LoadFlow(ctx, id)
	if err != nil {
		return err
	}
	g, err := e.Decode(f)
	if err != nil {
		return fmt.Errorf("flow %s: %w", id, err)
	}
	return e.triggers.Activate(ctx, graph.FlowRef{ID: f.ID, Name: f.Name}, g)
}

// ActivateAll activates every flow the loader lists. Failures are collected;
// flows that activate cleanly stay active.
func (e *Engine) ActivateAll(ctx context.Context) error {
	ids, err := e.loader.ListFlows(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if err := e.Activate(ctx, id); err != nil {
			e.logger.Warn("flow not activated", "flow", id, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deactivate tears down an active flow.
func (e *Engine) Deactivate(ctx context.Context, id string) error {
	return e.triggers.Deactivate(ctx, id)
}

// Reload re-activates id from the loader, or deactivates it when the flow
// is gone.
func (e *Engine) Reload(ctx context.Context, id string) error {
	err := e.Activate(ctx, id)
	if errors.Is(err, document.ErrFlowNotFound) {
		if derr := e.triggers.Deactivate(ctx, id); derr != nil && !errors.Is(derr, trigger.ErrNotActive) {
			return derr
		}
		return nil
	}
	return err
}

// Watch follows the loader's change notifications, reloading each changed
// flow, and returns the ids it reloaded. The channel closes with ctx.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	w, ok := e.loader.(ports.Watchable)
	if !ok {
		return nil, ErrNotWatchable
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for id := range changes {
			if err := e.Reload(ctx, id); err != nil {
				e.logger.Warn("reload failed", "flow", id, "err", err)
				continue
			}
			select {
			case out <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close deactivates every flow.
func (e *Engine) Close(ctx context.Context) error {
	return e.triggers.Close(ctx)
}
