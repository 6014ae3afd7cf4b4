package nodes

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/future"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/types"
)

// Log writes its input to a structured logger.
type Log struct {
	graph.EndBase
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Log{
		EndBase: graph.NewEndBase("log", graph.Settings{
			"message": types.StringValue("flow output"),
		}),
		logger: logger,
	}
}

func (*Log) Inputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Any}
}

func (l *Log) Effect(ctx context.Context, in map[string]types.Box, s graph.Settings) *future.Future[struct{}] {
	v := in["value"]
	l.logger.InfoContext(ctx, s.String("message"), "value", v.Value(), "type", v.Type().Name())
	return future.Resolved(struct{}{})
}

// Recorder keeps the values received by record nodes, grouped by key.
type Recorder struct {
	mu     sync.Mutex
	values map[string][]types.Box
}

func NewRecorder() *Recorder {
	return &Recorder{values: make(map[string][]types.Box)}
}

func (r *Recorder) add(key string, b types.Box) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = append(r.values[key], b)
}

// Values returns every value recorded under key, oldest first.
func (r *Recorder) Values(key string) []types.Box {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Box(nil), r.values[key]...)
}

// Last returns the most recent value recorded under key.
func (r *Recorder) Last(key string) (types.Box, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := r.values[key]
	if len(vs) == 0 {
		return types.Box{}, false
	}
	return vs[len(vs)-1], true
}

// Snapshot returns the last value of every key.
func (r *Recorder) Snapshot() map[string]types.Box {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]types.Box, len(r.values))
	for k, vs := range r.values {
		out[k] = vs[len(vs)-1]
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = make(map[string][]types.Box)
}

// Record stores its input in a Recorder under the "key" setting.
type Record struct {
	graph.EndBase
	rec *Recorder
}

func NewRecord(rec *Recorder) *Record {
	if rec == nil {
		rec = NewRecorder()
	}
	return &Record{
		EndBase: graph.NewEndBase("record", graph.Settings{
			"key": types.StringValue("result"),
		}),
		rec: rec,
	}
}

// Recorder returns the recorder values are written to.
func (r *Record) Recorder() *Recorder { return r.rec }

func (*Record) Inputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Any}
}

func (r *Record) Effect(_ context.Context, in map[string]types.Box, s graph.Settings) *future.Future[struct{}] {
	r.rec.add(s.String("key"), in["value"])
	return future.Resolved(struct{}{})
}
