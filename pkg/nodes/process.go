package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/lattice/pkg/future"
	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/types"
)

// Add outputs its int input plus the "value_to_add" setting.
type Add struct{ graph.ProcessBase }

func NewAdd() *Add {
	return &Add{graph.NewProcessBase("add", graph.Settings{
		"value_to_add": types.IntValue(0),
	})}
}

func (*Add) Inputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Int}
}

func (*Add) Outputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"result": types.Int}
}

func (*Add) Compute(_ context.Context, in map[string]types.Box, s graph.Settings) (graph.Outputs, error) {
	v, err := types.As[int64](in["value"])
	if err != nil {
		return nil, err
	}
	return graph.Outputs{
		"result": future.Resolved(types.IntValue(v + s.Int("value_to_add"))),
	}, nil
}

// Passthrough forwards its input. Its output takes the type of whatever is
// connected to the input.
type Passthrough struct{ graph.ProcessBase }

func NewPassthrough() *Passthrough {
	return &Passthrough{graph.NewProcessBase("passthrough", graph.Settings{})}
}

func (*Passthrough) Inputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Any}
}

func (*Passthrough) Outputs(s graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": s.Hint("value", types.Any)}
}

// Compute forwards the box as is; it is narrowed to the declared output type
// on delivery.
func (*Passthrough) Compute(_ context.Context, in map[string]types.Box, _ graph.Settings) (graph.Outputs, error) {
	return graph.Outputs{"value": future.Resolved(in["value"])}, nil
}

// GetField reads one field of an object. The output is optional: a missing
// field yields null.
type GetField struct {
	graph.ProcessBase
	types *types.Registry
}

func NewGetField(r *types.Registry) *GetField {
	if r == nil {
		r = types.Default()
	}
	return &GetField{
		ProcessBase: graph.NewProcessBase("get_field", graph.Settings{
			"field": types.StringValue(""),
			"type":  types.StringValue(types.NameAny),
		}),
		types: r,
	}
}

func (*GetField) Inputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"object": types.Object}
}

func (g *GetField) Outputs(s graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": g.fieldType(s.Settings).OptionalOf()}
}

func (g *GetField) Compute(_ context.Context, in map[string]types.Box, s graph.Settings) (graph.Outputs, error) {
	obj, err := types.As[map[string]any](in["object"])
	if err != nil {
		return nil, err
	}
	out := g.fieldType(s).OptionalOf()
	b, err := types.NewBox(obj[s.String("field")], out)
	if err != nil {
		return nil, err
	}
	return graph.Outputs{"value": future.Resolved(b)}, nil
}

func (g *GetField) IsValid(n *graph.Node, gr *graph.Graph) []graph.Issue {
	issues := graph.RequireInputs(n, gr)
	settings := n.Settings()
	if strings.TrimSpace(settings.String("field")) == "" {
		issues = append(issues, graph.Issue{NodeID: n.ID(), Message: "field must not be blank"})
	}
	if _, ok := g.types.Get(settings.String("type")); !ok {
		issues = append(issues, graph.Issue{NodeID: n.ID(), Message: "unknown field type " + settings.String("type")})
	}
	return issues
}

func (g *GetField) fieldType(s graph.Settings) *types.Descriptor {
	if t, ok := g.types.Get(s.String("type")); ok {
		return t
	}
	fallback, _ := g.types.Get(types.NameAny)
	return fallback
}

// ErrNoRunner is returned by exec nodes when the engine has no command runner.
var ErrNoRunner = errors.New("no command runner configured")

// Exec runs an allow-listed local command with its input and outputs what the
// command prints.
type Exec struct {
	graph.ProcessBase
	runner ports.CommandRunner
}

func NewExec(runner ports.CommandRunner) *Exec {
	return &Exec{
		ProcessBase: graph.NewProcessBase("exec", graph.Settings{
			"command": types.StringValue(""),
		}),
		runner: runner,
	}
}

func (*Exec) Inputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"input": types.Any}
}

func (*Exec) Outputs(graph.Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"result": types.Any}
}

func (e *Exec) Compute(ctx context.Context, in map[string]types.Box, s graph.Settings) (graph.Outputs, error) {
	if e.runner == nil {
		return nil, ErrNoRunner
	}
	out, err := e.runner.RunCommand(ctx, s.String("command"), in["input"].Value())
	if err != nil {
		return nil, err
	}
	b, err := types.NewBox(out, types.Any)
	if err != nil {
		return nil, err
	}
	return graph.Outputs{"result": future.Resolved(b)}, nil
}

func (e *Exec) IsValid(n *graph.Node, g *graph.Graph) []graph.Issue {
	issues := graph.RequireInputs(n, g)
	if strings.TrimSpace(n.Settings().String("command")) == "" {
		issues = append(issues, graph.Issue{NodeID: n.ID(), Message: "command must not be blank"})
	}
	return issues
}
