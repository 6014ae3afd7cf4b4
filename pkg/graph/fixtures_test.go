package graph

import (
	"context"

	"github.com/aretw0/lattice/pkg/future"
	"github.com/aretw0/lattice/pkg/types"
)

type intStart struct{ StartBase }

func newIntStart() intStart {
	return intStart{NewStartBase("int_start", Settings{"value": types.IntValue(0)})}
}

func (intStart) Outputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Int}
}

func (intStart) Emit(_ context.Context, _ *types.Box, s Settings) (Outputs, error) {
	return Outputs{"value": future.Resolved(s["value"])}, nil
}

// renamer exposes a single int output named by its "output" setting.
type renamer struct{ ProcessBase }

func newRenamer() renamer {
	return renamer{NewProcessBase("renamer", Settings{"output": types.StringValue("x")})}
}

func (renamer) Inputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"in": types.Int}
}

func (renamer) Outputs(s Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{s.Settings.String("output"): types.Int}
}

func (renamer) Compute(_ context.Context, in map[string]types.Box, s Settings) (Outputs, error) {
	return Outputs{s.String("output"): future.Resolved(in["in"])}, nil
}

// merge has a required and an optional int input.
type merge struct{ ProcessBase }

func newMerge() merge { return merge{NewProcessBase("merge", Settings{})} }

func (merge) Inputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"a": types.Int, "b": types.Int.OptionalOf()}
}

func (merge) Outputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"out": types.Int}
}

func (merge) Compute(_ context.Context, in map[string]types.Box, _ Settings) (Outputs, error) {
	return Outputs{"out": future.Resolved(in["a"])}, nil
}

// relay passes its input through; the output takes the live input type.
type relay struct{ ProcessBase }

func newRelay() relay { return relay{NewProcessBase("relay", Settings{})} }

func (relay) Inputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Any}
}

func (relay) Outputs(s Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": s.Hint("value", types.Any)}
}

func (relay) Compute(_ context.Context, in map[string]types.Box, _ Settings) (Outputs, error) {
	return Outputs{"value": future.Resolved(in["value"])}, nil
}

type sink struct{ EndBase }

func newSink() sink { return sink{NewEndBase("sink", Settings{})} }

func (sink) Inputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"value": types.Any}
}

func (sink) Effect(context.Context, map[string]types.Box, Settings) *future.Future[struct{}] {
	return future.Resolved(struct{}{})
}

// broken claims to be a start type but lacks Emit.
type broken struct{ StartBase }

func (broken) Outputs(Shape) map[string]*types.Descriptor { return nil }

// picky accepts anything until connected, then asks for a bool.
type picky struct{ ProcessBase }

func newPicky() picky { return picky{NewProcessBase("picky", Settings{})} }

func (picky) Inputs(s Shape) map[string]*types.Descriptor {
	if _, hinted := s.InputTypes["value"]; hinted {
		return map[string]*types.Descriptor{"value": types.Bool}
	}
	return map[string]*types.Descriptor{"value": types.Any}
}

func (picky) Outputs(Shape) map[string]*types.Descriptor {
	return map[string]*types.Descriptor{"out": types.Bool}
}

func (picky) Compute(_ context.Context, in map[string]types.Box, _ Settings) (Outputs, error) {
	return Outputs{"out": future.Resolved(in["value"])}, nil
}
