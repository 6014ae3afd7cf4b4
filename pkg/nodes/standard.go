package nodes

import (
	"log/slog"

	"github.com/aretw0/lattice/pkg/graph"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/types"
)

// Deps are the collaborators of the standard node types. Every field is optional.
type Deps struct {
	Logger   *slog.Logger
	Recorder *Recorder
	Types    *types.Registry
	Webhooks ports.EventSource
	Events   ports.EventSource
	Commands ports.CommandRunner
}

// Standard returns the built-in node types.
func Standard(d Deps) []graph.NodeType {
	return []graph.NodeType{
		NewManualStart(),
		NewWebhookStart(d.Webhooks),
		NewEventStart(d.Events),
		NewAdd(),
		NewPassthrough(),
		NewGetField(d.Types),
		NewExec(d.Commands),
		NewLog(d.Logger),
		NewRecord(d.Recorder),
	}
}

// Register adds the built-in node types to r.
func Register(r *registry.Registry, d Deps) error {
	for _, nt := range Standard(d) {
		if err := r.Register(nt); err != nil {
			return err
		}
	}
	return nil
}
