package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/document"
)

// FlowLoader is the read side of flow storage. Read-only sources such as a
// document repository implement only this port.
type FlowLoader interface {
	// LoadFlow retrieves a flow by id.
	// Returns document.ErrFlowNotFound if the flow does not exist.
	LoadFlow(ctx context.Context, id string) (*document.Flow, error)

	// ListFlows returns the ids of all available flows.
	ListFlows(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used to re-activate flows when their source changes.
type Watchable interface {
	// Watch returns a channel that receives the id of every flow that changed.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}

// StoreLoader exposes a FlowStore as a FlowLoader.
type StoreLoader struct {
	Store FlowStore
}

func (l StoreLoader) LoadFlow(ctx context.Context, id string) (*document.Flow, error) {
	return l.Store.Load(ctx, id)
}

func (l StoreLoader) ListFlows(ctx context.Context) ([]string, error) {
	return l.Store.List(ctx)
}
