package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/document"
)

// FlowStore persists flow documents.
type FlowStore interface {
	// Save creates or replaces the flow with f.ID.
	Save(ctx context.Context, f *document.Flow) error

	// Load retrieves a flow.
	// Returns document.ErrFlowNotFound if the flow does not exist.
	Load(ctx context.Context, id string) (*document.Flow, error)

	// Delete removes a flow. Deleting a missing flow is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored flows.
	List(ctx context.Context) ([]string, error)
}
