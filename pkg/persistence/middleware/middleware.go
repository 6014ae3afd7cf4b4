// Package middleware decorates flow stores with behavior applied at the
// storage boundary: sealing node settings at rest and masking secrets.
package middleware

import "github.com/aretw0/lattice/pkg/ports"

// Middleware allows wrapping a FlowStore to add behavior.
type Middleware func(ports.FlowStore) ports.FlowStore

// Chain wraps store with mws. The first middleware is the outermost one.
func Chain(store ports.FlowStore, mws ...Middleware) ports.FlowStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
