package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutorUsed is returned when Execute is called twice on one executor.
	ErrExecutorUsed = errors.New("executor already used")

	// ErrMissingInput is returned when a required input has no upstream value.
	ErrMissingInput = errors.New("missing input")

	// ErrMissingOutput is returned when a node does not produce a connected output.
	ErrMissingOutput = errors.New("missing output")

	// ErrUnknownTrigger is returned when the trigger names a node that is not
	// a start node of the run.
	ErrUnknownTrigger = errors.New("unknown trigger node")

	// ErrAmbiguousTrigger is returned when a payload has no node id and the
	// run does not have exactly one start node.
	ErrAmbiguousTrigger = errors.New("payload needs a start node id")
)

// NodeError attributes a failure to the node where it originated.
type NodeError struct {
	NodeID   string
	NodeType string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
