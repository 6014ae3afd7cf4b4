package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNodeNotFound is returned when an operation names a node that is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when inserting a node whose id is taken.
	ErrDuplicateNode = errors.New("node already exists")

	// ErrNilNode is returned when a node value is missing, e.g. a ModifyNode callback returned nil.
	ErrNilNode = errors.New("nil node")

	// ErrInputOccupied is returned when connecting to an input that already has a connection.
	ErrInputOccupied = errors.New("input already connected")

	// ErrConnectorNotFound is returned when a connection endpoint is not a connector of its node.
	ErrConnectorNotFound = errors.New("connector not found")

	// ErrConnectionNotFound is returned when removing a connection that is not in the graph.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrIncompatibleTypes is returned when the two ends of a connection cannot be joined.
	ErrIncompatibleTypes = errors.New("incompatible connector types")

	// ErrNotSealed is returned for node types that do not implement the protocol of their category.
	ErrNotSealed = errors.New("node type does not implement its category protocol")

	// ErrUnknownSetting is returned when setting a name the node type does not declare.
	ErrUnknownSetting = errors.New("unknown setting")
)

// Issue is an advisory validity problem, optionally tied to a node.
type Issue struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return i.Message
	}
	return fmt.Sprintf("node %s: %s", i.NodeID, i.Message)
}

// Issues is the collectible result of validation. It is data, not an error.
type Issues []Issue

// Err folds the issues into a single error, or nil when there are none.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	return &InvalidError{Issues: is}
}

// InvalidError wraps a non-empty Issues list.
type InvalidError struct {
	Issues Issues
}

func (e *InvalidError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid flow: " + e.Issues[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid flow: %d issues:\n", len(e.Issues))
	for i, issue := range e.Issues {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, issue)
	}
	return b.String()
}
