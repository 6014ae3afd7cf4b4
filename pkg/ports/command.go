package ports

import (
	"context"
	"errors"
)

// CommandRunner runs allow-listed local commands on behalf of exec nodes.
type CommandRunner interface {
	// RunCommand runs the command registered as name with input and returns
	// its decoded output.
	// Returns ErrCommandNotFound if name is not registered.
	RunCommand(ctx context.Context, name string, input any) (any, error)
}

// ErrCommandNotFound is returned for commands missing from the allow-list.
var ErrCommandNotFound = errors.New("command not registered")
