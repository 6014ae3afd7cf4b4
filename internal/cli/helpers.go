package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/executor"
	"github.com/aretw0/lattice/pkg/types"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
			// Context cancelled elsewhere
		}
		sc.stop.Do(func() {
			signal.Stop(sc.sigCh)
		})
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger builds the CLI logger. It writes to stderr so stdout stays free
// for reports and MCP JSON-RPC.
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// PrintSystemMessage prints a standardized system message.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// ParsePayload parses a JSON object given on the command line into a run
// payload. An empty string means no payload.
func ParsePayload(raw string) (*types.Box, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	b, err := types.NewBox(obj, types.Object)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Markdown writes md to out, rendered when out is a terminal.
func Markdown(out *os.File, md string) error {
	rendered, err := tui.NewRenderer(tui.Interactive(out))(md)
	if err != nil {
		rendered = md
	}
	_, err = io.WriteString(out, rendered)
	return err
}

// RunError summarizes the failed nodes of a report, or returns nil.
func RunError(report executor.Report) error {
	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(failed))
	for _, n := range failed {
		ids = append(ids, n.NodeID)
	}
	return fmt.Errorf("%d nodes failed: %s", len(failed), strings.Join(ids, ", "))
}
