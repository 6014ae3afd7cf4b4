package socketio_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/pkg/adapters/socketio"
	"github.com/aretw0/lattice/pkg/ports"
)

// bus is an in-process emitter standing in for a socket.
type bus struct {
	mu        sync.Mutex
	listeners map[string][]func(...any)
}

func (b *bus) on(event string, fn func(...any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[string][]func(...any))
	}
	b.listeners[event] = append(b.listeners[event], fn)
}

func (b *bus) emit(event string, args ...any) {
	b.mu.Lock()
	fns := append([]func(...any){}, b.listeners[event]...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(args...)
	}
}

func TestSource_DeliversFirstArgument(t *testing.T) {
	b := &bus{}
	src := socketio.NewSource(b.on)
	defer src.Close()

	got := make(chan any, 1)
	_, err := src.Subscribe("message", func(ctx context.Context, payload any) error {
		got <- payload
		return nil
	})
	require.NoError(t, err)

	b.emit("message", map[string]any{"text": "hi"}, "ignored")

	select {
	case p := <-got:
		assert.Equal(t, map[string]any{"text": "hi"}, p)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestSource_Unsubscribe(t *testing.T) {
	b := &bus{}
	src := socketio.NewSource(b.on)

	calls := make(chan struct{}, 4)
	h := func(context.Context, any) error { calls <- struct{}{}; return nil }

	un, err := src.Subscribe("tick", h)
	require.NoError(t, err)
	_, err = src.Subscribe("tick", h)
	assert.ErrorIs(t, err, ports.ErrTopicInUse)

	un()
	b.emit("tick")

	// Re-subscribing reuses the installed listener.
	_, err = src.Subscribe("tick", h)
	require.NoError(t, err)
	b.emit("tick")

	require.NoError(t, src.Close())
	assert.Len(t, calls, 1)
	assert.Len(t, b.listeners["tick"], 1)
}

func TestSource_ClosedDropsEvents(t *testing.T) {
	b := &bus{}
	src := socketio.NewSource(b.on)

	called := false
	_, err := src.Subscribe("late", func(context.Context, any) error { called = true; return nil })
	require.NoError(t, err)

	require.NoError(t, src.Close())
	b.emit("late")
	assert.False(t, called)
}
