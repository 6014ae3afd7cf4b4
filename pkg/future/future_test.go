package future_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromise_ResolveOnce(t *testing.T) {
	p := future.New[int]()
	assert.True(t, p.Resolve(1))
	assert.False(t, p.Resolve(2))
	assert.False(t, p.Reject(errors.New("late")))

	v, err := p.Future().Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_AwaitRespectsContext(t *testing.T) {
	p := future.New[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Future().Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.False(t, p.Future().IsDone())
}

func TestGo_RecoversPanics(t *testing.T) {
	f := future.Go(context.Background(), func(context.Context) (int, error) {
		panic("kaboom")
	})

	_, err := f.Await(context.Background())
	var pe *future.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestThen(t *testing.T) {
	ctx := context.Background()
	f := future.Then(ctx, future.Resolved(20), func(_ context.Context, v int) (string, error) {
		return "n=" + string(rune('0'+v/10)), nil
	})
	v, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n=2", v)

	boom := errors.New("boom")
	g := future.Then(ctx, future.Failed[int](boom), func(context.Context, int) (int, error) {
		t.Fatal("must not run")
		return 0, nil
	})
	_, err = g.Await(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestAll_JoinsErrors(t *testing.T) {
	ctx := context.Background()
	e1, e2 := errors.New("one"), errors.New("two")

	vals, err := future.All(ctx, future.Resolved(1), future.Failed[int](e1), future.Failed[int](e2))
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.Equal(t, 1, vals[0])

	vals, err = future.All(ctx, future.Resolved(1), future.Resolved(2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, vals)
}

func TestGo_KeepsValueOnError(t *testing.T) {
	boom := errors.New("boom")
	f := future.Go(context.Background(), func(context.Context) (int, error) {
		return 7, boom
	})

	v, err := f.Await(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 7, v)
}
