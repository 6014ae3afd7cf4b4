// Package future provides a minimal typed future/promise pair for dataflow
// scheduling. A Future resolves exactly once; any number of goroutines may
// Await it.
package future

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future is a read-only handle to a value computed elsewhere.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	f    *Future[T]
	once sync.Once
}

// New creates an unresolved promise.
func New[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

// Future returns the read side.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// Resolve completes the future with v. Only the first completion counts.
func (p *Promise[T]) Resolve(v T) bool {
	return p.complete(v, nil)
}

// Reject completes the future with err.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	if err == nil {
		err = errors.New("future: rejected with nil error")
	}
	return p.complete(zero, err)
}

func (p *Promise[T]) complete(v T, err error) bool {
	ok := false
	p.once.Do(func() {
		p.f.value = v
		p.f.err = err
		close(p.f.done)
		ok = true
	})
	return ok
}

// Done is closed once the future is resolved or rejected.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// IsDone reports whether the future has completed.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Resolved returns a completed future holding v.
func Resolved[T any](v T) *Future[T] {
	p := New[T]()
	p.Resolve(v)
	return p.Future()
}

// Failed returns a completed future holding err.
func Failed[T any](err error) *Future[T] {
	p := New[T]()
	p.Reject(err)
	return p.Future()
}

// PanicError is the error a Go future fails with when fn panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Go runs fn on a new goroutine and returns its future. When fn fails, the
// value it returned is kept alongside the error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	p := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn(ctx)
		p.complete(v, err)
	}()
	return p.Future()
}

// Then chains fn onto f.
func Then[T, U any](ctx context.Context, f *Future[T], fn func(ctx context.Context, v T) (U, error)) *Future[U] {
	return Go(ctx, func(ctx context.Context) (U, error) {
		v, err := f.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(ctx, v)
	})
}

// All waits for every future and returns their values in order. Every future
// is awaited even after a failure; the errors are joined.
func All[T any](ctx context.Context, fs ...*Future[T]) ([]T, error) {
	out := make([]T, len(fs))
	var errs []error
	for i, f := range fs {
		v, err := f.Await(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = v
	}
	return out, errors.Join(errs...)
}
