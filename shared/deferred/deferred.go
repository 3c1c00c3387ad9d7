// Package deferred provides a settle-once result for operations that
// complete on another goroutine.
package deferred

import (
	"context"
	"sync"
)

// Awaitable is implemented by every Result regardless of its value type, so
// generic callers (bus bridges, HTTP handlers) can wait without knowing T.
type Awaitable interface {
	AwaitAny(ctx context.Context) (any, error)
}

// Result holds the outcome of an asynchronous operation. It settles exactly
// once, either resolved with a value or rejected with an error.
type Result[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and settles the result with its return values.
func Go[T any](fn func() (T, error)) *Result[T] {
	r := newResult[T]()
	go func() {
		v, err := fn()
		r.settle(v, err)
	}()
	return r
}

// Resolved returns a result already settled with v.
func Resolved[T any](v T) *Result[T] {
	r := newResult[T]()
	r.settle(v, nil)
	return r
}

func (r *Result[T]) settle(v T, err error) {
	r.once.Do(func() {
		r.value = v
		r.err = err
		close(r.done)
	})
}

// Done is closed once the result has settled.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Await blocks until the result settles or ctx ends. Ending ctx does not
// cancel the underlying operation.
func (r *Result[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (r *Result[T]) AwaitAny(ctx context.Context) (any, error) {
	return r.Await(ctx)
}
