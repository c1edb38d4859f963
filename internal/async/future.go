// Package async provides single-value futures used to model asynchronous
// completion throughout the gateway.
//
// A Future settles exactly once, either with a value or with an error.
// Completion is the payload-free variant returned by filters, handlers and
// route store mutations.
//
// # Usage
//
//	f := async.Go(ctx, func(ctx context.Context) (int, error) {
//	    return compute(ctx)
//	})
//	v, err := f.Await(ctx)
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future holds a value of type T that becomes available later.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// Completion is a Future without a payload.
type Completion = Future[struct{}]

// ErrNilFuture is the failure recorded when a continuation returns no future.
var ErrNilFuture = errors.New("async: continuation returned a nil future")

// PanicError is the failure recorded when the function passed to Go panics.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// newFuture creates an unsettled future.
func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve returns a future already settled with v.
func Resolve[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.settle(v, nil)
	return f
}

// Reject returns a future already settled with err.
func Reject[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.settle(zero, err)
	return f
}

// Complete returns a successful completion.
func Complete() *Completion {
	return Resolve(struct{}{})
}

// Fail returns a failed completion.
func Fail(err error) *Completion {
	return Reject[struct{}](err)
}

// Go runs fn on a new goroutine and returns a future for its result.
// A panic in fn settles the future with a *PanicError.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		var v T
		err := protect(func() error {
			var err error
			v, err = fn(ctx)
			return err
		})
		f.settle(v, err)
	}()
	return f
}

// Run is Go for functions that produce no value.
func Run(ctx context.Context, fn func(ctx context.Context) error) *Completion {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// settle records the outcome. Only the first call has any effect.
func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has settled.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err blocks until the future settles and returns its error.
func (f *Future[T]) Err() error {
	<-f.done
	return f.err
}

// Then chains fn after f. A failure of f is propagated unchanged and fn is
// not called. When f has already settled fn runs on the calling goroutine.
// A panic in fn fails the result with a *PanicError and a nil future from
// fn fails it with ErrNilFuture.
func Then[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	if f.IsDone() {
		if f.err != nil {
			return Reject[U](f.err)
		}
		return call(fn, f.val)
	}

	out := newFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			out.settle(zero, f.err)
			return
		}
		out.pipe(call(fn, f.val))
	}()
	return out
}

// Finally calls fn with the outcome of f once it settles and returns a
// future with the same outcome. A panic in fn replaces the outcome with a
// *PanicError.
func Finally[T any](f *Future[T], fn func(T, error)) *Future[T] {
	observe := func() error {
		return protect(func() error {
			fn(f.val, f.err)
			return nil
		})
	}

	if f.IsDone() {
		if err := observe(); err != nil {
			return Reject[T](err)
		}
		return f
	}

	out := newFuture[T]()
	go func() {
		<-f.done
		if err := observe(); err != nil {
			var zero T
			out.settle(zero, err)
			return
		}
		out.settle(f.val, f.err)
	}()
	return out
}

// call runs fn with v, turning a panic or a nil result into a failed future.
func call[T, U any](fn func(T) *Future[U], v T) *Future[U] {
	var out *Future[U]
	if err := protect(func() error {
		out = fn(v)
		return nil
	}); err != nil {
		return Reject[U](err)
	}
	if out == nil {
		return Reject[U](ErrNilFuture)
	}
	return out
}

// protect runs fn and reports a panic as a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// pipe settles f with the outcome of src.
func (f *Future[T]) pipe(src *Future[T]) {
	<-src.done
	f.settle(src.val, src.err)
}
