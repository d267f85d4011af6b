package device

import "context"

// Future is a one-shot result cell resolved exactly once by the worker:
// the client parks on it, the worker resolves it.
type Future[T any] struct {
	ch chan result[T]
}

type result[T any] struct {
	val T
	err error
}

// newFuture creates a Future with its resolution channel buffered to 1,
// so the worker's send never blocks even if no one is waiting yet.
func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan result[T], 1)}
}

// resolve completes the future. Calling it more than once panics: every
// command resolves its future exactly once, so a second resolve is a
// core bug, not a caller error.
func (f *Future[T]) resolve(val T, err error) {
	select {
	case f.ch <- result[T]{val: val, err: err}:
	default:
		panic("device: future resolved more than once")
	}
}

// Wait blocks until the future resolves or ctx is done, whichever comes
// first. A dropped/abandoned future (ctx.Done before resolution) does
// not cancel the underlying command — the worker still executes it and
// the result is simply discarded.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-f.ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks uninterruptibly until the future resolves. Equivalent to
// Wait(context.Background()) but avoids the empty-context boilerplate at
// call sites that know they can't be cancelled.
func (f *Future[T]) Get() (T, error) {
	r := <-f.ch
	return r.val, r.err
}

// Poll reports whether the future has already resolved, returning its
// value/error and ok=true if so. It never blocks.
func (f *Future[T]) Poll() (val T, err error, ok bool) {
	select {
	case r := <-f.ch:
		// Put it back so a later Wait/Get/Poll still observes it.
		f.ch <- r
		return r.val, r.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
