package async

import (
	"context"
	"sync"
	"time"
)

// awaitPollInterval bounds how long Await sleeps between RunPending
// sweeps while a future's completion closure is still in flight on its
// worker goroutine.
const awaitPollInterval = time.Millisecond

// Future is the explicit completion primitive composed operations return
// in place of the source's coroutine-style suspension: exactly one call to
// Complete ever takes effect, enforced by a sync.Once, matching the
// "exactly-one-completion" contract every operation in the runtime must
// honor. Any number of goroutines may await the same Future.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewFuture returns an incomplete future ready to be completed exactly
// once and awaited any number of times.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future. Only the first call has any effect;
// subsequent calls are silently ignored, preserving the single-completion
// guarantee even if a buggy caller invokes it twice.
func (f *Future[T]) Complete(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Get blocks until the future completes or ctx is done, whichever comes
// first.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the future completes, ignoring context cancellation.
// Used by call sites that have already bound their own cancellation into
// the operation and just need the final result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done returns a channel closed when the future completes, for callers
// composing their own select statements.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks the calling goroutine until fut completes or ctx is done,
// pumping exec itself in the meantime. A bare fut.Get(ctx) only unblocks
// once some other goroutine calls exec.RunPending; a caller that is not
// the host's own pump loop (a test, or operation code invoked outside a
// Pump cycle) has no such goroutine and must drive the executor itself or
// it hangs forever waiting on a completion closure that never runs.
func Await[T any](ctx context.Context, exec *Executor, fut *Future[T]) (T, error) {
	for {
		select {
		case <-fut.Done():
			return fut.Wait()
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}

		exec.RunPending()

		select {
		case <-fut.Done():
			return fut.Wait()
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(awaitPollInterval):
		}
	}
}
