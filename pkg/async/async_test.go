package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutorRunsPostedWorkOnPump(t *testing.T) {
	e := NewExecutor()
	ran := false
	e.Post(func() { ran = true })
	require.False(t, ran)
	n := e.RunPending()
	require.Equal(t, 1, n)
	require.True(t, ran)
}

func TestExecutorDrainsWorkPostedDuringPump(t *testing.T) {
	e := NewExecutor()
	var order []int
	var post2 func()
	post2 = func() { order = append(order, 2) }
	e.Post(func() {
		order = append(order, 1)
		e.Post(post2)
	})
	e.RunPending()
	require.Equal(t, []int{1, 2}, order)
}

func TestStrandSerializesFIFO(t *testing.T) {
	exec := NewExecutor()
	s := NewStrand(exec)
	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	exec.RunPending()
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueGrantsOneAtATime(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	t1 := q.GetTicket()
	require.NoError(t, t1.WaitForTurn(ctx))

	t2 := q.GetTicket()
	acquired := make(chan struct{})
	go func() {
		_ = t2.WaitForTurn(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second ticket should not acquire while first holds the slot")
	case <-time.After(20 * time.Millisecond):
	}

	t1.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second ticket should acquire after release")
	}
}

func TestQueueCancelAllUnblocksWaiters(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()
	t1 := q.GetTicket()
	require.NoError(t, t1.WaitForTurn(ctx))

	t2 := q.GetTicket()
	errCh := make(chan error, 1)
	go func() { errCh <- t2.WaitForTurn(ctx) }()

	time.Sleep(10 * time.Millisecond)
	q.CancelAll()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by CancelAll")
	}
}

func TestTimerCancelAfterFireIsSafe(t *testing.T) {
	fired := make(chan struct{})
	tm := AfterFunc(time.Millisecond, func() { close(fired) })
	<-fired
	require.False(t, tm.Cancel())
}

func TestFutureCompletesOnce(t *testing.T) {
	f := NewFuture[int]()
	f.Complete(1, nil)
	f.Complete(2, nil) // ignored

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestFutureGetRespectsContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
