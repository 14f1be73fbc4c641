package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushRunsInOrder(t *testing.T) {
	q := New()
	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	record := func(n int) Task {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		}
	}

	h1 := q.Push(ctx, record(1))
	h2 := q.Push(ctx, record(2))
	h3 := q.Push(ctx, record(3))

	require.NoError(t, <-h1)
	require.NoError(t, <-h2)
	require.NoError(t, <-h3)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestFailureDoesNotBlockChain(t *testing.T) {
	q := New()
	ctx := context.Background()
	boom := errors.New("boom")

	ran := make(chan struct{})
	h1 := q.Push(ctx, func(ctx context.Context) error { return nil })
	h2 := q.Push(ctx, func(ctx context.Context) error { return boom })
	h3 := q.Push(ctx, func(ctx context.Context) error {
		close(ran)
		return nil
	})

	assert.NoError(t, <-h1)
	assert.ErrorIs(t, <-h2, boom)
	assert.NoError(t, <-h3)

	select {
	case <-ran:
	default:
		t.Fatal("third task never ran after a failure in front of it")
	}
}

func TestTaskWaitsForPredecessor(t *testing.T) {
	q := New()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})

	q.Push(ctx, func(ctx context.Context) error {
		<-release
		return nil
	})
	h2 := q.Push(ctx, func(ctx context.Context) error {
		close(started)
		return nil
	})

	select {
	case <-started:
		t.Fatal("second task started before the first settled")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-h2)
}

func TestPanicSettlesChain(t *testing.T) {
	q := New()
	ctx := context.Background()

	h1 := q.Push(ctx, func(ctx context.Context) error {
		panic("blown fuse")
	})
	h2 := q.Push(ctx, func(ctx context.Context) error { return nil })

	err := <-h1
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task panicked")
	assert.NoError(t, <-h2)
}

func TestFlushWaitsForTail(t *testing.T) {
	q := New()
	ctx := context.Background()

	release := make(chan struct{})
	q.Push(ctx, func(ctx context.Context) error {
		<-release
		return nil
	})

	flushed := make(chan error, 1)
	go func() { flushed <- q.Flush(ctx) }()

	select {
	case <-flushed:
		t.Fatal("flush returned while a task was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-flushed)
}

func TestFlushHonorsContext(t *testing.T) {
	q := New()

	release := make(chan struct{})
	defer close(release)
	q.Push(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)
}

func TestResetDetachesChain(t *testing.T) {
	q := New()
	ctx := context.Background()

	release := make(chan struct{})
	defer close(release)
	q.Push(ctx, func(ctx context.Context) error {
		<-release
		return nil
	})

	q.Reset()

	// A push after reset must not wait for the stuck predecessor.
	h := q.Push(ctx, func(ctx context.Context) error { return nil })
	select {
	case err := <-h:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("post-reset task still chained to the old tail")
	}
}
