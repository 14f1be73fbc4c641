// Package taskqueue provides a per-surface FIFO executor for dependent
// asynchronous edits. Tasks pushed onto one queue never interleave: each
// task starts only after every previously pushed task has settled, and a
// failing task does not block or abort the tasks behind it.
package taskqueue

import (
	"context"
	"fmt"
	"sync"
)

// Task is a unit of serialized work.
type Task func(ctx context.Context) error

// Queue is a FIFO continuation chain bound to one shared surface, such as
// one document's mask or one inference session. The zero value is not
// usable; call New.
type Queue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{tail: settled()}
}

// Push appends task to the chain and returns a handle carrying that task's
// outcome. The task begins only after every previously pushed task has
// settled. A task error is reported on the handle but swallowed for
// chain-continuation purposes. A panicking task settles the chain and is
// reported as an error on its handle.
func (q *Queue) Push(ctx context.Context, task Task) <-chan error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		defer close(done)
		<-prev
		result <- run(ctx, task)
	}()
	return result
}

// Flush blocks until every task pushed so far has settled, regardless of
// individual failures, or until ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()

	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset detaches future pushes from the existing chain. Tasks already in
// flight continue to completion; a Push after Reset starts a fresh chain.
// Used when the surface the queue is bound to changes, e.g. when switching
// documents.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.tail = settled()
	q.mu.Unlock()
}

func run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

func settled() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
