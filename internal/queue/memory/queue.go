// Package memory provides the in-process refresh queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan sitedata.RefreshRequest
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan sitedata.RefreshRequest, capacity),
	}
}

// Enqueue pushes a request into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, req sitedata.RefreshRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return sitedata.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	}
}

// TryEnqueue pushes a request without blocking. It returns sitedata.ErrQueueFull when the
// buffer has no room.
func (q *Queue) TryEnqueue(req sitedata.RefreshRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return sitedata.ErrQueueClosed
	}
	select {
	case q.ch <- req:
		return nil
	default:
		return sitedata.ErrQueueFull
	}
}

// Dequeue pops the next request, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (sitedata.RefreshRequest, error) {
	select {
	case <-ctx.Done():
		return sitedata.RefreshRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return sitedata.RefreshRequest{}, sitedata.ErrQueueClosed
		}
		return req, nil
	}
}

// Close closes the underlying channel for shutdown. It waits for blocked Enqueue calls
// to finish or give up.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
