// Package dispatcher manages worker fan-out over the refresh queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Zevik/google-sheets-site-builder/internal/metrics"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
	"github.com/Zevik/google-sheets-site-builder/internal/worker"
)

// Queue is the refresh queue a Dispatcher feeds.
type Queue interface {
	sitedata.RefreshQueue
	TryEnqueue(req sitedata.RefreshRequest) error
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, req sitedata.RefreshRequest) error {
	if err := d.queue.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	metrics.IncRefreshEnqueued()
	return nil
}

// TryEnqueue hands req to the queue only if there is room right now.
func (d *Dispatcher) TryEnqueue(req sitedata.RefreshRequest) error {
	if err := d.queue.TryEnqueue(req); err != nil {
		if errors.Is(err, sitedata.ErrQueueFull) {
			metrics.IncRefreshDropped()
		}
		return fmt.Errorf("queue enqueue: %w", err)
	}
	metrics.IncRefreshEnqueued()
	return nil
}
