// Package worker runs background site refreshes pulled from the refresh queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/logging"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// Refresher rebuilds a site's snapshot. *sitedata.Service satisfies it.
type Refresher interface {
	RefreshSite(ctx context.Context, siteID string) (sitedata.Site, error)
}

// RetryPolicy decides whether and when a failed refresh is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Worker consumes refresh requests and rebuilds the named sites.
type Worker struct {
	queue     sitedata.RefreshQueue
	refresher Refresher
	retry     RetryPolicy
	logger    *zap.Logger
}

// New constructs a Worker. A nil retry policy makes every refresh single-shot.
func New(queue sitedata.RefreshQueue, refresher Refresher, retry RetryPolicy, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		refresher: refresher,
		retry:     retry,
		logger:    logger,
	}
}

// Run blocks, consuming refresh requests until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, sitedata.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued refresh", zap.String("site_id", req.SiteID))
		if err := w.Process(ctx, req); err != nil && ctx.Err() == nil {
			logging.ForSite(w.logger, req.SiteID, req.SpreadsheetID).Error("site refresh failed", zap.Error(err))
		}
	}
}

// Process refreshes one site, retrying transport failures per the retry policy.
func (w *Worker) Process(ctx context.Context, req sitedata.RefreshRequest) error {
	logger := logging.ForSite(w.logger, req.SiteID, req.SpreadsheetID)
	attempt := req.Attempt
	for {
		attempt++
		site, err := w.refresher.RefreshSite(ctx, req.SiteID)
		if err == nil {
			logger.Info("site refreshed",
				zap.Int("attempt", attempt),
				zap.Int64("cache_version", site.CacheVersion),
			)
			return nil
		}
		if ctx.Err() != nil || w.retry == nil || !w.retry.ShouldRetry(err, attempt) {
			return fmt.Errorf("refresh site %s after %d attempt(s): %w", req.SiteID, attempt, err)
		}

		delay := w.retry.Backoff(attempt - 1)
		logger.Warn("site refresh failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("refresh site %s canceled: %w", req.SiteID, ctx.Err())
		case <-timer.C:
		}
	}
}
