// Package scheduler periodically enqueues background refreshes for stale sites.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// DefaultSchedule runs the stale scan every five minutes.
const DefaultSchedule = "*/5 * * * *"

// SiteLister lists registered sites.
type SiteLister interface {
	List(ctx context.Context) ([]sitedata.Site, error)
}

// Enqueuer accepts refresh requests without waiting for queue room.
type Enqueuer interface {
	TryEnqueue(req sitedata.RefreshRequest) error
}

// Config controls the scan cadence and staleness threshold.
type Config struct {
	Schedule    string
	StaleAfter  time.Duration
	ScanTimeout time.Duration
}

// Scheduler runs the stale-site scan on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	sites    SiteLister
	enqueuer Enqueuer
	clock    sitedata.Clock
	cfg      Config
	logger   *zap.Logger
}

// New creates a scheduler. Call Start to register the job.
func New(sites SiteLister, enqueuer Enqueuer, clock sitedata.Clock, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = time.Minute
	}
	return &Scheduler{
		cron:     cron.New(),
		sites:    sites,
		enqueuer: enqueuer,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the scan and starts the cron runner.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanTimeout)
		defer cancel()
		if _, err := s.Scan(ctx); err != nil {
			s.logger.Error("stale site scan failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Duration("stale_after", s.cfg.StaleAfter),
	)
	return nil
}

// Stop waits for a running scan to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Scan enqueues a refresh for every stale site and returns how many were enqueued. When the
// queue fills up the remaining sites are left for the next scan.
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	if s.cfg.StaleAfter <= 0 {
		return 0, nil
	}
	sites, err := s.sites.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sites: %w", err)
	}
	now := s.clock.Now()
	enqueued, skipped := 0, 0
	for _, site := range sites {
		if !s.stale(site, now) {
			continue
		}
		if skipped > 0 {
			skipped++
			continue
		}
		req := sitedata.RefreshRequest{
			SiteID:        site.ID,
			SpreadsheetID: site.SpreadsheetID,
			Submitted:     now,
		}
		if err := s.enqueuer.TryEnqueue(req); err != nil {
			if errors.Is(err, sitedata.ErrQueueFull) {
				skipped++
				continue
			}
			return enqueued, fmt.Errorf("enqueue site %s: %w", site.ID, err)
		}
		enqueued++
	}
	if skipped > 0 {
		s.logger.Warn("refresh queue full, deferring stale sites",
			zap.Int("enqueued", enqueued),
			zap.Int("skipped", skipped),
		)
	} else if enqueued > 0 {
		s.logger.Info("enqueued stale sites", zap.Int("count", enqueued))
	}
	return enqueued, nil
}

func (s *Scheduler) stale(site sitedata.Site, now time.Time) bool {
	if site.LastFetched == nil {
		return true
	}
	return now.Sub(*site.LastFetched) > s.cfg.StaleAfter
}
