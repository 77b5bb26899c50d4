package sitedata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/logging"
	"github.com/Zevik/google-sheets-site-builder/internal/metrics"
)

// ServiceConfig tunes cache staleness.
type ServiceConfig struct {
	// StaleAfter marks cached snapshots older than this as stale. Zero means never stale.
	StaleAfter time.Duration
}

// Service resolves site data through the cache, falling back to a live assembly.
type Service struct {
	assembler *Assembler
	cache     CacheStore
	sites     SiteRegistry
	clock     Clock
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService builds a Service. cache may be nil, in which case every read assembles live data.
func NewService(
	assembler *Assembler,
	cache CacheStore,
	sites SiteRegistry,
	clock Clock,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		assembler: assembler,
		cache:     cache,
		sites:     sites,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetSiteData returns the snapshot for a site. Unless forceRefresh is set, a fresh cached
// snapshot is served; otherwise all tabs are fetched and the cache is replaced.
// Cache failures never fail the call.
func (s *Service) GetSiteData(
	ctx context.Context,
	siteID string,
	spreadsheetID string,
	forceRefresh bool,
) (Result, error) {
	logger := logging.ForSite(s.logger, siteID, spreadsheetID)

	if !forceRefresh && s.cache != nil {
		if snap, ok := s.cached(ctx, logger, siteID); ok {
			return Result{Snapshot: snap, FromCache: true}, nil
		}
	}

	snap, err := s.assembler.AssembleAll(ctx, spreadsheetID)
	if err != nil {
		metrics.ObserveRefresh("failed")
		logger.Warn("site data assembly failed", zap.Error(err))
		return Result{}, err
	}
	metrics.ObserveRefresh("succeeded")

	if s.cache != nil {
		if err := s.cache.Put(ctx, siteID, snap); err != nil {
			metrics.ObserveCacheWrite("error")
			logger.Warn("site cache write failed", zap.Error(err))
		} else {
			metrics.ObserveCacheWrite("ok")
		}
	}
	s.markFetched(ctx, logger, siteID, snap.FetchedAt)
	return Result{Snapshot: snap, FromCache: false}, nil
}

// LoadSite resolves the site's spreadsheet from the registry and returns its data.
func (s *Service) LoadSite(ctx context.Context, siteID string, forceRefresh bool) (Site, Result, error) {
	site, err := s.site(ctx, siteID)
	if err != nil {
		return Site{}, Result{}, err
	}
	res, err := s.GetSiteData(ctx, site.ID, site.SpreadsheetID, forceRefresh)
	if err != nil {
		return site, Result{}, err
	}
	return site, res, nil
}

// RefreshSite forces a rebuild of the site's snapshot and returns the updated site record.
func (s *Service) RefreshSite(ctx context.Context, siteID string) (Site, error) {
	site, _, err := s.LoadSite(ctx, siteID, true)
	if err != nil {
		return Site{}, err
	}
	updated, err := s.sites.Get(ctx, site.ID)
	if err != nil {
		return site, nil
	}
	return updated, nil
}

// Invalidate drops the cached snapshot for a site.
func (s *Service) Invalidate(ctx context.Context, siteID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, siteID); err != nil {
		return fmt.Errorf("invalidate site %s: %w", siteID, err)
	}
	return nil
}

// ValidateSpreadsheet reports whether the spreadsheet exposes every required tab.
func (s *Service) ValidateSpreadsheet(ctx context.Context, spreadsheetID string) ValidationResult {
	return s.assembler.Validate(ctx, spreadsheetID)
}

// Stale reports whether a snapshot fetched at fetchedAt is past the staleness window.
func (s *Service) Stale(fetchedAt time.Time) bool {
	if s.cfg.StaleAfter <= 0 {
		return false
	}
	return s.clock.Now().Sub(fetchedAt) > s.cfg.StaleAfter
}

func (s *Service) cached(ctx context.Context, logger *zap.Logger, siteID string) (*Snapshot, bool) {
	snap, err := s.cache.Get(ctx, siteID)
	switch {
	case err == nil && snap != nil:
		if s.Stale(snap.FetchedAt) {
			metrics.ObserveCacheLookup("stale")
			logger.Debug("cached snapshot is stale", zap.Time("fetched_at", snap.FetchedAt))
			return nil, false
		}
		metrics.ObserveCacheLookup("hit")
		return snap, true
	case err == nil, errors.Is(err, ErrCacheMiss):
		metrics.ObserveCacheLookup("miss")
	default:
		metrics.ObserveCacheLookup("error")
		logger.Warn("site cache read failed, fetching live", zap.Error(err))
	}
	return nil, false
}

func (s *Service) markFetched(ctx context.Context, logger *zap.Logger, siteID string, at time.Time) {
	if s.sites == nil {
		return
	}
	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		if !errors.Is(err, ErrSiteNotFound) {
			logger.Warn("site lookup failed after refresh", zap.Error(err))
		}
		return
	}
	version := at.UnixMilli()
	if version <= site.CacheVersion {
		version = site.CacheVersion + 1
	}
	if err := s.sites.MarkFetched(ctx, siteID, at, version); err != nil {
		logger.Warn("mark site fetched failed", zap.Error(err))
	}
}

func (s *Service) site(ctx context.Context, siteID string) (Site, error) {
	if s.sites == nil {
		return Site{}, ErrSiteNotFound
	}
	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		return Site{}, fmt.Errorf("load site %s: %w", siteID, err)
	}
	return site, nil
}
