package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// SiteStore is an in-memory sitedata.SiteRegistry.
type SiteStore struct {
	mu    sync.RWMutex
	sites map[string]sitedata.Site
}

// NewSiteStore constructs a SiteStore.
func NewSiteStore() *SiteStore {
	return &SiteStore{sites: make(map[string]sitedata.Site)}
}

// Create stores a new site. Ids and slugs must be unique.
func (s *SiteStore) Create(_ context.Context, site sitedata.Site) error {
	if site.ID == "" {
		return errors.New("site id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sites[site.ID]; exists {
		return fmt.Errorf("site %s: %w", site.ID, sitedata.ErrSiteExists)
	}
	for _, existing := range s.sites {
		if site.Slug != "" && existing.Slug == site.Slug {
			return fmt.Errorf("slug %q already in use: %w", site.Slug, sitedata.ErrSiteExists)
		}
	}
	s.sites[site.ID] = cloneSite(site)
	return nil
}

// Get fetches a site by id.
func (s *SiteStore) Get(_ context.Context, siteID string) (sitedata.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[siteID]
	if !ok {
		return sitedata.Site{}, sitedata.ErrSiteNotFound
	}
	return cloneSite(site), nil
}

// List returns every site ordered by creation time, then id.
func (s *SiteStore) List(_ context.Context) ([]sitedata.Site, error) {
	s.mu.RLock()
	out := make([]sitedata.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, cloneSite(site))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkFetched records a successful refresh.
func (s *SiteStore) MarkFetched(_ context.Context, siteID string, at time.Time, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[siteID]
	if !ok {
		return sitedata.ErrSiteNotFound
	}
	ts := at
	site.LastFetched = &ts
	site.CacheVersion = version
	s.sites[siteID] = site
	return nil
}

type seedFile struct {
	Sites []sitedata.Site `yaml:"sites"`
}

// LoadSites reads a YAML seed file of the form `sites: [{id, title, slug, spreadsheet_id}]`
// into the store, stamping every record with createdAt.
func (s *SiteStore) LoadSites(ctx context.Context, path string, createdAt time.Time) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read site seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse site seed: %w", err)
	}
	for i, site := range seed.Sites {
		if site.ID == "" || site.SpreadsheetID == "" {
			return i, fmt.Errorf("seed site %d: id and spreadsheet_id are required", i)
		}
		site.CreatedAt = createdAt
		if err := s.Create(ctx, site); err != nil {
			return i, fmt.Errorf("seed site %s: %w", site.ID, err)
		}
	}
	return len(seed.Sites), nil
}

func cloneSite(site sitedata.Site) sitedata.Site {
	if site.LastFetched != nil {
		ts := *site.LastFetched
		site.LastFetched = &ts
	}
	return site
}
