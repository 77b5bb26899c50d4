package sitedata

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeFetcher struct {
	mu     sync.Mutex
	tables map[TabName]Table
	errs   map[TabName]error
	calls  map[TabName]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		tables: map[TabName]Table{
			TabMenu: {Rows: []Row{
				{"id": 3.0, "folder_name": "About", "display_order": 2.0, "active": "yes", "slug": "about"},
				{"id": "1", "folder_name": "Home", "display_order": 1.0, "active": "YES", "slug": "home"},
				{"id": 9.0, "folder_name": "Hidden", "display_order": 3.0, "active": "no", "slug": "hidden"},
			}},
			TabPages: {Rows: []Row{
				{"id": 10.0, "folder_id": "3", "page_name": "Team", "display_order": 1.0, "active": "Yes", "slug": "team"},
				{"id": 11.0, "folder_id": 1.0, "page_name": "Welcome", "display_order": 1.0, "active": "yes", "slug": "welcome"},
				{"id": 12.0, "folder_id": 9.0, "page_name": "Secret", "display_order": 2.0, "active": "yes", "slug": "secret"},
			}},
			TabContent: {Rows: []Row{
				{"id": 100.0, "page_id": 11.0, "content_type": "title", "display_order": 1.0, "content": "Hi", "active": "yes"},
				{"id": 101.0, "page_id": "11", "content_type": "text", "display_order": 2.0, "content": "Body", "active": "yes"},
			}},
			TabSettings: {Rows: []Row{
				{"key": "site_name", "value": "Demo"},
				{"key": "primary_color", "value": "#123456"},
			}},
		},
		errs:  map[TabName]error{},
		calls: map[TabName]int{},
	}
}

func (f *fakeFetcher) FetchTab(ctx context.Context, _ string, tab TabName) (Table, error) {
	f.mu.Lock()
	f.calls[tab]++
	err := f.errs[tab]
	t, ok := f.tables[tab]
	f.mu.Unlock()
	if err != nil {
		return Table{}, &TabError{Tab: tab, Err: err}
	}
	if !ok {
		return Table{}, &TabError{Tab: tab, Err: ErrUpstreamReported}
	}
	if ctx.Err() != nil {
		return Table{}, ctx.Err()
	}
	return t, nil
}

func (f *fakeFetcher) fail(tab TabName, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[tab] = err
}

func (f *fakeFetcher) remove(tab TabName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables, tab)
}

func (f *fakeFetcher) callCount(tab TabName) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tab]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string]*Snapshot
	getErr   error
	putErr   error
	puts     int
	invalids int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*Snapshot{}}
}

func (c *fakeCache) Get(_ context.Context, siteID string) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	snap, ok := c.entries[siteID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return snap, nil
}

func (c *fakeCache) Put(_ context.Context, siteID string, snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[siteID] = snap
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, siteID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalids++
	delete(c.entries, siteID)
	return nil
}

type fakeRegistry struct {
	mu    sync.Mutex
	sites map[string]Site
	err   error
}

func newFakeRegistry(sites ...Site) *fakeRegistry {
	r := &fakeRegistry{sites: map[string]Site{}}
	for _, s := range sites {
		r.sites[s.ID] = s
	}
	return r
}

func (r *fakeRegistry) Get(_ context.Context, id string) (Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[id]
	if !ok {
		return Site{}, ErrSiteNotFound
	}
	return s, nil
}

func (r *fakeRegistry) Create(_ context.Context, site Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sites[site.ID]; ok {
		return errors.New("exists")
	}
	r.sites[site.ID] = site
	return nil
}

func (r *fakeRegistry) List(_ context.Context) ([]Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRegistry) MarkFetched(_ context.Context, id string, at time.Time, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	s, ok := r.sites[id]
	if !ok {
		return ErrSiteNotFound
	}
	s.LastFetched = &at
	s.CacheVersion = version
	r.sites[id] = s
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
