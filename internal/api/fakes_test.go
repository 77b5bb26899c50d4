package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/config"
	"github.com/Zevik/google-sheets-site-builder/internal/hash/sha256"
	queueMemory "github.com/Zevik/google-sheets-site-builder/internal/queue/memory"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
	"github.com/Zevik/google-sheets-site-builder/internal/storage/memory"
)

type fakeTabFetcher struct {
	mu     sync.Mutex
	tables map[sitedata.TabName]sitedata.Table
	errs   map[sitedata.TabName]error
	calls  int
}

func newFakeTabFetcher() *fakeTabFetcher {
	return &fakeTabFetcher{
		tables: map[sitedata.TabName]sitedata.Table{
			sitedata.TabMenu: {Rows: []sitedata.Row{
				{"id": 1.0, "folder_name": "Home", "display_order": 1.0, "active": "yes", "slug": "home"},
				{"id": 2.0, "folder_name": "Hidden", "display_order": 2.0, "active": "no", "slug": "hidden"},
			}},
			sitedata.TabPages: {Rows: []sitedata.Row{
				{"id": 10.0, "folder_id": 1.0, "page_name": "Welcome", "display_order": 1.0, "active": "yes", "slug": "welcome"},
				{"id": 11.0, "folder_id": 2.0, "page_name": "Secret", "display_order": 1.0, "active": "yes", "slug": "secret"},
			}},
			sitedata.TabContent: {Rows: []sitedata.Row{
				{"id": 100.0, "page_id": 10.0, "content_type": "title", "display_order": 1.0, "content": "Hello", "active": "yes"},
				{"id": 101.0, "page_id": "10", "content_type": "carousel", "display_order": 2.0, "content": "?", "active": "yes"},
			}},
			sitedata.TabSettings: {Rows: []sitedata.Row{
				{"key": "site_name", "value": "Demo Site"},
			}},
		},
		errs: map[sitedata.TabName]error{},
	}
}

func (f *fakeTabFetcher) FetchTab(_ context.Context, _ string, tab sitedata.TabName) (sitedata.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[tab]; err != nil {
		return sitedata.Table{}, &sitedata.TabError{Tab: tab, Err: err}
	}
	table, ok := f.tables[tab]
	if !ok {
		return sitedata.Table{}, &sitedata.TabError{
			Tab: tab,
			Err: fmt.Errorf("%w: Invalid sheet name", sitedata.ErrUpstreamReported),
		}
	}
	return table, nil
}

func (f *fakeTabFetcher) fail(tab sitedata.TabName, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[tab] = err
}

func (f *fakeTabFetcher) remove(tab sitedata.TabName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables, tab)
}

func (f *fakeTabFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeIDGen struct {
	mu  sync.Mutex
	ids []string
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) == 0 {
		return "", fmt.Errorf("no ids left")
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type testEnv struct {
	server  *Server
	fetcher *fakeTabFetcher
	sites   *memory.SiteStore
	queue   *queueMemory.Queue
}

func newTestEnv(cfg config.Config, opts ...func(*Deps)) *testEnv {
	fetcher := newFakeTabFetcher()
	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	sites := memory.NewSiteStore()
	_ = sites.Create(context.Background(), sitedata.Site{
		ID:            "site-1",
		Title:         "Demo",
		Slug:          "demo",
		SpreadsheetID: "sheet-1",
		CreatedAt:     clock.Now(),
	})
	assembler := sitedata.NewAssembler(fetcher, clock, sitedata.AssemblerConfig{}, zap.NewNop())
	service := sitedata.NewService(assembler, memory.NewSnapshotStore(), sites, clock, sitedata.ServiceConfig{}, zap.NewNop())
	queue := queueMemory.NewQueue(4)

	deps := Deps{
		Service: service,
		Sites:   sites,
		Fetcher: fetcher,
		Refresh: queue,
		Hasher:  sha256.New(),
		IDGen:   &fakeIDGen{ids: []string{"site-new"}},
		Clock:   clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &testEnv{
		server:  NewServer(deps, cfg, zap.NewNop()),
		fetcher: fetcher,
		sites:   sites,
		queue:   queue,
	}
}
