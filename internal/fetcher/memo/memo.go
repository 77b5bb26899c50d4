// Package memo provides a short-lived in-process cache in front of a tab fetcher.
package memo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Zevik/google-sheets-site-builder/internal/metrics"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// DefaultTTL is how long a memoized tab is served without refetching.
const DefaultTTL = 5 * time.Minute

type key struct {
	spreadsheetID string
	tab           sitedata.TabName
}

type entry struct {
	table     sitedata.Table
	fetchedAt time.Time
}

// Fetcher memoizes tabs per spreadsheet for a fixed TTL. Entries are only replaced after
// they go stale; there is no other eviction.
type Fetcher struct {
	next  sitedata.TabFetcher
	clock sitedata.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[key]entry
	group   singleflight.Group
}

// New wraps next. A non-positive ttl uses DefaultTTL.
func New(next sitedata.TabFetcher, clock sitedata.Clock, ttl time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fetcher{
		next:    next,
		clock:   clock,
		ttl:     ttl,
		entries: make(map[key]entry),
	}
}

// FetchTab returns the memoized tab when it is younger than the TTL and fetches otherwise.
// Concurrent misses for the same tab share a single upstream call. That call runs detached
// from any one caller's cancellation, so next must bound its own requests; each caller
// still stops waiting when its own ctx is done.
func (f *Fetcher) FetchTab(ctx context.Context, spreadsheetID string, tab sitedata.TabName) (sitedata.Table, error) {
	k := key{spreadsheetID: spreadsheetID, tab: tab}
	if t, ok := f.lookup(k); ok {
		metrics.ObserveMemo("hit")
		return t, nil
	}
	metrics.ObserveMemo("miss")

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(spreadsheetID+"\x00"+string(tab), func() (any, error) {
		t, err := f.next.FetchTab(shared, spreadsheetID, tab)
		if err != nil {
			return sitedata.Table{}, err
		}
		f.mu.Lock()
		f.entries[k] = entry{table: t, fetchedAt: f.clock.Now()}
		f.mu.Unlock()
		return t, nil
	})

	select {
	case <-ctx.Done():
		return sitedata.Table{}, fmt.Errorf("memo fetch: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return sitedata.Table{}, fmt.Errorf("memo fetch: %w", res.Err)
		}
		table, _ := res.Val.(sitedata.Table)
		return table, nil
	}
}

func (f *Fetcher) lookup(k key) (sitedata.Table, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[k]
	if !ok {
		return sitedata.Table{}, false
	}
	if f.clock.Now().Sub(e.fetchedAt) > f.ttl {
		return sitedata.Table{}, false
	}
	return e.table, true
}
