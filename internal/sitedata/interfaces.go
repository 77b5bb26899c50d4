package sitedata

import (
	"context"
	"time"
)

// TabFetcher retrieves one tab of a spreadsheet as raw rows.
type TabFetcher interface {
	FetchTab(ctx context.Context, spreadsheetID string, tab TabName) (Table, error)
}

// CacheStore persists snapshots keyed by site id. It enforces no expiry.
type CacheStore interface {
	// Get returns ErrCacheMiss when nothing is stored for the site.
	Get(ctx context.Context, siteID string) (*Snapshot, error)
	// Put replaces any snapshot previously stored for the site.
	Put(ctx context.Context, siteID string, snapshot *Snapshot) error
	Invalidate(ctx context.Context, siteID string) error
}

// SiteRegistry stores site metadata records.
type SiteRegistry interface {
	Get(ctx context.Context, siteID string) (Site, error)
	Create(ctx context.Context, site Site) error
	List(ctx context.Context) ([]Site, error)
	MarkFetched(ctx context.Context, siteID string, at time.Time, version int64) error
}

// RefreshQueue carries background refresh requests to workers.
type RefreshQueue interface {
	Enqueue(ctx context.Context, req RefreshRequest) error
	Dequeue(ctx context.Context) (RefreshRequest, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces site ids.
type IDGenerator interface {
	NewID() (string, error)
}
