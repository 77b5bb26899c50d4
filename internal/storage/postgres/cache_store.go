package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

const defaultCacheTable = "site_cache"

// CacheStore persists snapshots as one JSON row per (site_id, tab_name).
type CacheStore struct {
	pool  Pool
	table string
}

// NewCacheStore builds a CacheStore over an existing pool.
func NewCacheStore(pool Pool, table string) (*CacheStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, defaultCacheTable)
	if err != nil {
		return nil, err
	}
	return &CacheStore{pool: pool, table: table}, nil
}

// Get loads every cached tab of a site. No rows is a cache miss.
func (s *CacheStore) Get(ctx context.Context, siteID string) (*sitedata.Snapshot, error) {
	query := fmt.Sprintf(`SELECT tab_name, data, fetched_at FROM %s WHERE site_id = $1`, s.table)
	rows, err := s.pool.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("%w: select cache rows: %w", sitedata.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	blobs := make(map[sitedata.TabName][]byte)
	var fetchedAt time.Time
	for rows.Next() {
		var (
			tab  string
			data []byte
			at   time.Time
		)
		if err := rows.Scan(&tab, &data, &at); err != nil {
			return nil, fmt.Errorf("%w: scan cache row: %w", sitedata.ErrCacheUnavailable, err)
		}
		blobs[sitedata.TabName(tab)] = data
		if at.After(fetchedAt) {
			fetchedAt = at
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate cache rows: %w", sitedata.ErrCacheUnavailable, err)
	}
	if len(blobs) == 0 {
		return nil, sitedata.ErrCacheMiss
	}
	snap, err := sitedata.DecodeTabs(blobs, fetchedAt)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Put replaces every cached tab of a site inside one transaction, so readers never see a
// mix of two snapshots.
func (s *CacheStore) Put(ctx context.Context, siteID string, snap *sitedata.Snapshot) error {
	blobs, err := sitedata.EncodeTabs(snap)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", sitedata.ErrCacheUnavailable, err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE site_id = $1`, s.table)
	if _, err := tx.Exec(ctx, deleteQuery, siteID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("%w: delete cache rows: %w", sitedata.ErrCacheUnavailable, err)
	}

	insertQuery := fmt.Sprintf(`INSERT INTO %s (site_id, tab_name, data, fetched_at) VALUES ($1, $2, $3, $4)`, s.table)
	for _, tab := range tabOrder(blobs) {
		if _, err := tx.Exec(ctx, insertQuery, siteID, string(tab), blobs[tab], snap.FetchedAt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%w: insert %s: %w", sitedata.ErrCacheUnavailable, tab, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", sitedata.ErrCacheUnavailable, err)
	}
	return nil
}

// Invalidate deletes every cached tab of a site.
func (s *CacheStore) Invalidate(ctx context.Context, siteID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE site_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, siteID); err != nil {
		return fmt.Errorf("%w: delete cache rows: %w", sitedata.ErrCacheUnavailable, err)
	}
	return nil
}

func tabOrder(blobs map[sitedata.TabName][]byte) []sitedata.TabName {
	order := append([]sitedata.TabName(nil), sitedata.RequiredTabs...)
	if _, ok := blobs[sitedata.TabTemplates]; ok {
		order = append(order, sitedata.TabTemplates)
	}
	return order
}
