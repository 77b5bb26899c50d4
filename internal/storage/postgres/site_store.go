package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

const (
	defaultSitesTable = "sites"
	uniqueViolation   = "23505"
)

const siteColumns = `id, COALESCE(owner_id, ''), title, slug, spreadsheet_id, COALESCE(language, ''),
	is_public, last_fetched, cache_version, created_at`

// SiteStore implements sitedata.SiteRegistry on a sites table.
type SiteStore struct {
	pool  Pool
	table string
}

// NewSiteStore builds a SiteStore over an existing pool.
func NewSiteStore(pool Pool, table string) (*SiteStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, defaultSitesTable)
	if err != nil {
		return nil, err
	}
	return &SiteStore{pool: pool, table: table}, nil
}

// Get loads a site or returns sitedata.ErrSiteNotFound.
func (s *SiteStore) Get(ctx context.Context, siteID string) (sitedata.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, siteColumns, s.table)
	site, err := scanSite(s.pool.QueryRow(ctx, query, siteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitedata.Site{}, sitedata.ErrSiteNotFound
		}
		return sitedata.Site{}, fmt.Errorf("select site: %w", err)
	}
	return site, nil
}

// Create inserts a site record.
func (s *SiteStore) Create(ctx context.Context, site sitedata.Site) error {
	if site.ID == "" {
		return fmt.Errorf("site id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	owner_id,
	title,
	slug,
	spreadsheet_id,
	language,
	is_public,
	cache_version,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)
	args := []any{
		site.ID,
		site.OwnerID,
		site.Title,
		site.Slug,
		site.SpreadsheetID,
		site.Language,
		site.IsPublic,
		site.CacheVersion,
		site.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert site %s: %w", site.ID, sitedata.ErrSiteExists)
		}
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

// List returns every site ordered by creation time.
func (s *SiteStore) List(ctx context.Context) ([]sitedata.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, siteColumns, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select sites: %w", err)
	}
	defer rows.Close()

	var out []sitedata.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return out, nil
}

// MarkFetched stamps the last refresh time and cache version of a site.
func (s *SiteStore) MarkFetched(ctx context.Context, siteID string, at time.Time, version int64) error {
	query := fmt.Sprintf(`UPDATE %s SET last_fetched = $2, cache_version = $3 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, siteID, at, version)
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sitedata.ErrSiteNotFound
	}
	return nil
}

func scanSite(row pgx.Row) (sitedata.Site, error) {
	var site sitedata.Site
	err := row.Scan(
		&site.ID,
		&site.OwnerID,
		&site.Title,
		&site.Slug,
		&site.SpreadsheetID,
		&site.Language,
		&site.IsPublic,
		&site.LastFetched,
		&site.CacheVersion,
		&site.CreatedAt,
	)
	if err != nil {
		return sitedata.Site{}, err
	}
	return site, nil
}
