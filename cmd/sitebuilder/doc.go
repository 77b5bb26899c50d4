// Package main hosts the site builder service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, site registration, and site data endpoints.
//     Site records live in the SiteRegistry (Postgres when db.dsn is set, memory otherwise, optionally seeded
//     from a YAML file).
//   - Data pipeline: a site's spreadsheet is read tab by tab through the gviz fetcher (colly collector behind a
//     per-host rate limiter), normalized into typed collections, and assembled into one Snapshot. Nothing is
//     memoized in front of the fetcher, so a forced refresh always reaches the spreadsheet. A failure on any
//     required tab fails the whole assembly.
//   - Caching: snapshots are stored in the configured CacheStore (memory, Postgres, Redis, or none). Cache
//     failures are logged and never fail a read.
//   - Background refresh: a bounded in-memory queue feeds a fixed worker pool sized by refresh.workers. A cron
//     scheduler enqueues sites whose snapshot is older than cache.stale_after_seconds.
//   - Configuration & plumbing: Viper populates config from env/files (SITEBUILDER_ prefix, .env loaded first);
//     zap provides structured logging; Prometheus metrics are exported via the metrics middleware and /metrics.
//
// Quick checklist:
//   - Configure env vars: SITEBUILDER_SERVER_PORT, SITEBUILDER_CACHE_BACKEND, SITEBUILDER_DB_DSN,
//     SITEBUILDER_CACHE_REDIS_URL, SITEBUILDER_AUTH_API_KEY as needed.
//   - Run locally: go run ./cmd/sitebuilder -config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGINT/SIGTERM by draining HTTP requests and stopping workers.
package main
