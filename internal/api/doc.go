// Package api hosts the HTTP server, middleware, and REST handlers for the site
// builder. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - /v1/sites/... for site registration, cached site data, refreshes and
//     navigation lookups.
//   - /v1/spreadsheets/{id}/... for validating a spreadsheet and reading raw tabs.
package api
