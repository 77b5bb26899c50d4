package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/logging"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

const loadFailedMessage = "could not load site data"

func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "fields": err})
		return
	}

	check := s.deps.Service.ValidateSpreadsheet(r.Context(), req.SpreadsheetID)
	if !check.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   check.Message,
			"missing": check.Missing,
		})
		return
	}

	id, err := s.deps.IDGen.NewID()
	if err != nil {
		s.logger.Error("generate site id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create site")
		return
	}
	site := req.toSite(id, s.deps.Clock.Now())
	if err := s.deps.Sites.Create(r.Context(), site); err != nil {
		if errors.Is(err, sitedata.ErrSiteExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("create site failed", zap.String("site_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create site")
		return
	}
	logging.ForSite(s.logger, site.ID, site.SpreadsheetID).Info("site created", zap.String("slug", site.Slug))
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.deps.Sites.List(r.Context())
	if err != nil {
		s.logger.Error("list sites failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list sites")
		return
	}
	if sites == nil {
		sites = []sitedata.Site{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "site_id")
	site, err := s.deps.Sites.Get(r.Context(), siteID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "site not found")
			return
		}
		s.logger.Error("get site failed", zap.String("site_id", siteID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load site")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) getSiteData(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	_, res, ok := s.loadSite(w, r, force)
	if !ok {
		return
	}

	etag, err := s.etag(res.Snapshot)
	if err != nil {
		s.logger.Warn("compute etag failed", zap.Error(err))
	} else {
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "site_id")
	if _, err := s.deps.Sites.Get(r.Context(), siteID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "site not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load site")
		return
	}
	if err := s.deps.Service.Invalidate(r.Context(), siteID); err != nil {
		s.logger.Warn("invalidate cache failed", zap.String("site_id", siteID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not invalidate cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refreshSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "site_id")
	site, err := s.deps.Service.RefreshSite(r.Context(), siteID)
	if err != nil {
		s.writeLoadError(w, siteID, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		SiteID:       site.ID,
		LastFetched:  site.LastFetched,
		CacheVersion: site.CacheVersion,
	})
}

func (s *Server) enqueueRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "background refresh disabled")
		return
	}
	siteID := chi.URLParam(r, "site_id")
	site, err := s.deps.Sites.Get(r.Context(), siteID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "site not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load site")
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	req := sitedata.RefreshRequest{
		SiteID:        site.ID,
		SpreadsheetID: site.SpreadsheetID,
		Submitted:     s.deps.Clock.Now(),
	}
	if err := s.deps.Refresh.Enqueue(queueCtx, req); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, fmt.Sprintf("enqueue refresh: %v", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"site_id": site.ID, "status": "queued"})
}

func (s *Server) getNavigation(w http.ResponseWriter, r *http.Request) {
	site, res, ok := s.loadSite(w, r, false)
	if !ok {
		return
	}
	snap := res.Snapshot
	resp := navigationResponse{
		SiteID:   site.ID,
		Title:    snap.Settings.Lookup("site_name", site.Title),
		Menu:     snap.Navigation(),
		Settings: snap.Settings,
	}
	if home, found := snap.HomePage(); found {
		resp.Home = &home
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	_, res, ok := s.loadSite(w, r, false)
	if !ok {
		return
	}
	snap := res.Snapshot
	folderSlug := chi.URLParam(r, "folder_slug")
	page, found := snap.FindPage(folderSlug, chi.URLParam(r, "page_slug"))
	if !found {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	folder, _ := snap.FolderBySlug(folderSlug)
	writeJSON(w, http.StatusOK, pageResponse{
		Folder:  folder,
		Page:    page,
		Content: snap.ContentForPage(page.ID),
	})
}

func (s *Server) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	site, res, ok := s.loadSite(w, r, false)
	if !ok {
		return
	}
	snap := res.Snapshot
	writeJSON(w, http.StatusOK, diagnosticsResponse{
		SiteID:        site.ID,
		FetchedAt:     snap.FetchedAt,
		FromCache:     res.FromCache,
		OrphanedPages: nonNil(snap.OrphanedPages()),
		InvalidBlocks: nonNil(snap.InvalidBlocks()),
	})
}

func (s *Server) validateSpreadsheet(w http.ResponseWriter, r *http.Request) {
	spreadsheetID := chi.URLParam(r, "spreadsheet_id")
	writeJSON(w, http.StatusOK, s.deps.Service.ValidateSpreadsheet(r.Context(), spreadsheetID))
}

func (s *Server) getTab(w http.ResponseWriter, r *http.Request) {
	spreadsheetID := chi.URLParam(r, "spreadsheet_id")
	tab := chi.URLParam(r, "tab")
	if !sitedata.KnownTab(tab) {
		writeError(w, http.StatusNotFound, "unknown tab")
		return
	}
	table, err := s.deps.Fetcher.FetchTab(r.Context(), spreadsheetID, sitedata.TabName(tab))
	if err != nil {
		logging.ForSite(s.logger, "", spreadsheetID).Warn("tab fetch failed", zap.String("tab", tab), zap.Error(err))
		switch {
		case errors.Is(err, sitedata.ErrNoSpreadsheetID):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, sitedata.ErrUpstreamReported):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "could not fetch tab")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tab": tab, "table": table})
}

// loadSite writes the error response itself and reports ok=false when loading fails.
func (s *Server) loadSite(w http.ResponseWriter, r *http.Request, force bool) (sitedata.Site, sitedata.Result, bool) {
	siteID := chi.URLParam(r, "site_id")
	site, res, err := s.deps.Service.LoadSite(r.Context(), siteID, force)
	if err != nil {
		s.writeLoadError(w, siteID, err)
		return sitedata.Site{}, sitedata.Result{}, false
	}
	return site, res, true
}

func (s *Server) writeLoadError(w http.ResponseWriter, siteID string, err error) {
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	fields := []zap.Field{zap.String("site_id", siteID), zap.Error(err)}
	if tab, ok := sitedata.FailedTab(err); ok {
		fields = append(fields, zap.String("tab", string(tab)))
	}
	s.logger.Error("load site data failed", fields...)
	writeError(w, http.StatusBadGateway, loadFailedMessage)
}

func (s *Server) etag(snap *sitedata.Snapshot) (string, error) {
	if s.deps.Hasher == nil {
		return "", errors.New("no hasher configured")
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	sum, err := s.deps.Hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	return `"` + sum + `"`, nil
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
