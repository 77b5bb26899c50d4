package api

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

const maxSiteTitleLength = 200

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

type createSiteRequest struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	SpreadsheetID string `json:"spreadsheet_id"`
	OwnerID       string `json:"owner_id"`
	Language      string `json:"language"`
	IsPublic      bool   `json:"is_public"`
}

func (req *createSiteRequest) normalize() {
	req.Title = strings.TrimSpace(req.Title)
	req.Slug = strings.TrimSpace(req.Slug)
	req.SpreadsheetID = strings.TrimSpace(req.SpreadsheetID)
	req.Language = strings.TrimSpace(req.Language)
}

// Validate checks the request shape before the spreadsheet is contacted.
func (req createSiteRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Title,
			validation.Required,
			validation.Length(1, maxSiteTitleLength),
		),
		validation.Field(&req.Slug,
			validation.Required,
			validation.Match(slugPattern).Error("must contain only lowercase letters, digits and hyphens"),
		),
		validation.Field(&req.SpreadsheetID, validation.Required),
		validation.Field(&req.Language, validation.Length(0, 16)),
	)
}

func (req createSiteRequest) toSite(id string, now time.Time) sitedata.Site {
	return sitedata.Site{
		ID:            id,
		OwnerID:       req.OwnerID,
		Title:         req.Title,
		Slug:          req.Slug,
		SpreadsheetID: req.SpreadsheetID,
		Language:      req.Language,
		IsPublic:      req.IsPublic,
		CreatedAt:     now,
	}
}

type refreshResponse struct {
	SiteID       string     `json:"site_id"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	CacheVersion int64      `json:"cache_version"`
}

type navigationResponse struct {
	SiteID   string               `json:"site_id"`
	Title    string               `json:"title"`
	Menu     []sitedata.MenuEntry `json:"menu"`
	Home     *sitedata.Page       `json:"home,omitempty"`
	Settings sitedata.Settings    `json:"settings"`
}

type pageResponse struct {
	Folder  sitedata.MenuFolder     `json:"folder"`
	Page    sitedata.Page           `json:"page"`
	Content []sitedata.ContentBlock `json:"content"`
}

type diagnosticsResponse struct {
	SiteID        string                  `json:"site_id"`
	FetchedAt     time.Time               `json:"fetched_at"`
	FromCache     bool                    `json:"from_cache"`
	OrphanedPages []sitedata.Page         `json:"orphaned_pages"`
	InvalidBlocks []sitedata.ContentBlock `json:"invalid_blocks"`
}
