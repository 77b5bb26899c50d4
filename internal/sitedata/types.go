// Package sitedata defines the site snapshot model and the pipeline that resolves a
// spreadsheet into a cached, normalized snapshot.
package sitedata

import (
	"time"
)

// ID is the canonical identifier for folders, pages, and content blocks.
// Spreadsheet cells may hold numbers or strings; both are coerced to ID at the boundary.
type ID string

// TabName names one sheet within a spreadsheet.
type TabName string

// Tabs read from every site spreadsheet.
const (
	TabMenu      TabName = "main_menu"
	TabPages     TabName = "pages"
	TabContent   TabName = "content"
	TabSettings  TabName = "settings"
	TabTemplates TabName = "templates"
)

// RequiredTabs lists the tabs a spreadsheet must expose, in canonical order.
var RequiredTabs = []TabName{TabMenu, TabPages, TabContent, TabSettings}

// KnownTab reports whether name is one of the tabs this system reads.
func KnownTab(name string) bool {
	switch TabName(name) {
	case TabMenu, TabPages, TabContent, TabSettings, TabTemplates:
		return true
	default:
		return false
	}
}

// Row maps a column label to its raw cell value. Absent cells are nil.
type Row map[string]any

// Table is the parsed content of one tab.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ContentType enumerates the block kinds the renderer understands.
type ContentType string

// Supported content block types.
const (
	ContentText      ContentType = "text"
	ContentTitle     ContentType = "title"
	ContentImage     ContentType = "image"
	ContentYouTube   ContentType = "youtube"
	ContentLink      ContentType = "link"
	ContentList      ContentType = "list"
	ContentTable     ContentType = "table"
	ContentSeparator ContentType = "separator"
	ContentFile      ContentType = "file"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentTitle, ContentImage, ContentYouTube, ContentLink,
		ContentList, ContentTable, ContentSeparator, ContentFile:
		return true
	default:
		return false
	}
}

// HeadingLevel is h1..h6, used by title blocks.
type HeadingLevel string

// DefaultHeadingLevel applies when a title block has no usable level.
const DefaultHeadingLevel HeadingLevel = "h2"

// MenuFolder is a top-level navigation entry from the main_menu tab.
type MenuFolder struct {
	ID               ID     `json:"id"`
	Name             string `json:"name"`
	DisplayOrder     int    `json:"display_order"`
	Active           bool   `json:"active"`
	Slug             string `json:"slug"`
	ShortDescription string `json:"short_description,omitempty"`
	Icon             string `json:"icon,omitempty"`
}

// Page belongs to a folder through FolderID.
type Page struct {
	ID              ID     `json:"id"`
	FolderID        ID     `json:"folder_id"`
	Name            string `json:"name"`
	DisplayOrder    int    `json:"display_order"`
	Active          bool   `json:"active"`
	Slug            string `json:"slug"`
	MetaDescription string `json:"meta_description,omitempty"`
	SEOTitle        string `json:"seo_title,omitempty"`
	FeaturedImage   string `json:"featured_image,omitempty"`
	Template        string `json:"template,omitempty"`
}

// ContentBlock belongs to a page through PageID.
type ContentBlock struct {
	ID           ID           `json:"id"`
	PageID       ID           `json:"page_id"`
	ContentType  ContentType  `json:"content_type"`
	DisplayOrder int          `json:"display_order"`
	Content      string       `json:"content"`
	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
	HeadingLevel HeadingLevel `json:"heading_level,omitempty"`
	Active       bool         `json:"active"`
	CSSClass     string       `json:"css_class,omitempty"`
	Animation    string       `json:"animation,omitempty"`
}

// Template is a row of the optional templates tab.
type Template struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Settings maps setting keys to their raw string values.
type Settings map[string]string

// Lookup returns the value for key, or def when the key is absent.
func (s Settings) Lookup(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

// Snapshot bundles every collection of one site as of a single assembly.
// Snapshots are replaced, never mutated.
type Snapshot struct {
	Menu      []MenuFolder   `json:"menu"`
	Pages     []Page         `json:"pages"`
	Content   []ContentBlock `json:"content"`
	Settings  Settings       `json:"settings"`
	Templates []Template     `json:"templates,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Site is the metadata record linking a tenant site to its spreadsheet.
type Site struct {
	ID            string     `json:"id" yaml:"id"`
	OwnerID       string     `json:"owner_id,omitempty" yaml:"owner_id"`
	Title         string     `json:"title" yaml:"title"`
	Slug          string     `json:"slug" yaml:"slug"`
	SpreadsheetID string     `json:"spreadsheet_id" yaml:"spreadsheet_id"`
	Language      string     `json:"language,omitempty" yaml:"language"`
	IsPublic      bool       `json:"is_public" yaml:"is_public"`
	LastFetched   *time.Time `json:"last_fetched,omitempty" yaml:"-"`
	CacheVersion  int64      `json:"cache_version" yaml:"-"`
	CreatedAt     time.Time  `json:"created_at" yaml:"-"`
}

// Result is returned by Service.GetSiteData.
type Result struct {
	Snapshot  *Snapshot `json:"snapshot"`
	FromCache bool      `json:"from_cache"`
}

// ValidationResult reports whether a spreadsheet exposes every required tab.
type ValidationResult struct {
	Valid   bool      `json:"valid"`
	Missing []TabName `json:"missing,omitempty"`
	Message string    `json:"message,omitempty"`
}

// RefreshRequest asks the background workers to rebuild one site's snapshot.
type RefreshRequest struct {
	SiteID        string
	SpreadsheetID string
	Attempt       int
	Submitted     time.Time
}
