package sitedata

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Options controls normalization.
type Options struct {
	// FilterInactive drops rows whose active flag is not "yes".
	FilterInactive bool
}

// NormalizeMenu converts main_menu rows into folders sorted by display order.
func NormalizeMenu(rows []Row, opts Options) []MenuFolder {
	out := make([]MenuFolder, 0, len(rows))
	for _, r := range rows {
		f := MenuFolder{
			ID:               r.id("id"),
			Name:             r.text("folder_name", "name"),
			DisplayOrder:     r.order(),
			Active:           r.active(),
			Slug:             r.text("slug"),
			ShortDescription: r.text("short_description"),
			Icon:             r.text("icon"),
		}
		if opts.FilterInactive && !f.Active {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// NormalizePages converts pages rows into pages sorted by display order.
func NormalizePages(rows []Row, opts Options) []Page {
	out := make([]Page, 0, len(rows))
	for _, r := range rows {
		p := Page{
			ID:              r.id("id"),
			FolderID:        r.id("folder_id"),
			Name:            r.text("page_name", "name"),
			DisplayOrder:    r.order(),
			Active:          r.active(),
			Slug:            r.text("slug"),
			MetaDescription: r.text("meta_description"),
			SEOTitle:        r.text("seo_title"),
			FeaturedImage:   r.text("featured_image"),
			Template:        r.text("template"),
		}
		if opts.FilterInactive && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// NormalizeContent converts content rows into blocks sorted by display order.
func NormalizeContent(rows []Row, opts Options) []ContentBlock {
	out := make([]ContentBlock, 0, len(rows))
	for _, r := range rows {
		b := ContentBlock{
			ID:           r.id("id"),
			PageID:       r.id("page_id"),
			ContentType:  ContentType(strings.ToLower(r.text("content_type"))),
			DisplayOrder: r.order(),
			Content:      r.text("content"),
			Title:        r.text("title"),
			Description:  r.text("description"),
			Active:       r.active(),
			CSSClass:     r.text("css_class"),
			Animation:    r.text("animation"),
		}
		if b.ContentType == ContentTitle {
			b.HeadingLevel = parseHeadingLevel(r.text("heading_level"))
		}
		if opts.FilterInactive && !b.Active {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// NormalizeSettings reduces key/value rows into Settings. Rows without a key are
// skipped and a repeated key keeps its last value.
func NormalizeSettings(rows []Row) Settings {
	out := make(Settings, len(rows))
	for _, r := range rows {
		key := strings.TrimSpace(r.text("key"))
		if key == "" {
			continue
		}
		out[key] = r.text("value")
	}
	return out
}

// NormalizeTemplates converts templates rows.
func NormalizeTemplates(rows []Row) []Template {
	out := make([]Template, 0, len(rows))
	for _, r := range rows {
		t := Template{
			ID:          r.id("id"),
			Name:        r.text("template_name", "name"),
			Description: r.text("description"),
		}
		if t.ID == "" && t.Name == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CoerceID renders a cell value as an ID so that numeric and string cells join equally.
func CoerceID(v any) ID {
	return ID(strings.TrimSpace(cellString(v)))
}

// IsActive reports whether a raw active cell means "yes".
func IsActive(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "yes")
	default:
		return false
	}
}

func (r Row) id(key string) ID {
	return CoerceID(r[key])
}

func (r Row) active() bool {
	return IsActive(r["active"])
}

func (r Row) order() int {
	switch t := r["display_order"].(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

// text returns the first present value among keys as a string.
func (r Row) text(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return cellString(v)
		}
	}
	return ""
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func parseHeadingLevel(raw string) HeadingLevel {
	level := strings.ToLower(strings.TrimSpace(raw))
	if len(level) == 2 && level[0] == 'h' && level[1] >= '1' && level[1] <= '6' {
		return HeadingLevel(level)
	}
	return DefaultHeadingLevel
}
