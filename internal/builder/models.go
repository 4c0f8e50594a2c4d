// internal/builder/models.go
package builder

import (
	"html/template"
	"time"

	"pagesmith/internal/frontmatter"
)

// SiteInfo is the site-wide data every template receives as .Site.
type SiteInfo struct {
	BaseURL string
	Pages   []string // page names in configuration order
	// HighlightCSS is the stylesheet for highlighted code blocks, empty when
	// highlighting is off. Embed it with <style>{{ .Site.HighlightCSS }}</style>.
	HighlightCSS template.CSS
}

// PageInfo describes the page being rendered.
type PageInfo struct {
	Name        string
	Description string
	URL         string
}

// EntryView is what page templates see of an entry: its metadata and its
// already-rendered markdown, never the raw source.
type EntryView struct {
	Metadata frontmatter.Metadata
	Content  template.HTML
	Page     string
	Slug     string
	URL      string
}

// Date is the entry's creation time; it lets the newest filter order entries.
func (v EntryView) Date() time.Time {
	return v.Metadata.CreatedAt
}

// HasTag reports whether the entry carries tag; used by the tagged filter.
func (v EntryView) HasTag(tag string) bool {
	for _, t := range v.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PageData is passed to page templates. Sections maps every page that has
// entry sources to its entries in discovery order; pages without entries are
// absent, so templates should check with {{ with index .Sections "blog" }}.
type PageData struct {
	Page     PageInfo
	Sections map[string][]EntryView
	BaseHref string
	Site     SiteInfo
}

// EntryData is passed to entry templates. It exposes only the entry's own
// metadata and content.
type EntryData struct {
	Metadata frontmatter.Metadata
	Content  template.HTML
	Page     PageInfo
	Slug     string
	URL      string
	BaseHref string
	Site     SiteInfo
}
