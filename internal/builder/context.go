// internal/builder/context.go
package builder

import (
	"pagesmith/internal/config"
	"pagesmith/internal/content"
)

// Section is a page name paired with its entries in discovery order.
type Section struct {
	Page    string
	Entries []EntryView
}

// SiteContext is the frozen, read-only snapshot of every section, built once
// after all entries are rendered and shared by every page render.
type SiteContext struct {
	sections map[string]Section
	names    []string
}

// NewSiteContext assembles one Section for each page that declares at least
// one entry source. entries is keyed by page name.
func NewSiteContext(pages []config.Page, entries map[string][]*content.Entry) SiteContext {
	ctx := SiteContext{sections: make(map[string]Section)}
	for _, p := range pages {
		if !p.HasEntries() {
			continue
		}
		loaded := entries[p.Name]
		views := make([]EntryView, len(loaded))
		for i, e := range loaded {
			views[i] = EntryView{
				Metadata: e.Metadata,
				Content:  e.Content,
				Page:     e.Page,
				Slug:     e.Slug,
				URL:      e.URL(),
			}
		}
		ctx.sections[p.Name] = Section{Page: p.Name, Entries: views}
		ctx.names = append(ctx.names, p.Name)
	}
	return ctx
}

// Section returns the named section.
func (s SiteContext) Section(name string) (Section, bool) {
	sec, ok := s.sections[name]
	if !ok {
		return Section{}, false
	}
	sec.Entries = append([]EntryView(nil), sec.Entries...)
	return sec, true
}

// Names lists the section names in configuration order.
func (s SiteContext) Names() []string {
	return append([]string(nil), s.names...)
}

// Sections returns a fresh page name -> entries map for one page render, so
// no render can alter what another sees.
func (s SiteContext) Sections() map[string][]EntryView {
	out := make(map[string][]EntryView, len(s.sections))
	for name, sec := range s.sections {
		out[name] = append(make([]EntryView, 0, len(sec.Entries)), sec.Entries...)
	}
	return out
}
