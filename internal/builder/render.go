// internal/builder/render.go
package builder

import (
	"errors"
	"path"

	"pagesmith/internal/config"
	"pagesmith/internal/content"
	"pagesmith/internal/errs"
	"pagesmith/internal/markdown"
	"pagesmith/internal/templates"
	"pagesmith/internal/util"
)

// renderer turns loaded entries and the site context into HTML strings. It
// holds no per-build mutable state, so one renderer serves every task of a
// build concurrently.
type renderer struct {
	md   *markdown.Converter
	tpl  *templates.Registry
	site SiteInfo
}

func pageInfo(p config.Page) PageInfo {
	return PageInfo{Name: p.Name, Description: p.Description, URL: "/" + p.Name + "/"}
}

// renderEntry converts the entry's markdown and injects it into its entry
// template. Both results are stored on e; nothing else is touched.
func (r *renderer) renderEntry(page config.Page, e *content.Entry) error {
	html, err := r.md.Convert(e.Body)
	if err != nil {
		return errs.New(errs.ErrTemplateRender, err).
			WithPage(page.Name).
			WithEntry(e.Slug).
			WithPath(e.Source)
	}

	data := EntryData{
		Metadata: e.Metadata,
		Content:  html,
		Page:     pageInfo(page),
		Slug:     e.Slug,
		URL:      e.URL(),
		BaseHref: util.ComputeBaseHref(path.Join(page.Name, e.Slug, "index.html")),
		Site:     r.site,
	}
	out, err := r.tpl.RenderEntry(e.Template, data, html)
	if err != nil {
		return annotateSource(errs.Annotate(err, page.Name, e.Slug), e.Source)
	}

	e.Content = html
	e.HTML = out
	return nil
}

// renderPage renders a page template against its own copy of the site context.
func (r *renderer) renderPage(page config.Page, site SiteContext) (string, error) {
	data := PageData{
		Page:     pageInfo(page),
		Sections: site.Sections(),
		BaseHref: util.ComputeBaseHref(path.Join(page.Name, "index.html")),
		Site:     r.site,
	}
	out, err := r.tpl.RenderPage(page.TemplatePath, data)
	if err != nil {
		return "", errs.Annotate(err, page.Name, "")
	}
	return out, nil
}

// annotateSource records the markdown file on a structured error that does
// not carry a path yet.
func annotateSource(err error, source string) error {
	var e *errs.Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = source
	}
	return err
}
