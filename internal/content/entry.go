// internal/content/entry.go
package content

import (
	"html/template"

	"pagesmith/internal/frontmatter"
)

// Entry is one markdown content unit belonging to a page. It is created during
// discovery; Content and HTML are filled in once by the renderer and never
// changed afterwards.
type Entry struct {
	Page     string
	Slug     string
	Source   string // path of the markdown file
	SortKey  string // slash-separated path relative to its source; fixes discovery order
	Order    int    // position within the page's section
	Template string // entry template, relative to templates_dir

	Metadata frontmatter.Metadata
	Body     []byte

	Content template.HTML // markdown body rendered to HTML
	HTML    string        // the entry page: Content rendered through Template
}

// URL is the site-absolute path of the entry page.
func (e *Entry) URL() string {
	return "/" + e.Page + "/" + e.Slug + "/"
}
