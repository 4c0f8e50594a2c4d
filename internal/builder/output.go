// internal/builder/output.go
package builder

import (
	"fmt"
	"html"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"pagesmith/internal/content"
	"pagesmith/internal/errs"
)

// Target is the output file of a page (slug == "") or of one of its entries.
func Target(dest, page, slug string) string {
	if slug == "" {
		return filepath.Join(dest, page, "index.html")
	}
	return filepath.Join(dest, page, slug, "index.html")
}

// File is one planned output file.
type File struct {
	Path string
	Data []byte
	Page string
	// Entry is the slug the file belongs to, if any.
	Entry string
}

// Plan is the full set of files a build will write. Add refuses two files
// with the same path, so no output ever silently replaces another.
type Plan struct {
	files  []File
	byPath map[string]File
}

func NewPlan() *Plan {
	return &Plan{byPath: make(map[string]File)}
}

func (p *Plan) Add(f File) error {
	if prev, dup := p.byPath[f.Path]; dup {
		return errs.Newf(errs.ErrDuplicateSlug, "%s would be written by both %s and %s",
			f.Path, describe(prev), describe(f)).
			WithPage(f.Page).
			WithEntry(f.Entry).
			WithPath(f.Path)
	}
	p.byPath[f.Path] = f
	p.files = append(p.files, f)
	return nil
}

// Files returns the planned files sorted by path.
func (p *Plan) Files() []File {
	out := append([]File(nil), p.files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (p *Plan) Len() int { return len(p.files) }

func describe(f File) string {
	if f.Entry == "" {
		return fmt.Sprintf("page %q", f.Page)
	}
	return fmt.Sprintf("entry %q of page %q", f.Entry, f.Page)
}

// Writer writes planned files below the destination directory, creating
// parent directories as needed. Files it does not write are left alone.
type Writer struct {
	FS afero.Fs
}

func (w Writer) Write(f File) error {
	if err := w.FS.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return errs.New(errs.ErrOutputWrite, err).WithPage(f.Page).WithEntry(f.Entry).WithPath(f.Path)
	}
	if err := afero.WriteFile(w.FS, f.Path, f.Data, 0644); err != nil {
		return errs.New(errs.ErrOutputWrite, err).WithPage(f.Page).WithEntry(f.Entry).WithPath(f.Path)
	}
	return nil
}

// aliasFiles plans one redirect page per alias of e. An alias names a path
// relative to the entry's page directory, such as "2019/old-title".
func aliasFiles(dest string, e *content.Entry) ([]File, error) {
	var out []File
	for _, alias := range e.Metadata.Aliases {
		clean, err := cleanAlias(alias)
		if err != nil {
			return nil, errs.New(errs.ErrMetadataParse, err).
				WithPage(e.Page).
				WithEntry(e.Slug).
				WithPath(e.Source)
		}
		out = append(out, File{
			Path:  filepath.Join(dest, e.Page, filepath.FromSlash(clean), "index.html"),
			Data:  []byte(redirectHTML(e.Metadata.Title, e.URL())),
			Page:  e.Page,
			Entry: e.Slug,
		})
	}
	return out, nil
}

func cleanAlias(alias string) (string, error) {
	a := strings.Trim(strings.TrimSpace(alias), "/")
	if a == "" {
		return "", fmt.Errorf("alias %q is empty", alias)
	}
	clean := path.Clean(a)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(alias, `\`) {
		return "", fmt.Errorf("alias %q leaves the page directory", alias)
	}
	return clean, nil
}

func redirectHTML(title, url string) string {
	u := html.EscapeString(url)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<link rel="canonical" href="%s">
<meta http-equiv="refresh" content="0; url=%s">
</head>
<body><a href="%s">%s</a></body>
</html>
`, html.EscapeString(title), u, u, u, html.EscapeString(title))
}
