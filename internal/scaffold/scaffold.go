// internal/scaffold/scaffold.go
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-slug"
	"github.com/spf13/afero"

	"pagesmith/internal/config"
	"pagesmith/internal/errs"
	"pagesmith/internal/frontmatter"
)

// CreateNewSite writes a starter site into dir: a config file, a small
// template set and one blog entry. It refuses to touch a directory that
// already holds a config file.
func CreateNewSite(fs afero.Fs, dir string) error {
	cfgPath := filepath.Join(dir, config.DefaultFile)
	if exists, err := afero.Exists(fs, cfgPath); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	hello, err := frontmatter.Encode(frontmatter.Metadata{
		Title:     "Hello, world",
		Summary:   "The first entry of a new site.",
		CreatedAt: time.Date(2024, 6, 29, 17, 29, 0, 0, time.UTC),
		Tags:      []string{"hello"},
	}, []byte(helloBody))
	if err != nil {
		return err
	}

	files := map[string]string{
		config.DefaultFile:            siteYAML,
		"templates/base.html":         baseHTML,
		"templates/index.html":        indexHTML,
		"templates/blog.html":         blogHTML,
		"templates/entry.html":        entryHTML,
		"content/blog/hello-world.md": string(hello),
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := fs.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
		if err := afero.WriteFile(fs, full, []byte(files[p]), 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", p, err)
		}
	}
	return nil
}

// CreateNewEntry writes a new markdown entry for page into the page's first
// source_dir and returns its path. The file name is the slug of title, so the
// entry renders at /<page>/<slug>/. Existing files are never overwritten.
func CreateNewEntry(fs afero.Fs, site *config.Site, page, title string, now time.Time) (string, error) {
	p, ok := site.Page(page)
	if !ok {
		return "", errs.Newf(errs.ErrConfig, "no such page").WithPage(page)
	}
	var dir string
	for _, src := range p.Entries {
		if src.IsDir() {
			dir = site.Resolve(src.SourceDir)
			break
		}
	}
	if dir == "" {
		return "", errs.Newf(errs.ErrConfig, "page has no source_dir to add entries to").WithPage(page)
	}

	name, err := slug.Normalize(strings.ToLower(title))
	if err != nil || name == "" {
		return "", fmt.Errorf("cannot derive a file name from title %q", title)
	}
	path := filepath.Join(dir, name+".md")

	data, err := frontmatter.Encode(frontmatter.Metadata{
		Title:     title,
		CreatedAt: now.UTC().Truncate(time.Second),
		Tags:      []string{},
	}, []byte("Write something meaningful here.\n"))
	if err != nil {
		return "", err
	}

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%s already exists", path)
		}
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return path, nil
}

const siteYAML = `templates_dir: templates
dest_dir: dist
base_url: http://localhost:1313/
markdown:
  highlight_style: github
pages:
  - name: home
    template_path: index.html
    description: Welcome
  - name: blog
    template_path: blog.html
    description: Notes and announcements
    rss: true
    entries:
      - source_dir: content/blog
        template_path: entry.html
`

const helloBody = `# Hello, world

This site was generated by pagesmith. Entries live in content/blog; edit this
one or add another with:

    pagesmith new entry blog "My second post"
`

const baseHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{ block "title" . }}{{ .Page.Name }}{{ end }}</title>
  <base href="{{ .BaseHref }}">
  <style>
    body { font-family: sans-serif; max-width: 700px; margin: 2em auto; padding: 0 1em; line-height: 1.6; color: #222; }
    nav a { margin-right: 1em; }
  </style>
  {{ with .Site.HighlightCSS }}<style>{{ . }}</style>{{ end }}
</head>
<body>
  <nav>{{ range .Site.Pages }}<a href="{{ . }}/">{{ . }}</a>{{ end }}</nav>
  <main>{{ block "main" . }}{{ end }}</main>
</body>
</html>
`

const indexHTML = `{{ template "base.html" . }}
{{ define "main" }}
<h1>{{ .Page.Description }}</h1>
{{ with index .Sections "blog" }}
<h2>Latest</h2>
<ul>
  {{ range newest . }}<li><a href="{{ .URL }}">{{ .Metadata.Title }}</a> {{ .Metadata.CreatedAt | date "short" }}</li>{{ end }}
</ul>
{{ end }}
{{ end }}
`

const blogHTML = `{{ template "base.html" . }}
{{ define "main" }}
<h1>{{ .Page.Description }}</h1>
<ul>
  {{ range index .Sections "blog" }}
  <li>{{ .Metadata.CreatedAt | date "short" }} <a href="{{ .URL }}">{{ .Metadata.Title }}</a>{{ with .Metadata.Summary }}: {{ . }}{{ end }}</li>
  {{ end }}
</ul>
{{ end }}
`

const entryHTML = `{{ template "base.html" . }}
{{ define "title" }}{{ .Metadata.Title }}{{ end }}
{{ define "main" }}
<article>
  <p>{{ .Metadata.CreatedAt | publishedOn "long" }}</p>
  {{ block "content" . }}{{ end }}
  {{ with .Metadata.Tags }}<p>Tags: {{ range . }}<span>{{ . }}</span> {{ end }}</p>{{ end }}
</article>
{{ end }}
`
