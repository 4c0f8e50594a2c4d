// internal/content/repository.go
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"pagesmith/internal/config"
	"pagesmith/internal/errs"
	"pagesmith/internal/frontmatter"
	"pagesmith/internal/slugs"
)

// Repository discovers and loads the entries of a page. Entry source paths
// resolve against Root, the project root, not the templates directory.
type Repository struct {
	FS   afero.Fs
	Root string
}

// NewRepository returns a repository reading from fsys.
func NewRepository(fsys afero.Fs, root string) *Repository {
	return &Repository{FS: fsys, Root: root}
}

// Load returns every entry of page in discovery order: sources in the order
// they are configured, files of a source_dir in lexical path order.
func (r *Repository) Load(page config.Page) ([]*Entry, error) {
	var entries []*Entry
	bySlug := make(map[string]*Entry)

	for _, src := range page.Entries {
		files, err := r.files(src)
		if err != nil {
			return nil, errs.Annotate(err, page.Name, "")
		}
		for _, f := range files {
			e, err := r.loadFile(f.path)
			if err != nil {
				return nil, errs.Annotate(err, page.Name, "")
			}
			e.Page = page.Name
			e.SortKey = f.key
			e.Template = src.TemplatePath
			e.Slug = slugs.FromPath(f.path)
			if e.Slug == "" {
				return nil, errs.Newf(errs.ErrEntryLoad, "file name %q does not yield a usable slug", filepath.Base(f.path)).
					WithPage(page.Name).
					WithPath(f.path)
			}
			e.Order = len(entries)

			if prev, dup := bySlug[e.Slug]; dup {
				return nil, errs.Newf(errs.ErrDuplicateSlug, "%s and %s both map to %q", prev.Source, e.Source, e.Slug).
					WithPage(page.Name).
					WithEntry(e.Slug).
					WithPath(e.Source)
			}
			bySlug[e.Slug] = e
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type sourceFile struct {
	path string
	key  string
}

func (r *Repository) files(src config.EntrySource) ([]sourceFile, error) {
	path := r.resolve(src.Path())
	info, err := r.FS.Stat(path)
	if err != nil {
		return nil, errs.New(errs.ErrEntryLoad, err).WithPath(path)
	}

	if !src.IsDir() {
		if info.IsDir() {
			return nil, errs.Newf(errs.ErrEntryLoad, "file_path is a directory").WithPath(path)
		}
		return []sourceFile{{path: path, key: filepath.ToSlash(filepath.Base(path))}}, nil
	}
	if !info.IsDir() {
		return nil, errs.Newf(errs.ErrEntryLoad, "source_dir is not a directory").WithPath(path)
	}

	var files []sourceFile
	err = afero.Walk(r.FS, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return errs.New(errs.ErrEntryLoad, err).WithPath(p)
		}
		if info.IsDir() || !IsMarkdown(p) {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return errs.New(errs.ErrEntryLoad, err).WithPath(p)
		}
		files = append(files, sourceFile{path: p, key: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Walk order depends on the filesystem implementation; the sort key does not.
	sort.Slice(files, func(i, j int) bool { return files[i].key < files[j].key })
	return files, nil
}

func (r *Repository) loadFile(path string) (*Entry, error) {
	data, err := afero.ReadFile(r.FS, path)
	if err != nil {
		return nil, errs.New(errs.ErrEntryLoad, err).WithPath(path)
	}
	if !utf8.Valid(data) {
		return nil, errs.Newf(errs.ErrEntryLoad, "content file is not valid UTF-8").WithPath(path)
	}
	meta, body, err := frontmatter.Parse(data)
	if err != nil {
		if e, ok := err.(*errs.Error); ok {
			return nil, e.WithPath(path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Entry{Source: path, Metadata: meta, Body: body}, nil
}

func (r *Repository) resolve(p string) string {
	if filepath.IsAbs(p) || r.Root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(r.Root, p)
}

// IsMarkdown reports whether path has a markdown extension.
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
