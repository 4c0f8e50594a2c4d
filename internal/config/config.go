// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"pagesmith/internal/errs"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "site.yaml"

// Site holds the configuration from the site.yaml file.
// The `yaml` tags are used by the parser to map file keys to struct fields.
type Site struct {
	TemplatesDir string   `yaml:"templates_dir"`
	DestDir      string   `yaml:"dest_dir"`
	BaseURL      string   `yaml:"base_url"`
	Markdown     Markdown `yaml:"markdown"`
	Pages        []Page   `yaml:"pages"`

	// Root is the project root: the directory holding the config file. All
	// relative paths in the file resolve against it.
	Root string `yaml:"-"`
}

// Markdown configures the markdown converter.
type Markdown struct {
	Unsafe         bool   `yaml:"unsafe"`
	HighlightStyle string `yaml:"highlight_style"`
}

// Page is one named top-level section of the site.
type Page struct {
	Name         string        `yaml:"name"`
	TemplatePath string        `yaml:"template_path"`
	Description  string        `yaml:"description"`
	RSS          bool          `yaml:"rss"`
	RSSName      string        `yaml:"rss_name"`
	Entries      []EntrySource `yaml:"entries"`
}

// HasEntries reports whether the page declares at least one entry source.
func (p Page) HasEntries() bool {
	return len(p.Entries) > 0
}

// EntrySource is either a directory scanned recursively for markdown or a
// single markdown file, plus the template each entry is rendered with.
type EntrySource struct {
	SourceDir    string `yaml:"source_dir"`
	FilePath     string `yaml:"file_path"`
	TemplatePath string `yaml:"template_path"`
}

// IsDir reports whether the source is a directory scan.
func (s EntrySource) IsDir() bool {
	return s.SourceDir != ""
}

// Path returns the configured (unresolved) source path.
func (s EntrySource) Path() string {
	if s.IsDir() {
		return s.SourceDir
	}
	return s.FilePath
}

// Load reads and validates the site description at path.
func Load(fsys afero.Fs, path string) (*Site, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errs.New(errs.ErrConfig, fmt.Errorf("could not read config file: %w", err)).WithPath(path)
	}
	cfg, err := Parse(data)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			e.WithPath(path)
		}
		return nil, err
	}
	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		root = filepath.Dir(path)
	}
	cfg.Root = root
	return cfg, nil
}

// LoadFile is Load on the OS filesystem.
func LoadFile(path string) (*Site, error) {
	return Load(afero.NewOsFs(), path)
}

// Parse decodes and validates a site description. Root is left empty.
func Parse(data []byte) (*Site, error) {
	cfg := &Site{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.New(errs.ErrConfig, fmt.Errorf("could not parse config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the build relies on: unique page names and
// well-formed entry sources.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.TemplatesDir) == "" {
		return errs.Newf(errs.ErrConfig, "templates_dir is required")
	}
	if strings.TrimSpace(s.DestDir) == "" {
		return errs.Newf(errs.ErrConfig, "dest_dir is required")
	}
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errs.Newf(errs.ErrConfig, "base_url %q is not an absolute URL", s.BaseURL)
		}
	}

	seen := make(map[string]bool, len(s.Pages))
	for i, p := range s.Pages {
		if err := validPageName(p.Name); err != nil {
			return errs.Newf(errs.ErrConfig, "pages[%d]: %w", i, err)
		}
		if seen[p.Name] {
			return errs.Newf(errs.ErrConfig, "duplicate page name").WithPage(p.Name)
		}
		seen[p.Name] = true

		if p.TemplatePath == "" {
			return errs.Newf(errs.ErrConfig, "template_path is required").WithPage(p.Name)
		}
		if p.RSS && s.BaseURL == "" {
			return errs.Newf(errs.ErrConfig, "rss requires base_url").WithPage(p.Name)
		}
		for j, src := range p.Entries {
			switch {
			case src.SourceDir != "" && src.FilePath != "":
				return errs.Newf(errs.ErrConfig, "entries[%d]: source_dir and file_path are mutually exclusive", j).WithPage(p.Name)
			case src.SourceDir == "" && src.FilePath == "":
				return errs.Newf(errs.ErrConfig, "entries[%d]: one of source_dir or file_path is required", j).WithPage(p.Name)
			case src.TemplatePath == "":
				return errs.Newf(errs.ErrConfig, "entries[%d]: template_path is required", j).WithPage(p.Name)
			}
		}
	}
	return nil
}

func validPageName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("page name is required")
	case name == "." || name == "..":
		return fmt.Errorf("page name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("page name %q must be a single path segment", name)
	}
	return nil
}

// Resolve joins a config-relative path onto the project root.
func (s *Site) Resolve(p string) string {
	if filepath.IsAbs(p) || s.Root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(s.Root, p)
}

// TemplatesPath is the resolved templates directory.
func (s *Site) TemplatesPath() string {
	return s.Resolve(s.TemplatesDir)
}

// DestPath is the resolved build output directory.
func (s *Site) DestPath() string {
	return s.Resolve(s.DestDir)
}

// Page returns the page with the given name.
func (s *Site) Page(name string) (Page, bool) {
	for _, p := range s.Pages {
		if p.Name == name {
			return p, true
		}
	}
	return Page{}, false
}
