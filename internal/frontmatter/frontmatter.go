// Package frontmatter splits an entry's markdown source into its YAML metadata
// block and its markdown body, and writes such documents back out.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"pagesmith/internal/errs"
)

// Delimiter opens and closes the metadata block.
const Delimiter = "---"

var yamlFormat = frontmatter.NewFormat(Delimiter, Delimiter, yaml.Unmarshal)

// Metadata holds the front-matter of one entry. Timestamps are always UTC.
type Metadata struct {
	Title       string
	Summary     string
	Cover       string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	Tags        []string
	Aliases     []string
	AuthorEmail string
	// Params holds every key not listed above, for use by templates.
	Params map[string]any
}

// document is the wire shape of the YAML block. Pointers distinguish an absent
// key from an empty one.
type document struct {
	Title       *string        `yaml:"title"`
	Summary     string         `yaml:"summary,omitempty"`
	Cover       string         `yaml:"cover,omitempty"`
	CreatedAt   *string        `yaml:"created_at"`
	UpdatedAt   string         `yaml:"updated_at,omitempty"`
	Tags        *[]string      `yaml:"tags"`
	Aliases     []string       `yaml:"aliases,omitempty"`
	AuthorEmail string         `yaml:"author_email,omitempty"`
	Params      map[string]any `yaml:",inline"`
}

// Parse separates src into metadata and body. The body has surrounding
// whitespace trimmed. It performs no I/O.
func Parse(src []byte) (Metadata, []byte, error) {
	var doc document
	body, err := frontmatter.MustParse(bytes.NewReader(src), &doc, yamlFormat)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return Metadata{}, nil, errs.Newf(errs.ErrMissingFrontMatter, "no %q delimited block found", Delimiter)
		}
		return Metadata{}, nil, errs.New(errs.ErrMetadataParse, err)
	}

	meta, err := doc.metadata()
	if err != nil {
		return Metadata{}, nil, errs.New(errs.ErrMetadataParse, err)
	}
	return meta, bytes.TrimSpace(body), nil
}

func (d document) metadata() (Metadata, error) {
	if d.Title == nil || strings.TrimSpace(*d.Title) == "" {
		return Metadata{}, errors.New("title is required")
	}
	if d.CreatedAt == nil || strings.TrimSpace(*d.CreatedAt) == "" {
		return Metadata{}, errors.New("created_at is required")
	}
	if d.Tags == nil {
		return Metadata{}, errors.New("tags is required (use [] for none)")
	}

	created, err := parseTime(*d.CreatedAt)
	if err != nil {
		return Metadata{}, fmt.Errorf("created_at: %w", err)
	}
	m := Metadata{
		Title:       *d.Title,
		Summary:     d.Summary,
		Cover:       d.Cover,
		CreatedAt:   created,
		Tags:        append([]string{}, (*d.Tags)...),
		Aliases:     d.Aliases,
		AuthorEmail: d.AuthorEmail,
		Params:      d.Params,
	}
	if strings.TrimSpace(d.UpdatedAt) != "" {
		updated, err := parseTime(d.UpdatedAt)
		if err != nil {
			return Metadata{}, fmt.Errorf("updated_at: %w", err)
		}
		m.UpdatedAt = &updated
	}
	if m.Params == nil {
		m.Params = map[string]any{}
	}
	return m, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("expected an RFC3339 timestamp: %w", err)
	}
	return t.UTC(), nil
}

// Encode writes metadata and body as a front-matter document that Parse
// reads back to the same values.
func Encode(m Metadata, body []byte) ([]byte, error) {
	title := m.Title
	created := m.CreatedAt.UTC().Format(time.RFC3339)
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := document{
		Title:       &title,
		Summary:     m.Summary,
		Cover:       m.Cover,
		CreatedAt:   &created,
		Tags:        &tags,
		Aliases:     m.Aliases,
		AuthorEmail: m.AuthorEmail,
		Params:      m.Params,
	}
	if m.UpdatedAt != nil {
		doc.UpdatedAt = m.UpdatedAt.UTC().Format(time.RFC3339)
	}

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString(Delimiter + "\n\n")
	buf.Write(body)
	if len(body) > 0 && !bytes.HasSuffix(body, []byte("\n")) {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
