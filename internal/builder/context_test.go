package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/config"
	"pagesmith/internal/content"
	"pagesmith/internal/frontmatter"
)

func TestNewSiteContext(t *testing.T) {
	pages := []config.Page{
		{Name: "blog", Entries: []config.EntrySource{{SourceDir: "content/blog"}}},
		{Name: "about"},
		{Name: "notes", Entries: []config.EntrySource{{SourceDir: "content/notes"}}},
	}
	at := time.Date(2024, 6, 29, 17, 29, 0, 0, time.UTC)
	entries := map[string][]*content.Entry{
		"blog": {
			{Page: "blog", Slug: "first", Metadata: frontmatter.Metadata{Title: "First", CreatedAt: at, Tags: []string{"go"}}},
			{Page: "blog", Slug: "second", Metadata: frontmatter.Metadata{Title: "Second", CreatedAt: at.Add(time.Hour)}},
		},
	}

	site := NewSiteContext(pages, entries)
	assert.Equal(t, []string{"blog", "notes"}, site.Names())

	_, ok := site.Section("about")
	assert.False(t, ok)

	notes, ok := site.Section("notes")
	require.True(t, ok)
	assert.Empty(t, notes.Entries)

	blog, ok := site.Section("blog")
	require.True(t, ok)
	require.Len(t, blog.Entries, 2)
	assert.Equal(t, "/blog/first/", blog.Entries[0].URL)
	assert.True(t, blog.Entries[0].HasTag("go"))
	assert.False(t, blog.Entries[1].HasTag("go"))
	assert.Equal(t, at, blog.Entries[0].Date())
}

func TestSiteContext_SectionsAreIsolated(t *testing.T) {
	pages := []config.Page{{Name: "blog", Entries: []config.EntrySource{{SourceDir: "x"}}}}
	site := NewSiteContext(pages, map[string][]*content.Entry{
		"blog": {{Page: "blog", Slug: "a"}, {Page: "blog", Slug: "b"}},
	})

	first := site.Sections()
	first["blog"][0].Slug = "changed"
	delete(first, "blog")

	second := site.Sections()
	require.Contains(t, second, "blog")
	assert.Equal(t, "a", second["blog"][0].Slug)
}
