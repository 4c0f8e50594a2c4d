package scaffold

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/builder"
	"pagesmith/internal/config"
	"pagesmith/internal/frontmatter"
)

func TestCreateNewSite_Builds(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, CreateNewSite(fs, "/mysite"))

	site, err := config.Load(fs, "/mysite/site.yaml")
	require.NoError(t, err)

	b := builder.New(site, builder.WithFS(fs), builder.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entries)

	entry, err := afero.ReadFile(fs, "/mysite/dist/blog/hello-world/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(entry), "<h1>Hello, world</h1>")
	assert.Contains(t, string(entry), "Published on")

	home, err := afero.ReadFile(fs, "/mysite/dist/home/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(home), `href="/blog/hello-world/"`)

	exists, err := afero.Exists(fs, "/mysite/dist/blog.rss")
	require.NoError(t, err)
	assert.True(t, exists)

	require.Error(t, CreateNewSite(fs, "/mysite"))
}

func TestCreateNewEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, CreateNewSite(fs, "/mysite"))
	site, err := config.Load(fs, "/mysite/site.yaml")
	require.NoError(t, err)

	now := time.Date(2024, 7, 1, 9, 30, 15, 500, time.FixedZone("CEST", 2*60*60))
	path, err := CreateNewEntry(fs, site, "blog", "My Second Post", now)
	require.NoError(t, err)
	assert.Equal(t, "/mysite/content/blog/my-second-post.md", path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	meta, body, err := frontmatter.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "My Second Post", meta.Title)
	assert.Equal(t, time.Date(2024, 7, 1, 7, 30, 15, 0, time.UTC), meta.CreatedAt)
	assert.Empty(t, meta.Tags)
	assert.NotEmpty(t, body)

	_, err = CreateNewEntry(fs, site, "blog", "My Second Post", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = CreateNewEntry(fs, site, "home", "x", now)
	require.Error(t, err)
	_, err = CreateNewEntry(fs, site, "nope", "x", now)
	require.Error(t, err)
}
