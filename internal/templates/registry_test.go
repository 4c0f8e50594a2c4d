package templates

import (
	"html/template"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/internal/errs"
)

func loadRegistry(t *testing.T, files map[string]string) *Registry {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tpl", 0o755))
	for name, src := range files {
		require.NoError(t, afero.WriteFile(fs, "/tpl/"+name, []byte(src), 0o644))
	}
	r, err := Load(fs, "/tpl")
	require.NoError(t, err)
	return r
}

func TestLoad_NamesAreSlashRelative(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"index.html":        "home",
		"partials/nav.html": "nav",
		".hidden.swp":       "{{ broken",
	})
	assert.Equal(t, []string{"index.html", "partials/nav.html"}, r.Names())
	assert.True(t, r.Has("./partials/nav.html"))
	assert.False(t, r.Has("nav.html"))
}

func TestLoad_SyntaxError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tpl/bad.html", []byte("{{ if }}"), 0o644))

	_, err := Load(fs, "/tpl")
	require.ErrorIs(t, err, errs.ErrTemplateRender)
	assert.Contains(t, err.Error(), "bad.html")
}

func TestLoad_UnknownFunctionIsRenderError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tpl/bad.html", []byte("{{ shout .Title }}"), 0o644))

	_, err := Load(fs, "/tpl")
	require.ErrorIs(t, err, errs.ErrTemplateRender)
}

func TestRenderPage_ChildDefinesOverrideIncludedBlocks(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"base.html":         `<html>{{ template "partials/nav.html" . }}<main>{{ block "main" . }}default{{ end }}</main></html>`,
		"partials/nav.html": `<nav>{{ .Title }}</nav>`,
		"blog.html":         `{{ template "base.html" . }}{{ define "main" }}<p>{{ .When | date "short" }}</p>{{ end }}`,
	})

	out, err := r.RenderPage("blog.html", map[string]any{
		"Title": "Blog",
		"When":  time.Date(2024, 6, 29, 17, 29, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, `<html><nav>Blog</nav><main><p>2024-06-29</p></main></html>`, out)

	// The base layout on its own still gets its default block.
	base, err := r.RenderPage("base.html", map[string]any{"Title": "x"})
	require.NoError(t, err)
	assert.Contains(t, base, "<main>default</main>")
}

func TestRenderPage_NotFound(t *testing.T) {
	r := loadRegistry(t, map[string]string{"index.html": "x"})

	_, err := r.RenderPage("missing.html", nil)
	require.ErrorIs(t, err, errs.ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "missing.html")
}

func TestRenderPage_ExecutionError(t *testing.T) {
	r := loadRegistry(t, map[string]string{"index.html": `{{ .When | date "fortnightly" }}`})

	_, err := r.RenderPage("index.html", map[string]any{"When": time.Now()})
	require.ErrorIs(t, err, errs.ErrTemplateRender)
	assert.Contains(t, err.Error(), "fortnightly")
}

func TestRenderEntry_InjectsContent(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"entry.html": `<article><h2>{{ .Title }}</h2>{{ block "content" . }}{{ end }}</article>`,
	})

	out, err := r.RenderEntry("entry.html", map[string]any{"Title": "T"}, template.HTML("<h1>First post</h1><p>Hello, world!</p>"))
	require.NoError(t, err)
	assert.Equal(t, `<article><h2>T</h2><h1>First post</h1><p>Hello, world!</p></article>`, out)
}

func TestRenderEntry_MarkerInIncludedLayout(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"base.html":  `<main>{{ block "content" . }}{{ end }}</main>`,
		"entry.html": `{{ template "base.html" . }}`,
	})

	out, err := r.RenderEntry("entry.html", nil, "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, `<main><p>hi</p></main>`, out)
}

func TestRenderEntry_TemplateDirective(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"entry.html": `<div>{{ template "content" . }}</div>`,
	})

	out, err := r.RenderEntry("entry.html", nil, "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, `<div><p>x</p></div>`, out)
}

func TestRenderEntry_MissingContentBlock(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"entry.html": `<article>{{ .Title }}</article>`,
		"other.html": `{{ block "content" . }}{{ end }}`,
	})

	_, err := r.RenderEntry("entry.html", map[string]any{"Title": "T"}, "<p>x</p>")
	require.ErrorIs(t, err, errs.ErrMissingContentBlock)
	assert.Contains(t, err.Error(), "entry.html")
}

func TestRenderEntry_ContentBlockNeverExecuted(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"entry.html": `<article>{{ if .Show }}{{ block "content" . }}{{ end }}{{ end }}</article>`,
	})

	_, err := r.RenderEntry("entry.html", map[string]any{"Show": false}, "<p>x</p>")
	require.ErrorIs(t, err, errs.ErrMissingContentBlock)

	out, err := r.RenderEntry("entry.html", map[string]any{"Show": true}, "<p>x</p>")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>x</p>")
}

func TestRenderEntry_Concurrent(t *testing.T) {
	r := loadRegistry(t, map[string]string{
		"entry.html": `{{ .N }}:{{ block "content" . }}{{ end }}`,
	})

	var wg sync.WaitGroup
	results := make([]string, 32)
	failures := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], failures[i] = r.RenderEntry("entry.html", map[string]int{"N": i}, template.HTML("<b>body</b>"))
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, failures[i])
		assert.Contains(t, results[i], "<b>body</b>")
	}
}
