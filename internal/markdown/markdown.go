// internal/markdown/markdown.go
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Options configures a Converter.
type Options struct {
	// Unsafe disables HTML sanitization of the rendered output.
	Unsafe bool
	// HighlightStyle is a chroma style name. Empty disables highlighting of
	// fenced code blocks.
	HighlightStyle string
}

// Converter turns an entry's markdown body into an HTML fragment. It is safe
// for concurrent use.
type Converter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	opts   Options
	style  *chroma.Style
}

// New builds a Converter.
func New(opts Options) *Converter {
	nodeRenderers := []util.PrioritizedValue{
		util.Prioritized(&headingRenderer{}, 200),
	}
	var style *chroma.Style
	if opts.HighlightStyle != "" {
		style = styles.Get(opts.HighlightStyle)
		nodeRenderers = append(nodeRenderers, util.Prioritized(newCodeBlockRenderer(style), 200))
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.Typographer),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(newMDLinkTransformer(), 100),
			),
		),
		goldmark.WithRendererOptions(
			// Sanitization happens after rendering, so raw HTML passes through here.
			html.WithUnsafe(),
			renderer.WithNodeRenderers(nodeRenderers...),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()

	return &Converter{md: md, policy: policy, opts: opts, style: style}
}

// Convert renders body to HTML, sanitizing it unless the converter is unsafe.
func (c *Converter) Convert(body []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(body, &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown with goldmark: %w", err)
	}
	if c.opts.Unsafe {
		return template.HTML(buf.String()), nil
	}
	return template.HTML(c.policy.SanitizeBytes(buf.Bytes())), nil
}

// CSS returns the stylesheet for the configured highlight style, or an empty
// string when highlighting is disabled.
func (c *Converter) CSS() (string, error) {
	if c.style == nil {
		return "", nil
	}
	var b strings.Builder
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&b, c.style); err != nil {
		return "", fmt.Errorf("write highlight css: %w", err)
	}
	return b.String(), nil
}
