// internal/markdown/goldmark_extensions.go
package markdown

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"pagesmith/internal/slugs"
)

// mdLinkTransformer rewrites relative links to sibling markdown files so they
// point at the rendered entry directory instead: "other.md#x" -> "../other/#x".
type mdLinkTransformer struct{}

func newMDLinkTransformer() parser.ASTTransformer {
	return &mdLinkTransformer{}
}

func (t *mdLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if dest, ok := rewriteMarkdownLink(link.Destination); ok {
			link.Destination = dest
		}
		return ast.WalkContinue, nil
	})
}

func rewriteMarkdownLink(dest []byte) ([]byte, bool) {
	u, err := url.Parse(string(dest))
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" || strings.HasPrefix(u.Path, "/") {
		return nil, false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext != ".md" && ext != ".markdown" {
		return nil, false
	}
	stem := slugs.FromPath(u.Path)
	if stem == "" {
		return nil, false
	}

	var b bytes.Buffer
	b.WriteString("../")
	b.WriteString(stem)
	b.WriteString("/")
	if u.Fragment != "" {
		b.WriteString("#")
		b.WriteString(u.Fragment)
	}
	return b.Bytes(), true
}

// headingRenderer emits h1 bare and gives every deeper heading a
// self-referencing anchor built from its auto-generated id.
type headingRenderer struct{}

func (r *headingRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHeading, r.renderHeading)
}

func (r *headingRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	level := byte('0' + n.Level)
	var id []byte
	if v, ok := n.AttributeString("id"); ok && n.Level > 1 {
		id, _ = v.([]byte)
	}

	if entering {
		_, _ = w.WriteString("<h")
		_ = w.WriteByte(level)
		if len(id) > 0 {
			_, _ = w.WriteString(` id="`)
			_, _ = w.Write(util.EscapeHTML(id))
			_, _ = w.WriteString(`"><a href="#`)
			_, _ = w.Write(util.EscapeHTML(id))
			_, _ = w.WriteString(`">`)
		} else {
			_ = w.WriteByte('>')
		}
		return ast.WalkContinue, nil
	}

	if len(id) > 0 {
		_, _ = w.WriteString("</a>")
	}
	_, _ = w.WriteString("</h")
	_ = w.WriteByte(level)
	_, _ = w.WriteString(">\n")
	return ast.WalkContinue, nil
}

// codeBlockRenderer highlights fenced code blocks with chroma, emitting CSS
// classes rather than inline styles so the output survives sanitization.
type codeBlockRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeBlockRenderer(style *chroma.Style) *codeBlockRenderer {
	return &codeBlockRenderer{
		style:     style,
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
}

func (r *codeBlockRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	if err := r.formatter.Format(w, r.style, it); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
