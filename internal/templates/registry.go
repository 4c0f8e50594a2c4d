// Package templates loads the site's html/template files once per build and
// renders pages and entries from them.
//
// Templates are named by their slash-separated path relative to the templates
// directory and may include each other with {{ template "partials/nav.html" . }}.
// Every render compiles a fresh template set holding the requested template
// and everything it includes, with the requested template parsed last so its
// own {{ define }}s win over same-named blocks in the templates it includes.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template/parse"

	"github.com/spf13/afero"

	"pagesmith/internal/errs"
)

// ContentBlock is the name of the template an entry template must invoke,
// via {{ block "content" . }}{{ end }} or {{ template "content" . }}, to mark
// where the rendered markdown goes.
const ContentBlock = "content"

// contentFunc is the function the injected content block calls. It is only
// available while rendering an entry.
const contentFunc = "injectContent"

// Registry holds the parsed-once template sources. It is read-only after Load
// and safe for concurrent renders.
type Registry struct {
	sources map[string]string
	deps    map[string][]string
	funcs   template.FuncMap
}

// Load reads every file under dir as a template.
func Load(fsys afero.Fs, dir string) (*Registry, error) {
	r := &Registry{
		sources: make(map[string]string),
		deps:    make(map[string][]string),
		funcs:   Funcs(),
	}

	err := afero.Walk(fsys, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return errs.New(errs.ErrTemplateNotFound, err).WithPath(p)
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fsys, p)
		if err != nil {
			return errs.New(errs.ErrTemplateNotFound, err).WithPath(p)
		}
		r.sources[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", dir, err)
	}

	for name, src := range r.sources {
		t, err := template.New(name).Funcs(r.funcs).Funcs(stubContentFunc()).Parse(src)
		if err != nil {
			return nil, errs.New(errs.ErrTemplateRender, err).WithTemplate(name)
		}
		for _, ref := range references(t) {
			if _, ok := r.sources[ref]; ok && ref != name {
				r.deps[name] = append(r.deps[name], ref)
			}
		}
		sort.Strings(r.deps[name])
	}
	return r, nil
}

// Names lists the loaded template names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a template with the given name was loaded.
func (r *Registry) Has(name string) bool {
	_, ok := r.sources[normalize(name)]
	return ok
}

// RenderPage executes the named template with data.
func (r *Registry) RenderPage(name string, data any) (string, error) {
	name = normalize(name)
	t, err := r.compile(name, nil)
	if err != nil {
		return "", err
	}
	return execute(t, name, data)
}

// RenderEntry executes the named entry template with data, substituting
// content for the content block. The template must invoke the content block,
// and the block must actually run; otherwise the entry would render as a
// structurally valid page with no body.
func (r *Registry) RenderEntry(name string, data any, content template.HTML) (string, error) {
	name = normalize(name)
	injected := false
	extra := template.FuncMap{
		contentFunc: func() template.HTML {
			injected = true
			return content
		},
	}
	t, err := r.compile(name, extra)
	if err != nil {
		return "", err
	}
	if !invokes(t, ContentBlock) {
		return "", errs.Newf(errs.ErrMissingContentBlock,
			`template does not invoke {{ block %q . }}`, ContentBlock).WithTemplate(name)
	}
	if _, err := t.New(ContentBlock).Parse("{{ " + contentFunc + " }}"); err != nil {
		return "", errs.New(errs.ErrTemplateRender, err).WithTemplate(name)
	}

	out, err := execute(t, name, data)
	if err != nil {
		return "", err
	}
	if !injected {
		return "", errs.Newf(errs.ErrMissingContentBlock,
			"the %q block was never executed", ContentBlock).WithTemplate(name)
	}
	return out, nil
}

func (r *Registry) compile(name string, extra template.FuncMap) (*template.Template, error) {
	if _, ok := r.sources[name]; !ok {
		return nil, errs.Newf(errs.ErrTemplateNotFound, "no such template in templates_dir").WithTemplate(name)
	}

	var set *template.Template
	for _, n := range r.order(name) {
		if set == nil {
			set = template.New(n).Funcs(r.funcs)
			if extra != nil {
				set = set.Funcs(extra)
			}
		} else {
			set = set.New(n)
		}
		if _, err := set.Parse(r.sources[n]); err != nil {
			return nil, errs.New(errs.ErrTemplateRender, err).WithTemplate(n)
		}
	}
	return set.Lookup(name), nil
}

// order returns name's transitive includes, each after its own includes,
// followed by name itself.
func (r *Registry) order(name string) []string {
	var out []string
	seen := map[string]bool{}
	var visit func(string)
	visit = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, d := range r.deps[n] {
			visit(d)
		}
		out = append(out, n)
	}
	visit(name)
	return out
}

func execute(t *template.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errs.New(errs.ErrTemplateRender, err).WithTemplate(name)
	}
	return buf.String(), nil
}

func normalize(name string) string {
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "/")
}

// stubContentFunc lets templates be parse-checked at load time without a
// content value.
func stubContentFunc() template.FuncMap {
	return template.FuncMap{contentFunc: func() template.HTML { return "" }}
}

// references lists every template name invoked anywhere in t's set.
func references(t *template.Template) []string {
	seen := map[string]bool{}
	var out []string
	for _, tmpl := range t.Templates() {
		if tmpl.Tree == nil || tmpl.Tree.Root == nil {
			continue
		}
		walk(tmpl.Tree.Root, func(n *parse.TemplateNode) {
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		})
	}
	sort.Strings(out)
	return out
}

// invokes reports whether any template in t's set, other than the block
// itself, invokes the named template.
func invokes(t *template.Template, block string) bool {
	found := false
	for _, tmpl := range t.Templates() {
		if tmpl.Name() == block || tmpl.Tree == nil || tmpl.Tree.Root == nil {
			continue
		}
		walk(tmpl.Tree.Root, func(n *parse.TemplateNode) {
			if n.Name == block {
				found = true
			}
		})
	}
	return found
}

func walk(root parse.Node, fn func(*parse.TemplateNode)) {
	nodes := []parse.Node{root}
	var node parse.Node
	for len(nodes) > 0 {
		node, nodes = nodes[len(nodes)-1], nodes[:len(nodes)-1]
		switch node := node.(type) {
		case *parse.ListNode:
			if node == nil {
				continue
			}
			nodes = append(nodes, node.Nodes...)
		case *parse.IfNode:
			nodes = append(nodes, node.List, node.ElseList)
		case *parse.RangeNode:
			nodes = append(nodes, node.List, node.ElseList)
		case *parse.WithNode:
			nodes = append(nodes, node.List, node.ElseList)
		case *parse.TemplateNode:
			fn(node)
		}
	}
}
