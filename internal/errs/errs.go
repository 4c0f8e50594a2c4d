// Package errs defines the failure taxonomy of a site build.
//
// Every failure is fatal to the build. A failure is an *Error carrying one of
// the sentinel kinds below plus whatever context (file, page, entry, template)
// was known at the point it was raised, so it can be shown to the user as-is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Match with errors.Is.
var (
	ErrConfig              = errors.New("config error")
	ErrMetadataParse       = errors.New("metadata parse error")
	ErrMissingFrontMatter  = errors.New("missing front matter")
	ErrDuplicateSlug       = errors.New("duplicate slug")
	ErrEntryLoad           = errors.New("entry load error")
	ErrMissingContentBlock = errors.New("missing content block")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateRender      = errors.New("template render error")
	ErrOutputWrite         = errors.New("output write error")
)

var kinds = []error{
	ErrConfig,
	ErrMetadataParse,
	ErrMissingFrontMatter,
	ErrDuplicateSlug,
	ErrEntryLoad,
	ErrMissingContentBlock,
	ErrTemplateNotFound,
	ErrTemplateRender,
	ErrOutputWrite,
}

// Error is a classified build failure.
type Error struct {
	Kind     error
	Path     string
	Page     string
	Entry    string
	Template string
	Err      error
}

// New creates an Error of the given kind wrapping cause (which may be nil).
func New(kind error, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Newf creates an Error of the given kind with a formatted cause.
func Newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithPath records the offending file.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithPage records the page being processed.
func (e *Error) WithPage(page string) *Error {
	e.Page = page
	return e
}

// WithEntry records the entry slug being processed.
func (e *Error) WithEntry(entry string) *Error {
	e.Entry = entry
	return e
}

// WithTemplate records the template being rendered.
func (e *Error) WithTemplate(name string) *Error {
	e.Template = name
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("build error")
	}
	if e.Page != "" {
		fmt.Fprintf(&b, ": page %q", e.Page)
	}
	if e.Entry != "" {
		fmt.Fprintf(&b, ": entry %q", e.Entry)
	}
	if e.Template != "" {
		fmt.Fprintf(&b, ": template %q", e.Template)
	}
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the sentinel kind of err, or nil when err is not classified.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Annotate fills page/entry context on err when it is an *Error that does not
// carry it yet. Other errors are returned unchanged.
func Annotate(err error, page, entry string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Page == "" {
		e.Page = page
	}
	if e.Entry == "" {
		e.Entry = entry
	}
	return err
}
