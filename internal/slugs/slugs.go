// Package slugs derives URL segments from markdown file names. Entry output
// directories and rewritten links between entries both go through FromPath,
// so a link to "My Post.md" reaches the page rendered from that file.
package slugs

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-slug"
)

// FromPath returns the slug for a file: its lower-cased stem, normalised to be
// URL safe. When normalisation yields nothing the stem is used as is, unless
// that is not a usable path segment either, in which case the result is "".
func FromPath(p string) string {
	base := path.Base(filepath.ToSlash(p))
	stem := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
	if s, err := slug.Normalize(stem); err == nil && Valid(s) {
		return s
	}
	if Valid(stem) {
		return stem
	}
	return ""
}

// Valid reports whether s can name an output directory: a single non-empty
// path segment other than "." or "..".
func Valid(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
