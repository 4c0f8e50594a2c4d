package util

import (
	"path"
	"strings"
)

// ComputeBaseHref calculates the relative path to the site root
// so that CSS/JS links work correctly for pages at any depth.
// relPath is slash-separated and relative to the output root, so
// "blog/first/index.html" gets a BaseHref of "../../".
func ComputeBaseHref(relPath string) string {
	dir := path.Dir(strings.TrimPrefix(relPath, "/"))
	if dir == "." {
		return ""
	}
	depth := strings.Count(dir, "/") + 1
	return strings.Repeat("../", depth)
}
