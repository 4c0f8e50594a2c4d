package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBaseHref(t *testing.T) {
	cases := map[string]string{
		"index.html":            "",
		"blog/index.html":       "../",
		"blog/first/index.html": "../../",
		"/blog/index.html":      "../",
	}
	for in, want := range cases {
		assert.Equal(t, want, ComputeBaseHref(in), in)
	}
}
