package dav

import (
	"path"
	"regexp"
	"strings"

	"github.com/WJQSERVER-STUDIO/davcore/internal/davstate"
)

// Ignore is a glob-based matcher (spec.md §3, §6) hiding OS metadata, the
// sidecar tree, and any operator-configured patterns from listings and
// direct access alike.
type Ignore struct {
	patterns []*regexp.Regexp
}

var defaultIgnoreGlobs = []string{
	".DS_Store",
	"._*",
	".AppleDouble",
	davstate.SidecarRoot,
}

// NewIgnore compiles extra glob patterns (shell-style, matched against the
// base name of each path segment) alongside the built-in defaults.
func NewIgnore(extra ...string) *Ignore {
	ig := &Ignore{}
	for _, g := range defaultIgnoreGlobs {
		ig.patterns = append(ig.patterns, globToRegexp(g))
	}
	for _, g := range extra {
		if g == "" {
			continue
		}
		ig.patterns = append(ig.patterns, globToRegexp(g))
	}
	return ig
}

func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '(', ')', '+', '|', '^', '$', '[', ']', '{', '}', '\\':
			b.WriteString("\\")
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Matches reports whether any segment of the given path (by its base name)
// matches an ignore pattern, or whether the path lies under the sidecar
// root.
func (ig *Ignore) Matches(segs []string) bool {
	for _, seg := range segs {
		for _, p := range ig.patterns {
			if p.MatchString(seg) {
				return true
			}
		}
	}
	return false
}

// MatchesName reports whether a single child name (as seen in a directory
// listing) should be hidden.
func (ig *Ignore) MatchesName(name string) bool {
	base := path.Base(name)
	for _, p := range ig.patterns {
		if p.MatchString(base) {
			return true
		}
	}
	return false
}
