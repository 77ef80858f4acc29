// Package pathkey normalizes WebDAV URL paths into segment arrays and
// derives filename-safe sidecar keys from them.
package pathkey

import (
	"encoding/base64"
	"net/url"
	"path"
	"strings"
)

// Split normalizes a URL path into its non-empty segments. The root path
// ("/" or "") normalizes to an empty, non-nil slice.
func Split(p string) []string {
	p = path.Clean("/" + p)
	if p == "/" {
		return []string{}
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	segs := make([]string, 0, len(parts))
	for _, s := range parts {
		if s == "" {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// Join reconstructs a canonical, leading-slash URL path from segments.
// trailingSlash forces a trailing "/" (used for collections).
func Join(segs []string, trailingSlash bool) string {
	if len(segs) == 0 {
		return "/"
	}
	p := "/" + strings.Join(segs, "/")
	if trailingSlash {
		p += "/"
	}
	return p
}

// Name returns the last segment of a path, or "/" for the root.
func Name(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return segs[len(segs)-1]
}

// Parent returns the segment array of the parent collection.
func Parent(segs []string) []string {
	if len(segs) == 0 {
		return []string{}
	}
	return segs[:len(segs)-1]
}

// InTree reports whether fn is equal to, or nested under, subtree.
func InTree(fn, subtree string) bool {
	if fn == subtree {
		return true
	}
	if !strings.HasSuffix(subtree, "/") {
		subtree += "/"
	}
	return strings.HasPrefix(fn, subtree)
}

// Included reports whether fn lies within subtree at a depth permitted by
// the given Depth value (-1 meaning infinity), returning the path of fn
// relative to subtree when included.
func Included(fn, subtree string, depth int) (string, bool) {
	if fn == subtree {
		return "", true
	}
	if !InTree(fn, subtree) {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(fn, strings.TrimSuffix(subtree, "/")+"/"))
	segs := strings.Split(rel, "/")
	if depth >= 0 && len(segs) > depth {
		return "", false
	}
	return rel, true
}

// URLEncode percent-encodes a path for safe placement in an href.
func URLEncode(s string) string {
	u := url.URL{Path: s}
	return u.EscapedPath()
}

// SidecarKey derives the filename-safe token used to key a resource's
// sidecar records: URL-safe base64 of the leading-slash URL path.
func SidecarKey(urlPath string) string {
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(urlPath))
}

// CanonicalPath builds the canonical leading-slash path (without a forced
// trailing slash) used as the sidecar and lock key for a segment array.
func CanonicalPath(segs []string) string {
	return Join(segs, false)
}

// FromRequestPath is a convenience wrapper: split then immediately rejoin,
// used to canonicalize a raw request URL path before further processing.
func FromRequestPath(raw string) (segs []string, canonical string) {
	segs = Split(raw)
	canonical = CanonicalPath(segs)
	return
}
