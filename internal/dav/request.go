package dav

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/WJQSERVER-STUDIO/davcore/internal/ifheader"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
)

// Request is the normalized view of an incoming WebDAV request threaded
// through the guard pipeline and into the method handler (spec.md §4.1,
// §4.6).
type Request struct {
	HTTP *http.Request

	Segs        []string // normalized path segments
	Path        string   // canonical leading-slash path, no trailing slash (root = "/")
	Depth       int      // DepthInfinity, DepthNone, or else the explicit non-negative integer (normally 0 or 1)
	If          *ifheader.Tag
	Overwrite   bool
	Body        []byte
	ContentType string
}

// DepthInfinity and DepthNone are the two Depth values that aren't a plain
// 0/1: DepthInfinity for an explicit `Depth: infinity` header, DepthNone
// when the header was omitted entirely. Keeping them distinct matters
// because different operations default an absent header differently
// (spec.md §4.5.6 requires the literal header on a collection MOVE/COPY;
// §4.5.9 defaults PROPFIND's absent Depth to 1) — collapsing "absent" into
// "infinity" would silently grant the former wherever only the latter was
// asked for.
const (
	DepthInfinity = -1
	DepthNone     = -2
)

// resolveDepth substitutes def for an absent Depth header, passing any
// explicit value through unchanged.
func resolveDepth(d, def int) int {
	if d == DepthNone {
		return def
	}
	return d
}

func parseDepth(r *http.Request) (int, error) {
	dh := r.Header.Get("Depth")
	switch strings.ToLower(dh) {
	case "":
		return DepthNone, nil
	case "infinity":
		return DepthInfinity, nil
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	d, err := strconv.Atoi(dh)
	if err != nil || d < 0 {
		return 0, ErrBadRequest.WithCause(err)
	}
	return d, nil
}

func buildRequest(r *http.Request) (*Request, error) {
	segs, canonical := pathkey.FromRequestPath(r.URL.Path)

	depth, err := parseDepth(r)
	if err != nil {
		return nil, err
	}

	var tag *ifheader.Tag
	if ih := r.Header.Get("If"); ih != "" {
		tag, err = ifheader.Parse(ih)
		if err != nil {
			return nil, ErrBadRequest.WithCause(err)
		}
		if err := tag.RewriteHosts(r.Host); err != nil {
			return nil, ErrBadRequest.WithCause(err)
		}
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(io.LimitReader(r.Body, 16<<20))
		if err != nil {
			return nil, ErrBadRequest.WithCause(err)
		}
	}

	return &Request{
		HTTP:        r,
		Segs:        segs,
		Path:        canonical,
		Depth:       depth,
		If:          tag,
		Overwrite:   r.Header.Get("Overwrite") != "F",
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	}, nil
}

// lockTokenFromHeader extracts the bracketed token from a Lock-Token
// header value (`<opaquelocktoken:...>`).
func lockTokenFromHeader(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '<' && v[len(v)-1] == '>' {
		return v[1 : len(v)-1]
	}
	return v
}

// destinationSegs resolves a Destination/Source header to normalized
// segments, requiring the host (when present) to match the request host.
func destinationSegs(r *http.Request, headerName string) ([]string, string, error) {
	raw := r.Header.Get(headerName)
	if raw == "" {
		return nil, "", ErrBadRequest.WithCause(errMissingHeader(headerName))
	}
	u, err := r.URL.Parse(raw)
	if err != nil {
		return nil, "", ErrBadRequest.WithCause(err)
	}
	if u.Host != "" && u.Host != r.Host {
		return nil, "", ErrBadRequest.WithCause(errBadHost)
	}
	segs, canonical := pathkey.FromRequestPath(u.Path)
	return segs, canonical, nil
}
