package dav

import (
	"context"
	"strconv"
	"strings"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
)

// weakETag computes the spec's weak entity tag: exactly `W/"<size>-<mtime>"`
// (spec.md §4.7), both components taken as strings, empty when the
// resource does not exist.
func weakETag(info backend.Info, exists bool) string {
	if !exists {
		return ""
	}
	return `W/"` + strconv.FormatInt(info.Size, 10) + "-" + strconv.FormatInt(info.Mtime.Unix(), 10) + `"`
}

// aclPrivilege maps an HTTP method to the privilege an ACL deny rule can
// name (spec.md §4.6 step 4).
func aclPrivilege(method string) string {
	switch method {
	case "GET", "HEAD", "PROPFIND":
		return "read"
	default:
		return "write"
	}
}

// checkACL walks the ancestor chain from root to target, denying the
// request if any ancestor's dead-properties carry a matching deny rule.
// Deny-wins; default allow.
func (s *Server) checkACL(ctx context.Context, segs []string, method string) (bool, error) {
	priv := aclPrivilege(method)
	for i := 0; i <= len(segs); i++ {
		path := pathkey.CanonicalPath(segs[:i])
		props, err := s.State.GetProps(ctx, path)
		if err != nil {
			return false, err
		}
		if props["Z:acl-deny-"+method] == "true" {
			return false, nil
		}
		if csv := props["Z:acl-deny"]; csv != "" {
			for _, p := range strings.Split(csv, ",") {
				if strings.TrimSpace(p) == priv {
					return false, nil
				}
			}
		}
	}
	return true, nil
}

// requireLockOk reports whether req may proceed against a lock on path:
// no lock means always ok; otherwise the Lock-Token header or the first
// bracketed token in the If: header must match (spec.md §4.7).
func (s *Server) requireLockOk(ctx context.Context, path string, req *Request) (bool, error) {
	rec, locked, err := s.State.GetLock(ctx, path)
	if err != nil {
		return false, err
	}
	if !locked {
		return true, nil
	}
	if tok := lockTokenFromHeader(req.HTTP.Header.Get("Lock-Token")); tok != "" && tok == rec.Token {
		return true, nil
	}
	if toks := req.If.Tokens(); len(toks) > 0 && toks[0] == rec.Token {
		return true, nil
	}
	return false, nil
}

// etagMatchesIfHeader reports whether the If: header's bracketed ETag
// conditions (if any) are satisfied by the resource's current weak ETag
// (spec.md §4.7). No [...] conditions present means the check trivially
// passes.
func etagMatchesIfHeader(req *Request, current string) bool {
	etags := req.If.ETags()
	if len(etags) == 0 {
		return true
	}
	for _, e := range etags {
		if e == current {
			return true
		}
	}
	return false
}
