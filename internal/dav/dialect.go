package dav

import "regexp"

// DialectContext carries the facts a DialectPolicy decides against
// (spec.md §4.10).
type DialectContext struct {
	Method    string
	Path      string
	UserAgent string
}

// DialectPolicy adjusts two specific guard decisions for a client quirk.
// Built-ins are composed with OR-semantics: the first policy to return
// true short-circuits; otherwise the default check applies.
type DialectPolicy interface {
	// EnsureDepthOkForDirOps relaxes the Depth:infinity requirement for
	// collection MOVE/COPY.
	EnsureDepthOkForDirOps(ctx DialectContext, defaultCheck bool) bool
	// EnsureLockOkForProppatch waives a missing lock token on PROPPATCH.
	EnsureLockOkForProppatch(ctx DialectContext, defaultCheck bool) bool
}

// strictPolicy always defers to the default check.
type strictPolicy struct{}

func (strictPolicy) EnsureDepthOkForDirOps(_ DialectContext, def bool) bool    { return def }
func (strictPolicy) EnsureLockOkForProppatch(_ DialectContext, def bool) bool { return def }

// uaPolicy relaxes Depth for dir ops whenever the User-Agent matches a
// regular expression, and never touches the PROPPATCH lock waiver.
type uaPolicy struct {
	re *regexp.Regexp
}

func (p uaPolicy) EnsureDepthOkForDirOps(ctx DialectContext, def bool) bool {
	if def {
		return true
	}
	return p.re.MatchString(ctx.UserAgent)
}

func (uaPolicy) EnsureLockOkForProppatch(_ DialectContext, def bool) bool { return def }

// officePolicy waives the PROPPATCH lock-token requirement for Microsoft
// Office clients, without touching Depth relaxation.
type officePolicy struct {
	re *regexp.Regexp
}

func (officePolicy) EnsureDepthOkForDirOps(_ DialectContext, def bool) bool { return def }

func (p officePolicy) EnsureLockOkForProppatch(ctx DialectContext, def bool) bool {
	if def {
		return true
	}
	return p.re.MatchString(ctx.UserAgent)
}

// Built-in policies (spec.md §4.10).
var (
	DialectStrict    DialectPolicy = strictPolicy{}
	DialectFinder     DialectPolicy = uaPolicy{re: regexp.MustCompile(`(?i)WebDAVFS|CFNetwork|Darwin`)}
	DialectWindows    DialectPolicy = uaPolicy{re: regexp.MustCompile(`(?i)MiniRedir|DavClnt`)}
	DialectLinuxGVFS  DialectPolicy = uaPolicy{re: regexp.MustCompile(`(?i)gvfs|gio/|gnome-vfs|cadaver|davfs2`)}
	DialectOffice     DialectPolicy = officePolicy{re: regexp.MustCompile(`(?i)Microsoft Office`)}
)

// DefaultDialects is the standard policy set composed by Server.
var DefaultDialects = []DialectPolicy{DialectFinder, DialectWindows, DialectLinuxGVFS, DialectOffice}

// composeDepthOk ORs EnsureDepthOkForDirOps across policies.
func composeDepthOk(policies []DialectPolicy, ctx DialectContext, def bool) bool {
	for _, p := range policies {
		if p.EnsureDepthOkForDirOps(ctx, def) {
			return true
		}
	}
	return def
}

// composeLockOkForProppatch ORs EnsureLockOkForProppatch across policies.
func composeLockOkForProppatch(policies []DialectPolicy, ctx DialectContext, def bool) bool {
	for _, p := range policies {
		if p.EnsureLockOkForProppatch(ctx, def) {
			return true
		}
	}
	return def
}
