package dav

import (
	"context"
	"net/http"
	"strings"

	"github.com/fenthope/reco"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/davstate"
)

// AuthorizeFunc is the one genuinely pluggable hook on Server: an operator
// may reject a request outright before any of the built-in guards run.
// Returning ok=false with a non-nil err reports that err's message;
// ok=false with a nil err reports a plain 401.
type AuthorizeFunc func(r *http.Request) (ok bool, err error)

// Server is the WebDAV/CalDAV engine. It is a plain http.Handler: mount it
// directly or wrap it in further middleware.
//
// Grounded on google-go-webdav's Handler (FileSystem + LockSystem fields,
// ServeHTTP dispatch table), generalized to a PersistAdapter-backed,
// sidecar-state-driven engine per this package's doc comment.
type Server struct {
	Backend backend.PersistAdapter
	State   *davstate.Store

	// Ignore suppresses OS metadata files (.DS_Store, ._*, .AppleDouble),
	// any operator-supplied patterns, and the sidecar tree from listings and
	// direct access (spec.md §4.4). Defaults to NewIgnore() when nil.
	Ignore *Ignore

	// Dialects adjusts guard decisions for known client quirks
	// (spec.md §4.10). Defaults to DefaultDialects when nil.
	Dialects []DialectPolicy

	// Authorize, if set, gates every request before any built-in guard.
	Authorize AuthorizeFunc

	// CalDAV enables the calendar extension subsystem (spec.md §9) when
	// non-nil.
	CalDAV *CalDAV

	Logger *reco.Logger
}

func (s *Server) logf(level string, format string, args ...any) {
	if s.Logger == nil {
		return
	}
	switch level {
	case "debug":
		s.Logger.Debugf(format, args...)
	case "warn":
		s.Logger.Warnf(format, args...)
	case "error":
		s.Logger.Errorf(format, args...)
	default:
		s.Logger.Infof(format, args...)
	}
}

func (s *Server) ignore() *Ignore {
	if s.Ignore != nil {
		return s.Ignore
	}
	return NewIgnore()
}

func (s *Server) dialects() []DialectPolicy {
	if s.Dialects != nil {
		return s.Dialects
	}
	return DefaultDialects
}

// ServeHTTP runs the full guard pipeline (spec.md §4.6) and dispatches to
// the method handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("DAV", s.davHeader())
	w.Header().Set("MS-Author-Via", "DAV")

	if r.Method == http.MethodOptions {
		s.doOptions(w, r)
		return
	}

	if s.Authorize != nil {
		ok, err := s.Authorize(r)
		if !ok {
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
			} else {
				w.WriteHeader(http.StatusUnauthorized)
			}
			return
		}
	}

	req, err := buildRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.ignore().Matches(req.Segs) {
		s.writeError(w, ErrNotFound.WithCause(backend.ErrNotFound))
		return
	}

	ctx := r.Context()

	if ok, err := s.checkACL(ctx, req.Segs, r.Method); err != nil {
		s.writeError(w, mapBackendErr(err))
		return
	} else if !ok {
		s.writeError(w, ErrForbidden)
		return
	}

	if needsLockCheck(r.Method) {
		ok, err := s.requireLockOk(ctx, req.Path, req)
		if err != nil {
			s.writeError(w, mapBackendErr(err))
			return
		}
		if !ok {
			dctx := DialectContext{Method: r.Method, Path: req.Path, UserAgent: r.UserAgent()}
			if r.Method == "PROPPATCH" && composeLockOkForProppatch(s.dialects(), dctx, false) {
				ok = true
			}
		}
		if !ok {
			s.writeError(w, ErrLocked)
			return
		}
	}

	if needsETagCheck(r.Method) {
		info, statErr := s.Backend.Stat(ctx, req.Segs)
		exists := statErr == nil
		current := weakETag(info, exists)
		if !exists && statErr != nil && !isNotFound(statErr) {
			s.writeError(w, mapBackendErr(statErr))
			return
		}
		if !etagMatchesIfHeader(req, current) {
			s.writeError(w, ErrPreconditionFail)
			return
		}
	}

	handler, ok := s.handlerFor(r.Method)
	if !ok {
		s.writeError(w, ErrMethodNotAllowed.WithCause(nil))
		return
	}
	if err := handler(ctx, w, req); err != nil {
		s.writeError(w, toDAVError(err))
	}
}

func isNotFound(err error) bool {
	return mapBackendErr(err).Code == http.StatusNotFound
}

// needsLockCheck names the methods the lock precondition gates
// (spec.md §3): mutating operations against an already-existing resource.
func needsLockCheck(method string) bool {
	switch method {
	case http.MethodPut, http.MethodDelete, "MOVE", "COPY", "PROPPATCH", "UNBIND", "REBIND":
		return true
	}
	return false
}

func needsETagCheck(method string) bool {
	switch method {
	case http.MethodPut, http.MethodDelete, "MOVE", "COPY", "PROPPATCH":
		return true
	}
	return false
}

type handlerFunc func(ctx context.Context, w http.ResponseWriter, req *Request) error

func (s *Server) handlerFor(method string) (handlerFunc, bool) {
	switch method {
	case http.MethodGet:
		return s.doGet, true
	case http.MethodHead:
		return s.doHead, true
	case http.MethodPut:
		return s.doPut, true
	case http.MethodDelete:
		return s.doDelete, true
	case "MKCOL":
		return s.doMkcol, true
	case "MKCALENDAR":
		return s.doMkcalendar, true
	case "MOVE":
		return s.doMove, true
	case "COPY":
		return s.doCopy, true
	case "BIND":
		return s.doBind, true
	case "UNBIND":
		return s.doUnbind, true
	case "REBIND":
		return s.doRebind, true
	case "LOCK":
		return s.doLock, true
	case "UNLOCK":
		return s.doUnlock, true
	case "PROPFIND":
		return s.doPropfind, true
	case "PROPPATCH":
		return s.doProppatch, true
	case "REPORT":
		return s.doReport, true
	case "SEARCH":
		return s.doSearch, true
	case "ORDERPATCH":
		return s.doOrderpatch, true
	}
	return nil, false
}

func toDAVError(err error) Error {
	if de, ok := err.(Error); ok {
		return de
	}
	return mapBackendErr(err)
}

func (s *Server) writeError(w http.ResponseWriter, err Error) {
	if err.Code == 0 {
		return
	}
	s.logf("debug", "dav: %s", err.Error())
	http.Error(w, err.Text, err.Code)
}

func (s *Server) davHeader() string {
	classes := []string{"1", "2", "3", "ordered-collections"}
	if s.CalDAV != nil {
		classes = append(classes, "calendar-access")
	}
	return strings.Join(classes, ", ")
}

var baseAllow = "OPTIONS, GET, HEAD, PUT, DELETE, PROPFIND, PROPPATCH, MKCOL, COPY, MOVE, LOCK, UNLOCK, BIND, UNBIND, REBIND, ORDERPATCH, REPORT, SEARCH"

func (s *Server) doOptions(w http.ResponseWriter, r *http.Request) {
	allow := baseAllow
	if s.CalDAV != nil {
		allow += ", MKCALENDAR"
	}
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusOK)
}

func clonePathSegs(segs []string) []string {
	return append([]string{}, segs...)
}
