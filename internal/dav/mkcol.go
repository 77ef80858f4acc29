package dav

import (
	"context"
	"net/http"
	"strings"

	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

func (s *Server) doMkcol(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.mkcol(ctx, w, req, nil)
}

// doMkcalendar is MKCOL with CalDAV's default calendar dead-properties
// layered in (spec.md §4.5.5, §6).
func (s *Server) doMkcalendar(ctx context.Context, w http.ResponseWriter, req *Request) error {
	if s.CalDAV == nil {
		return ErrMethodNotAllowed
	}
	return s.mkcol(ctx, w, req, defaultCalendarProps())
}

func (s *Server) mkcol(ctx context.Context, w http.ResponseWriter, req *Request, extraProps map[string]string) error {
	if len(req.Segs) == 0 {
		return ErrForbidden
	}
	if _, err := s.Backend.Stat(ctx, req.Segs); err == nil {
		return ErrMethodNotAllowed
	} else if !isNotFound(err) {
		return mapBackendErr(err)
	}

	parent := pathkey.Parent(req.Segs)
	if _, err := s.Backend.Stat(ctx, parent); err != nil {
		if isNotFound(err) {
			return ErrConflict.WithCause(err)
		}
		return mapBackendErr(err)
	}

	props := map[string]string{}
	for k, v := range extraProps {
		props[k] = v
	}
	if len(req.Body) > 0 {
		if req.ContentType != "" && !strings.Contains(req.ContentType, "xml") {
			return ErrUnsupportedType
		}
		for _, op := range xmlscan.ParseMkcolProps(req.Body) {
			if !op.Remove {
				props[op.Name] = op.Value
			}
		}
	}

	if err := s.Backend.EnsureDir(ctx, req.Segs); err != nil {
		return mapBackendErr(err)
	}
	if len(props) > 0 {
		if err := s.State.MergeProps(ctx, req.Path, props); err != nil {
			return mapBackendErr(err)
		}
	}

	w.WriteHeader(http.StatusCreated)
	return nil
}
