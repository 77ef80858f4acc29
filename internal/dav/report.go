package dav

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

func writeXML(w http.ResponseWriter, status int, body []byte) error {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// doReport dispatches by REPORT body (spec.md §4.5.10, §4.11).
func (s *Server) doReport(ctx context.Context, w http.ResponseWriter, req *Request) error {
	switch xmlscan.ParseReportKind(req.Body) {
	case xmlscan.ReportVersionTree, xmlscan.ReportVersionHistory:
		return s.reportVersions(ctx, w, req)
	case xmlscan.ReportCalendarQuery:
		if s.CalDAV == nil {
			return ErrBadRequest
		}
		body, err := s.handleCalendarQuery(ctx, req)
		if err != nil {
			return err
		}
		return writeXML(w, StatusMulti, body)
	case xmlscan.ReportCalendarMultiget:
		if s.CalDAV == nil {
			return ErrBadRequest
		}
		body, err := s.handleCalendarMultiget(ctx, req)
		if err != nil {
			return err
		}
		return writeXML(w, StatusMulti, body)
	case xmlscan.ReportFreeBusyQuery:
		if s.CalDAV == nil {
			return ErrBadRequest
		}
		body, err := s.handleFreeBusyQuery(ctx, req)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, werr := w.Write(body)
		return werr
	default:
		return ErrBadRequest
	}
}

// reportVersions renders version-tree/version-history as one multistatus
// response entry per recorded version (spec.md §4.8).
func (s *Server) reportVersions(ctx context.Context, w http.ResponseWriter, req *Request) error {
	versions, err := s.State.ListVersions(ctx, req.Path)
	if err != nil {
		return mapBackendErr(err)
	}
	ms := &xmlscan.MultiStatus{ExtraXMLNS: map[string]string{"Z": "urn:x"}}
	href := pathkey.URLEncode(req.Path)
	for _, v := range versions {
		ms.Add(xmlscan.ResponseEntry{
			Href: href,
			PropStats: []xmlscan.PropStatGroup{{Status: http.StatusOK, Props: []xmlscan.RawProp{
				{Name: "Z:version-id", Value: v.ID},
				{Name: "Z:size", Value: strconv.FormatInt(v.Size, 10)},
				{Name: "Z:createdAt", Value: v.CreatedAt.UTC().Format(time.RFC3339)},
			}}},
		})
	}
	return writeXML(w, StatusMulti, ms.Render())
}

// doSearch is the minimal SEARCH handler (spec.md §4.5.11): a breadth-first
// subtree walk matching member names containing the requested text.
func (s *Server) doSearch(ctx context.Context, w http.ResponseWriter, req *Request) error {
	el, ok := xmlscan.Find(string(req.Body), "contains")
	if !ok {
		return ErrBadRequest
	}
	needle := strings.ToLower(strings.TrimSpace(el.Inner))

	entities, err := s.collectEntities(ctx, req.Segs, -1)
	if err != nil {
		return mapBackendErr(err)
	}
	ms := &xmlscan.MultiStatus{}
	for _, e := range entities {
		if strings.Contains(strings.ToLower(pathkey.Name(e.segs)), needle) {
			ms.Add(xmlscan.ResponseEntry{Href: e.href, Status: http.StatusOK})
		}
	}
	return writeXML(w, StatusMulti, ms.Render())
}

// doOrderpatch persists the explicit member order for a collection
// (spec.md §4.5.12, §4.9).
func (s *Server) doOrderpatch(ctx context.Context, w http.ResponseWriter, req *Request) error {
	info, err := s.Backend.Stat(ctx, req.Segs)
	if err != nil {
		return mapBackendErr(err)
	}
	if info.Type != backend.Dir {
		return ErrConflict
	}
	names := xmlscan.ParseOrderPatch(req.Body)
	if err := s.State.SetOrder(ctx, req.Path, names); err != nil {
		return mapBackendErr(err)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
