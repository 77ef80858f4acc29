package dav

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
)

// doPut stores a resource's full body, records a version snapshot, and
// enforces the quota limit (spec.md §4.5.3).
func (s *Server) doPut(ctx context.Context, w http.ResponseWriter, req *Request) error {
	if req.HTTP.Header.Get("Content-Range") != "" {
		return ErrNotImplemented
	}

	if s.CalDAV != nil {
		if err := s.CalDAV.checkCalendarPut(ctx, s, req.Segs); err != nil {
			if de, ok := err.(Error); ok {
				return de
			}
			return mapBackendErr(err)
		}
	}

	var existingSize int64
	info, statErr := s.Backend.Stat(ctx, req.Segs)
	if statErr == nil {
		existingSize = info.Size
	} else if !isNotFound(statErr) {
		return mapBackendErr(statErr)
	}

	newSize := int64(len(req.Body))
	fits, err := s.checkQuota(ctx, existingSize, newSize)
	if err != nil {
		return mapBackendErr(err)
	}
	if !fits {
		return ErrInsufficientStor
	}

	mime := req.ContentType
	if mime == "" {
		mime = "application/octet-stream"
	}

	if err := s.Backend.EnsureDir(ctx, pathkey.Parent(req.Segs)); err != nil {
		return mapBackendErr(err)
	}
	if err := s.Backend.WriteFile(ctx, req.Segs, req.Body, mime); err != nil {
		return mapBackendErr(err)
	}
	if _, err := s.State.RecordVersion(ctx, req.Path, req.Body, mime, time.Now()); err != nil {
		return mapBackendErr(err)
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(req.Body)))
	w.WriteHeader(http.StatusCreated)
	return nil
}
