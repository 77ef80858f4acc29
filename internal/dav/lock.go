package dav

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

// doLock issues or re-reports an exclusive write lock (spec.md §4.5.7).
// The target must already exist — locking of non-existent paths is an
// explicit non-goal. An already-locked resource only hands its token back
// to the holder presenting it via the `If:` header; anyone else gets 423.
func (s *Server) doLock(ctx context.Context, w http.ResponseWriter, req *Request) error {
	if _, err := s.Backend.Stat(ctx, req.Segs); err != nil {
		return mapBackendErr(err)
	}

	rec, locked, err := s.State.GetLock(ctx, req.Path)
	if err != nil {
		return mapBackendErr(err)
	}

	token := rec.Token
	if locked {
		held := false
		for _, t := range req.If.Tokens() {
			if t == rec.Token {
				held = true
				break
			}
		}
		if !held {
			return ErrLocked
		}
	} else {
		token = "opaquelocktoken:" + uuid.New().String()
		if err := s.State.SetLock(ctx, req.Path, token, time.Now()); err != nil {
			return mapBackendErr(err)
		}
	}

	// LOCK has no documented default depth of its own; treat an omitted
	// header the same as an explicit "infinity", matching RFC 4918's
	// usual LOCK default.
	depth := "0"
	if req.Depth == DepthInfinity || req.Depth == DepthNone {
		depth = "infinity"
	}
	body := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<D:prop xmlns:D="DAV:"><D:lockdiscovery>` +
		xmlscan.LockDiscoveryXML(token, "", "exclusive", depth, 0) +
		`</D:lockdiscovery></D:prop>`

	w.Header().Set("Lock-Token", "<"+token+">")
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, werr := w.Write([]byte(body))
	return werr
}

// doUnlock releases a lock iff the Lock-Token header names its current
// holder (spec.md §4.5.7): a mismatched token is a conflict (409), and a
// missing Lock-Token header is a bad request (400).
func (s *Server) doUnlock(ctx context.Context, w http.ResponseWriter, req *Request) error {
	token := lockTokenFromHeader(req.HTTP.Header.Get("Lock-Token"))
	if token == "" {
		return ErrBadRequest
	}
	ok, err := s.State.ReleaseLock(ctx, req.Path, token)
	if err != nil {
		return mapBackendErr(err)
	}
	if !ok {
		return ErrConflict
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
