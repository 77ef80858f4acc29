package dav

import (
	"context"
	"net/http"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
)

// doDelete recursively removes a resource (spec.md §4.5.4). UNBIND is the
// same operation under a different method name.
func (s *Server) doDelete(ctx context.Context, w http.ResponseWriter, req *Request) error {
	if _, err := s.Backend.Stat(ctx, req.Segs); err != nil {
		return mapBackendErr(err)
	}
	if err := s.Backend.Remove(ctx, req.Segs, backend.RemoveOptions{Recursive: true}); err != nil {
		return mapBackendErr(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) doUnbind(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.doDelete(ctx, w, req)
}
