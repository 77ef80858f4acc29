package dav

import (
	"context"
	"net/http"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
)

// doMove and doCopy resolve `Destination:` and delegate to transfer
// (spec.md §4.5.6). REBIND is MOVE to Destination under a different
// method name; BIND is COPY from `Source:` into the request path.
func (s *Server) doMove(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.moveOrCopy(ctx, w, req, true)
}

func (s *Server) doCopy(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.moveOrCopy(ctx, w, req, false)
}

func (s *Server) doRebind(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.moveOrCopy(ctx, w, req, true)
}

func (s *Server) doBind(ctx context.Context, w http.ResponseWriter, req *Request) error {
	srcSegs, _, err := destinationSegs(req.HTTP, "Source")
	if err != nil {
		return toDAVError(err)
	}
	return s.transfer(ctx, w, req, srcSegs, req.Segs, req.Path, false)
}

func (s *Server) moveOrCopy(ctx context.Context, w http.ResponseWriter, req *Request, isMove bool) error {
	dstSegs, dstPath, err := destinationSegs(req.HTTP, "Destination")
	if err != nil {
		return toDAVError(err)
	}
	return s.transfer(ctx, w, req, req.Segs, dstSegs, dstPath, isMove)
}

// transfer implements the shared MOVE/COPY/BIND/REBIND semantics
// (spec.md §4.5.6): Depth:infinity required on a directory source unless
// a dialect relaxes it, lock preconditions on both ends, Overwrite
// semantics, 201 on create / 204 on replace.
func (s *Server) transfer(ctx context.Context, w http.ResponseWriter, req *Request, srcSegs, dstSegs []string, dstPath string, isMove bool) error {
	srcInfo, err := s.Backend.Stat(ctx, srcSegs)
	if err != nil {
		return mapBackendErr(err)
	}

	if srcInfo.Type == backend.Dir {
		dctx := DialectContext{Method: req.HTTP.Method, Path: req.Path, UserAgent: req.HTTP.UserAgent()}
		// A collection move/copy requires the literal "Depth: infinity"
		// header (spec.md §4.5.6); an omitted header is not the same
		// thing and must not be treated as satisfying it.
		haveInfinity := req.Depth == DepthInfinity
		if !composeDepthOk(s.dialects(), dctx, haveInfinity) {
			return ErrBadRequest
		}
	}

	srcPath := pathkey.CanonicalPath(srcSegs)
	if ok, err := s.requireLockOk(ctx, srcPath, req); err != nil {
		return mapBackendErr(err)
	} else if !ok {
		return ErrLocked
	}
	if ok, err := s.requireLockOk(ctx, dstPath, req); err != nil {
		return mapBackendErr(err)
	} else if !ok {
		return ErrLocked
	}

	destInfo, statErr := s.Backend.Stat(ctx, dstSegs)
	destExists := statErr == nil
	if statErr != nil && !isNotFound(statErr) {
		return mapBackendErr(statErr)
	}
	if destExists && !req.Overwrite {
		return ErrPreconditionFail
	}
	_ = destInfo

	if destExists {
		if err := s.Backend.Remove(ctx, dstSegs, backend.RemoveOptions{Recursive: true}); err != nil {
			return mapBackendErr(err)
		}
	}
	if err := s.Backend.EnsureDir(ctx, pathkey.Parent(dstSegs)); err != nil {
		return mapBackendErr(err)
	}

	if isMove {
		err = s.Backend.Move(ctx, srcSegs, dstSegs)
	} else {
		err = s.Backend.Copy(ctx, srcSegs, dstSegs)
	}
	if err != nil {
		return mapBackendErr(err)
	}

	if destExists {
		w.WriteHeader(http.StatusNoContent)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	return nil
}
