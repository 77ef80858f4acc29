// Package dav implements the WebDAV/CalDAV protocol engine: the method
// dispatcher and its guard pipeline, the PROPFIND multistatus builder, the
// lock/precondition evaluator, versioning, quota, collection ordering, the
// CalDAV REPORT subsystem, and the lifecycle hook framework — all layered
// over a backend.PersistAdapter and an internal/davstate.Store.
//
// Grounded on google-go-webdav/webdav.go's dispatch shape (WebDAV.ServeHTTP,
// per-method do* handlers, checkCanWrite/errorHeader) and lock.go's token
// lifecycle, generalized to the storage-agnostic, sidecar-backed data model
// this engine implements instead of a single FileSystem interface.
package dav

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
)

// Extended WebDAV status codes (RFC 4918 §11).
const (
	StatusMulti               = 207
	StatusUnprocessableEntity = 422
	StatusLocked              = 423
	StatusFailedDependency    = 424
	StatusInsufficientStorage = 507
)

var extStatusText = map[int]string{
	StatusMulti:               "Multi-Status",
	StatusUnprocessableEntity: "Unprocessable Entity",
	StatusLocked:              "Locked",
	StatusFailedDependency:    "Failed Dependency",
	StatusInsufficientStorage: "Insufficient Storage",
}

// StatusText extends http.StatusText with the WebDAV extension codes.
func StatusText(code int) string {
	if t, ok := extStatusText[code]; ok {
		return t
	}
	return http.StatusText(code)
}

// Error is the engine's uniform error type: an HTTP status plus an
// optional underlying cause.
type Error struct {
	Code  int
	Text  string
	cause error
}

var (
	ErrBadRequest       = Error{Code: http.StatusBadRequest, Text: "BadRequest"}
	ErrNotFound         = Error{Code: http.StatusNotFound, Text: "NotFound"}
	ErrConflict         = Error{Code: http.StatusConflict, Text: "Conflict"}
	ErrForbidden        = Error{Code: http.StatusForbidden, Text: "Forbidden"}
	ErrMethodNotAllowed = Error{Code: http.StatusMethodNotAllowed, Text: "MethodNotAllowed"}
	ErrUnsupportedType  = Error{Code: http.StatusUnsupportedMediaType, Text: "UnsupportedType"}
	ErrPreconditionFail = Error{Code: http.StatusPreconditionFailed, Text: "PreconditionFailed"}
	ErrLocked           = Error{Code: StatusLocked, Text: "Locked"}
	ErrInsufficientStor = Error{Code: StatusInsufficientStorage, Text: "InsufficientStorage"}
	ErrNotImplemented   = Error{Code: http.StatusNotImplemented, Text: "NotImplemented"}
	ErrInternal         = Error{Code: http.StatusInternalServerError, Text: "Internal"}
)

// WithCause chains an underlying cause onto a reported status.
func (e Error) WithCause(cause error) Error {
	return Error{Code: e.Code, Text: e.Text, cause: cause}
}

func (e Error) Unwrap() error { return e.cause }

func (e Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %s (%s)", e.Code, StatusText(e.Code), e.Text, e.cause)
	}
	return fmt.Sprintf("%d %s: %s", e.Code, StatusText(e.Code), e.Text)
}

var errBadHost = errors.New("dav: destination host does not match request host")

func errMissingHeader(name string) error {
	return fmt.Errorf("dav: missing required %s header", name)
}

// mapBackendErr translates a PersistAdapter error into the engine's error
// taxonomy (spec.md §4.12 / §7).
func mapBackendErr(err error) Error {
	switch {
	case err == nil:
		return Error{}
	case errors.Is(err, backend.ErrPermission):
		return ErrForbidden.WithCause(err)
	case errors.Is(err, backend.ErrNotDirectory), errors.Is(err, backend.ErrIsDirectory), errors.Is(err, backend.ErrDirectoryNotEmpty):
		return ErrConflict.WithCause(err)
	case errors.Is(err, backend.ErrNotFound):
		return ErrNotFound.WithCause(err)
	case errors.Is(err, backend.ErrExists):
		return ErrPreconditionFail.WithCause(err)
	default:
		return ErrInternal.WithCause(err)
	}
}
