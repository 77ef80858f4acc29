package dav

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

// bufResponseWriter buffers a response so a compat after-hook can inspect
// and rewrite it (spec.md §4.10's "get-prefer-minimal") before anything
// reaches the real http.ResponseWriter. Range/multipart-byteranges
// assembly is left to the standard library's http.ServeContent, which
// already implements RFC 7233 correctly; this buffer only exists for the
// narrow Prefer-minimal rewrite path.
type bufResponseWriter struct {
	header http.Header
	status int
	body   *bytebufferpool.ByteBuffer
}

func newBufResponseWriter() *bufResponseWriter {
	return &bufResponseWriter{header: make(http.Header), body: bytebufferpool.Get()}
}

func (b *bufResponseWriter) Header() http.Header { return b.header }

func (b *bufResponseWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufResponseWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufResponseWriter) release() { bytebufferpool.Put(b.body) }

// doGet and doHead share one implementation: http.ServeContent already
// distinguishes HEAD from GET on the ResponseWriter it's handed.
func (s *Server) doGet(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.serveGetOrHead(ctx, w, req)
}

func (s *Server) doHead(ctx context.Context, w http.ResponseWriter, req *Request) error {
	return s.serveGetOrHead(ctx, w, req)
}

func (s *Server) serveGetOrHead(ctx context.Context, w http.ResponseWriter, req *Request) error {
	info, err := s.Backend.Stat(ctx, req.Segs)
	if err != nil {
		return mapBackendErr(err)
	}
	if info.Type == backend.Dir {
		return s.serveIndex(ctx, w, req)
	}
	if vid := req.HTTP.Header.Get("X-Version-Id"); vid != "" {
		return s.serveVersion(ctx, w, req, vid)
	}

	mime := info.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}

	f, err := s.Backend.OpenFile(ctx, req.Segs)
	if err != nil {
		return mapBackendErr(err)
	}
	defer f.Close()

	preferMinimal := req.HTTP.Header.Get("Prefer") == "return=minimal" && req.HTTP.Method != http.MethodHead
	if !preferMinimal {
		w.Header().Set("Content-Type", mime)
		w.Header().Set("ETag", weakETag(info, true))
		http.ServeContent(w, req.HTTP, req.Path, info.Mtime, f)
		return nil
	}

	buf := newBufResponseWriter()
	defer buf.release()
	buf.Header().Set("Content-Type", mime)
	buf.Header().Set("ETag", weakETag(info, true))
	http.ServeContent(buf, req.HTTP, req.Path, info.Mtime, f)

	for k, v := range buf.Header() {
		w.Header()[k] = v
	}
	if buf.status == http.StatusOK {
		w.Header().Del("Content-Length")
		w.Header().Set("Preference-Applied", "return=minimal")
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	w.WriteHeader(buf.status)
	_, werr := w.Write(buf.body.B)
	return werr
}

func (s *Server) serveVersion(ctx context.Context, w http.ResponseWriter, req *Request, id string) error {
	data, mime, err := s.State.ReadVersion(ctx, req.Path, id)
	if err != nil {
		return mapBackendErr(err)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if req.HTTP.Method == http.MethodHead {
		return nil
	}
	_, err = w.Write(data)
	return err
}

// serveIndex renders a minimal HTML listing for a collection GET, in
// collection order, with ignored members filtered out (spec.md §4.5.2).
func (s *Server) serveIndex(ctx context.Context, w http.ResponseWriter, req *Request) error {
	names, err := s.Backend.Readdir(ctx, req.Segs)
	if err != nil {
		return mapBackendErr(err)
	}
	filtered := make([]string, 0, len(names))
	for _, n := range names {
		child := append(clonePathSegs(req.Segs), n)
		if s.ignore().Matches(child) {
			continue
		}
		filtered = append(filtered, n)
	}
	ordered, err := s.State.ApplyOrder(ctx, req.Path, filtered)
	if err != nil {
		return mapBackendErr(err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<body>\n<ul>\n")
	for _, n := range ordered {
		childSegs := append(clonePathSegs(req.Segs), n)
		href := pathkey.URLEncode(n)
		if info, err := s.Backend.Stat(ctx, childSegs); err == nil && info.Type == backend.Dir {
			href += "/"
		}
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", href, xmlscan.Escape(n))
	}
	b.WriteString("</ul>\n</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write([]byte(b.String()))
	return err
}
