package dav

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/davstate"
)

func newTestServer() *Server {
	b := backend.NewMemory()
	return &Server{
		Backend: b,
		State:   davstate.New(b),
	}
}

func doReq(s *Server, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

// S1: a PUT followed by a GET returns the same body and a stable weak ETag.
func TestSeedBasicPutGetETag(t *testing.T) {
	s := newTestServer()

	w := doReq(s, http.MethodPut, "/hello.txt", []byte("hi there"), map[string]string{"Content-Type": "text/plain"})
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT: got %d, want 201: %s", w.Code, w.Body.String())
	}

	w = doReq(s, http.MethodGet, "/hello.txt", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET: got %d, want 200", w.Code)
	}
	if w.Body.String() != "hi there" {
		t.Fatalf("GET body = %q, want %q", w.Body.String(), "hi there")
	}
	etag1 := w.Header().Get("ETag")
	if etag1 == "" || !strings.HasPrefix(etag1, `W/"`) {
		t.Fatalf("ETag = %q, want weak ETag", etag1)
	}

	w2 := doReq(s, http.MethodGet, "/hello.txt", nil, nil)
	if w2.Header().Get("ETag") != etag1 {
		t.Fatalf("ETag not stable across GETs: %q vs %q", etag1, w2.Header().Get("ETag"))
	}
}

// S2: a locked resource rejects PUT without the token and accepts it with one.
func TestSeedLockedPutRequiresToken(t *testing.T) {
	s := newTestServer()
	doReq(s, http.MethodPut, "/doc.txt", []byte("v1"), nil)

	w := doReq(s, "LOCK", "/doc.txt", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("LOCK: got %d, want 200: %s", w.Code, w.Body.String())
	}
	lockToken := w.Header().Get("Lock-Token")
	if lockToken == "" {
		t.Fatalf("LOCK did not return a Lock-Token header")
	}

	w = doReq(s, http.MethodPut, "/doc.txt", []byte("v2-no-token"), nil)
	if w.Code != StatusLocked {
		t.Fatalf("PUT without token: got %d, want %d", w.Code, StatusLocked)
	}

	w = doReq(s, http.MethodPut, "/doc.txt", []byte("v2-with-token"), map[string]string{
		"If": "(" + lockToken + ")",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT with token: got %d, want 201: %s", w.Code, w.Body.String())
	}
}

// S3: MOVE of a directory with no Depth header at all is rejected (for a
// strict dialect) — an omitted header must not be treated as satisfying
// the literal "Depth: infinity" requirement.
func TestSeedDirMoveRequiresDepthInfinity(t *testing.T) {
	s := newTestServer()
	s.Dialects = []DialectPolicy{DialectStrict}
	doReq(s, "MKCOL", "/dir", nil, nil)
	doReq(s, http.MethodPut, "/dir/a.txt", []byte("a"), nil)

	w := doReq(s, "MOVE", "/dir", nil, map[string]string{
		"Destination": "http://example.com/dir2",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("MOVE dir with no Depth header: got %d, want 400", w.Code)
	}

	w = doReq(s, "MOVE", "/dir", nil, map[string]string{
		"Destination": "http://example.com/dir2",
		"Depth":       "0",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("MOVE dir with Depth:0: got %d, want 400", w.Code)
	}

	w = doReq(s, "MOVE", "/dir", nil, map[string]string{
		"Destination": "http://example.com/dir2",
		"Depth":       "infinity",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("MOVE dir with Depth:infinity: got %d, want 201: %s", w.Code, w.Body.String())
	}
}

// S4: PROPFIND in prop mode for an unknown property returns a 404 propstat group.
func TestSeedPropfindUnknownPropertyIs404(t *testing.T) {
	s := newTestServer()
	doReq(s, http.MethodPut, "/f.txt", []byte("x"), nil)

	body := []byte(`<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:prop><D:nosuchprop/></D:prop></D:propfind>`)
	w := doReq(s, "PROPFIND", "/f.txt", body, map[string]string{"Depth": "0"})
	if w.Code != StatusMulti {
		t.Fatalf("PROPFIND: got %d, want 207: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "404") && !strings.Contains(w.Body.String(), "Not Found") {
		t.Fatalf("PROPFIND response missing 404 propstat: %s", w.Body.String())
	}
}

// PROPFIND with no Depth header defaults to Depth:1 (spec.md §4.5.9), not
// a full-subtree traversal.
func TestPropfindWithNoDepthHeaderDefaultsToOne(t *testing.T) {
	s := newTestServer()
	doReq(s, "MKCOL", "/dir", nil, nil)
	doReq(s, http.MethodPut, "/dir/child.txt", []byte("x"), nil)
	doReq(s, "MKCOL", "/dir/sub", nil, nil)
	doReq(s, http.MethodPut, "/dir/sub/grandchild.txt", []byte("y"), nil)

	w := doReq(s, "PROPFIND", "/dir", nil, nil)
	if w.Code != StatusMulti {
		t.Fatalf("PROPFIND: got %d, want 207: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "child.txt") {
		t.Fatalf("default-depth PROPFIND should include immediate children: %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "grandchild.txt") {
		t.Fatalf("default-depth PROPFIND should not descend past immediate children: %s", w.Body.String())
	}
}

// S6: exceeding the configured quota on PUT fails with 507.
func TestSeedQuotaExceededIs507(t *testing.T) {
	s := newTestServer()
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if err := s.State.MergeProps(ctx, "/", map[string]string{"Z:quota-limit-bytes": "4"}); err != nil {
		t.Fatalf("MergeProps: %s", err)
	}

	w := doReq(s, http.MethodPut, "/big.txt", []byte("way too big for the quota"), nil)
	if w.Code != StatusInsufficientStorage {
		t.Fatalf("PUT over quota: got %d, want %d: %s", w.Code, StatusInsufficientStorage, w.Body.String())
	}

	w = doReq(s, http.MethodPut, "/ok.txt", []byte("ok"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT within quota: got %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestMkcolThenDeleteCollection(t *testing.T) {
	s := newTestServer()
	w := doReq(s, "MKCOL", "/col", nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("MKCOL: got %d, want 201", w.Code)
	}
	w = doReq(s, "MKCOL", "/col", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("MKCOL over existing: got %d, want 405", w.Code)
	}
	w = doReq(s, http.MethodDelete, "/col", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE: got %d, want 204", w.Code)
	}
}

func TestCopyPreservesSource(t *testing.T) {
	s := newTestServer()
	doReq(s, http.MethodPut, "/src.txt", []byte("payload"), nil)
	w := doReq(s, "COPY", "/src.txt", nil, map[string]string{"Destination": "http://example.com/dst.txt"})
	if w.Code != http.StatusCreated {
		t.Fatalf("COPY: got %d, want 201: %s", w.Code, w.Body.String())
	}
	w = doReq(s, http.MethodGet, "/src.txt", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != "payload" {
		t.Fatalf("source missing after COPY: %d %q", w.Code, w.Body.String())
	}
	w = doReq(s, http.MethodGet, "/dst.txt", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != "payload" {
		t.Fatalf("dest missing after COPY: %d %q", w.Code, w.Body.String())
	}
}

func TestUnlockRequiresMatchingToken(t *testing.T) {
	s := newTestServer()
	doReq(s, http.MethodPut, "/doc.txt", []byte("v1"), nil)
	w := doReq(s, "LOCK", "/doc.txt", nil, nil)
	token := w.Header().Get("Lock-Token")

	w = doReq(s, "UNLOCK", "/doc.txt", nil, map[string]string{"Lock-Token": "<wrong-token>"})
	if w.Code != http.StatusConflict {
		t.Fatalf("UNLOCK wrong token: got %d, want 409", w.Code)
	}

	w = doReq(s, "UNLOCK", "/doc.txt", nil, map[string]string{"Lock-Token": token})
	if w.Code != http.StatusNoContent {
		t.Fatalf("UNLOCK correct token: got %d, want 204", w.Code)
	}
}

func TestOptionsAdvertisesCalDAVOnlyWhenEnabled(t *testing.T) {
	s := newTestServer()
	w := doReq(s, http.MethodOptions, "/", nil, nil)
	if strings.Contains(w.Header().Get("DAV"), "calendar-access") {
		t.Fatalf("DAV header should not advertise calendar-access without CalDAV enabled")
	}
	if strings.Contains(w.Header().Get("Allow"), "MKCALENDAR") {
		t.Fatalf("Allow header should not list MKCALENDAR without CalDAV enabled")
	}

	s.CalDAV = NewCalDAV()
	w = doReq(s, http.MethodOptions, "/", nil, nil)
	if !strings.Contains(w.Header().Get("DAV"), "calendar-access") {
		t.Fatalf("DAV header should advertise calendar-access once CalDAV is enabled")
	}
	if !strings.Contains(w.Header().Get("Allow"), "MKCALENDAR") {
		t.Fatalf("Allow header should list MKCALENDAR once CalDAV is enabled")
	}
}

func TestIgnoredPathsAre404(t *testing.T) {
	s := newTestServer()
	w := doReq(s, http.MethodGet, "/"+davstate.SidecarRoot+"/whatever", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("sidecar path access: got %d, want 404", w.Code)
	}
}
