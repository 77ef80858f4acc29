package dav

import (
	"net/http"
	"strings"
	"testing"
)

func newCalDAVTestServer() *Server {
	s := newTestServer()
	s.CalDAV = NewCalDAV()
	return s
}

// S5: MKCALENDAR creates a calendar collection that rejects non-.ics PUTs
// and whose members are found by a calendar-query REPORT filtered by
// time range.
func TestSeedCalendarQueryByTimeRange(t *testing.T) {
	s := newCalDAVTestServer()

	w := doReq(s, "MKCALENDAR", "/cal", nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("MKCALENDAR: got %d, want 201: %s", w.Code, w.Body.String())
	}

	w = doReq(s, http.MethodPut, "/cal/note.txt", []byte("not calendar data"), nil)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("PUT non-.ics into calendar collection: got %d, want 415", w.Code)
	}

	w = doReq(s, http.MethodPut, "/cal/event1.ics", []byte(sampleICS), map[string]string{"Content-Type": "text/calendar"})
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT .ics into calendar collection: got %d, want 201: %s", w.Code, w.Body.String())
	}

	query := []byte(`<?xml version="1.0"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><C:calendar-data/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20260801T000000Z" end="20260802T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`)
	w = doReq(s, "REPORT", "/cal", query, map[string]string{"Depth": "1"})
	if w.Code != StatusMulti {
		t.Fatalf("calendar-query REPORT: got %d, want 207: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "event1.ics") {
		t.Fatalf("calendar-query REPORT missing matching event: %s", w.Body.String())
	}

	outOfRangeQuery := []byte(`<?xml version="1.0"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><C:calendar-data/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20270101T000000Z" end="20270102T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`)
	w = doReq(s, "REPORT", "/cal", outOfRangeQuery, map[string]string{"Depth": "1"})
	if strings.Contains(w.Body.String(), "event1.ics") {
		t.Fatalf("calendar-query REPORT should not match a disjoint time range: %s", w.Body.String())
	}
}

func TestPropfindResourcetypeIncludesCalendarForCalendarCollections(t *testing.T) {
	s := newCalDAVTestServer()
	doReq(s, "MKCALENDAR", "/cal", nil, nil)

	body := []byte(`<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:prop><D:resourcetype/></D:prop></D:propfind>`)
	w := doReq(s, "PROPFIND", "/cal", body, map[string]string{"Depth": "0"})
	if w.Code != StatusMulti {
		t.Fatalf("PROPFIND: got %d, want 207: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "C:calendar") {
		t.Fatalf("resourcetype missing C:calendar marker: %s", w.Body.String())
	}
}

func TestMkcolWithoutCalDAVRejectsMkcalendar(t *testing.T) {
	s := newTestServer()
	w := doReq(s, "MKCALENDAR", "/cal", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("MKCALENDAR with CalDAV disabled: got %d, want 405", w.Code)
	}
}
