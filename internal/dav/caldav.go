package dav

import (
	"context"
	"net/http"
	"strings"

	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

// calDAVNamespace is the XML namespace URI bound to the "C:" prefix
// throughout this subsystem (RFC 4791 §5.2).
const calDAVNamespace = "urn:ietf:params:xml:ns:caldav"

// calendarMarkerProp is the dead-property this engine uses to remember
// that a collection was created via MKCALENDAR (resourcetype is a computed
// live property, so the marker has to live somewhere). It is stored like
// any other dead property, so PROPFIND propname and prop-mode requests
// report it too.
const calendarMarkerProp = "Z:calendar"

// CalDAV enables the calendar-access extension (spec.md §4.11, §9). A nil
// *Server.CalDAV disables the subsystem entirely: no MKCALENDAR, no
// calendar-access class, no calendar-query/-multiget/free-busy-query
// dispatch from REPORT.
type CalDAV struct{}

// NewCalDAV constructs the (currently stateless) CalDAV subsystem.
func NewCalDAV() *CalDAV { return &CalDAV{} }

func defaultCalendarProps() map[string]string {
	return map[string]string{
		calendarMarkerProp:                   "true",
		"C:supported-calendar-component-set": `<C:comp name="VEVENT"/><C:comp name="VTODO"/>`,
		"C:supported-calendar-data":           `<C:calendar-data content-type="text/calendar" version="2.0"/>`,
		"C:max-resource-size":                 "10485760",
		"C:min-date-time":                     "19700101T000000Z",
		"C:max-date-time":                     "20500101T000000Z",
		"C:max-instances":                     "1000",
		"C:max-attendees-per-instance":        "100",
		"C:calendar-timezone":                 "UTC",
	}
}

func (s *Server) isCalendarCollection(ctx context.Context, urlPath string) (bool, error) {
	props, err := s.State.GetProps(ctx, urlPath)
	if err != nil {
		return false, err
	}
	return props[calendarMarkerProp] == "true", nil
}

// checkCalendarPut is CalDAV's beforePut hook (spec.md §4.11): under a
// calendar collection, only ".ics" members are accepted.
func (c *CalDAV) checkCalendarPut(ctx context.Context, s *Server, segs []string) error {
	parent := pathkey.CanonicalPath(pathkey.Parent(segs))
	isCal, err := s.isCalendarCollection(ctx, parent)
	if err != nil {
		return err
	}
	if !isCal {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(pathkey.Name(segs)), ".ics") {
		return ErrUnsupportedType
	}
	return nil
}

func requestedName(mode xmlscan.PropFindRequest, name string) bool {
	if mode.PropName || mode.AllProp {
		return false
	}
	for _, n := range mode.Names {
		if n == name {
			return true
		}
	}
	return false
}

func appendOKProp(groups []xmlscan.PropStatGroup, p xmlscan.RawProp) []xmlscan.PropStatGroup {
	for i := range groups {
		if groups[i].Status == http.StatusOK {
			groups[i].Props = append(groups[i].Props, p)
			return groups
		}
	}
	return append(groups, xmlscan.PropStatGroup{Status: http.StatusOK, Props: []xmlscan.RawProp{p}})
}

// afterPropfindEntity is CalDAV's afterPropfind hook (spec.md §4.11):
// calendar collections get `<C:calendar/>` folded into their resourcetype,
// and the root gets `C:calendar-home-set` synthesized when requested.
// `supported-calendar-component-set`/`supported-calendar-data` need no
// extra work here: MKCALENDAR already persisted them as ordinary dead
// properties, so prop-mode PROPFIND resolves them through the normal
// dead-property path.
func (c *CalDAV) afterPropfindEntity(ctx context.Context, s *Server, e entityView, mode xmlscan.PropFindRequest, groups []xmlscan.PropStatGroup) ([]xmlscan.PropStatGroup, error) {
	isCal, err := s.isCalendarCollection(ctx, e.path)
	if err != nil {
		return groups, err
	}
	if isCal {
		for gi := range groups {
			if groups[gi].Status != http.StatusOK {
				continue
			}
			for pi := range groups[gi].Props {
				if groups[gi].Props[pi].Name == "D:resourcetype" {
					groups[gi].Props[pi].Value += "<C:calendar/>"
					groups[gi].Props[pi].Raw = true
				}
			}
		}
	}
	if e.path == "/" && requestedName(mode, "C:calendar-home-set") {
		groups = appendOKProp(groups, xmlscan.RawProp{Name: "C:calendar-home-set", Value: "<D:href>/</D:href>", Raw: true})
	}
	return groups, nil
}
