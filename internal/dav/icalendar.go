package dav

import (
	"regexp"
	"strings"

	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

// VEvent is one parsed VEVENT/VTODO block (spec.md §4.11). Start/End stay
// as the original "YYYYMMDD[ThhmmssZ]" strings so time comparison can
// remain lexicographic rather than a full calendar-arithmetic parse.
type VEvent struct {
	Kind  string // "VEVENT" or "VTODO"
	UID   string
	Start string
	End   string
	Props map[string]ICalProp
}

// ICalProp is one iCalendar content line's value plus its `NAME=value`
// parameters.
type ICalProp struct {
	Value  string
	Params map[string]string
}

var veventBlockRe = regexp.MustCompile(`(?s)BEGIN:VEVENT\r?\n(.*?)END:VEVENT`)
var vtodoBlockRe = regexp.MustCompile(`(?s)BEGIN:VTODO\r?\n(.*?)END:VTODO`)

// ParseICalendar line-scans an iCalendar blob for VEVENT/VTODO blocks.
// Unknown or malformed lines are ignored.
func ParseICalendar(data []byte) []VEvent {
	s := string(data)
	var out []VEvent
	for _, m := range veventBlockRe.FindAllStringSubmatch(s, -1) {
		out = append(out, parseICalBlock("VEVENT", m[1]))
	}
	for _, m := range vtodoBlockRe.FindAllStringSubmatch(s, -1) {
		out = append(out, parseICalBlock("VTODO", m[1]))
	}
	return out
}

func parseICalBlock(kind, body string) VEvent {
	props := map[string]ICalProp{}
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		head, val := line[:idx], line[idx+1:]
		segs := strings.Split(head, ";")
		name := strings.ToUpper(segs[0])
		params := map[string]string{}
		for _, seg := range segs[1:] {
			kv := strings.SplitN(seg, "=", 2)
			if len(kv) == 2 {
				params[strings.ToUpper(kv[0])] = kv[1]
			}
		}
		props[name] = ICalProp{Value: val, Params: params}
	}

	ev := VEvent{Kind: kind, Props: props}
	if p, ok := props["UID"]; ok {
		ev.UID = p.Value
	}
	if p, ok := props["DTSTART"]; ok {
		ev.Start = p.Value
	}
	if kind == "VEVENT" {
		if p, ok := props["DTEND"]; ok {
			ev.End = p.Value
		}
	} else {
		if p, ok := props["DUE"]; ok {
			ev.End = p.Value
		} else if p, ok := props["DTEND"]; ok {
			ev.End = p.Value
		}
	}
	return ev
}

// overlaps implements spec.md §4.11's overlap rule: eventEnd > windowStart
// and eventStart < windowEnd, with missing bounds on either side treated
// as open-ended.
func overlaps(evStart, evEnd, winStart, winEnd string) bool {
	if winStart != "" && evEnd != "" && !(evEnd > winStart) {
		return false
	}
	if winEnd != "" && evStart != "" && !(evStart < winEnd) {
		return false
	}
	return true
}

// textMatches implements the two CalDAV collations (spec.md §4.11):
// `i;ascii-casemap` (default) lowercases both sides, `i;octet` compares
// byte-identically. Both are substring ("contains") matches.
func textMatches(value string, tm xmlscan.TextMatch) bool {
	var match bool
	if tm.Collation == "i;octet" {
		match = strings.Contains(value, tm.Text)
	} else {
		match = strings.Contains(strings.ToLower(value), strings.ToLower(tm.Text))
	}
	if tm.NegateCondition {
		match = !match
	}
	return match
}

// matchCalendarQuery reports whether a parsed calendar object's events
// satisfy a calendar-query filter tree (spec.md §4.11, §9 Open Question:
// a query without a VCALENDAR wrapper applies its single component filter
// directly and, with no filter at all, matches everything leniently).
func matchCalendarQuery(events []VEvent, q xmlscan.CalendarQuery) bool {
	root := q.Root
	if strings.EqualFold(root.Name, "VCALENDAR") {
		if len(root.CompFilters) == 0 {
			return true
		}
		for _, cf := range root.CompFilters {
			if matchComponentFilter(events, cf) {
				return true
			}
		}
		return false
	}
	return matchComponentFilter(events, root)
}

func matchComponentFilter(events []VEvent, cf xmlscan.CompFilter) bool {
	if cf.IsNotDefined {
		for _, ev := range events {
			if strings.EqualFold(ev.Kind, cf.Name) {
				return false
			}
		}
		return true
	}
	for _, ev := range events {
		if cf.Name != "" && !strings.EqualFold(ev.Kind, cf.Name) {
			continue
		}
		if cf.TimeRange != nil && !overlaps(ev.Start, ev.End, cf.TimeRange.Start, cf.TimeRange.End) {
			continue
		}
		if !matchPropFilters(ev, cf.PropFilters) {
			continue
		}
		return true
	}
	return false
}

func matchPropFilters(ev VEvent, filters []xmlscan.PropFilter) bool {
	for _, pf := range filters {
		entry, present := ev.Props[strings.ToUpper(pf.Name)]
		if pf.IsNotDefined {
			if present {
				return false
			}
			continue
		}
		if !present {
			return false
		}
		if pf.TimeRange != nil && !overlaps(entry.Value, "", pf.TimeRange.Start, pf.TimeRange.End) {
			return false
		}
		if pf.TextMatch != nil && !textMatches(entry.Value, *pf.TextMatch) {
			return false
		}
		if !matchParamFilters(entry, pf.ParamFilters) {
			return false
		}
	}
	return true
}

func matchParamFilters(entry ICalProp, filters []xmlscan.ParamFilter) bool {
	for _, paf := range filters {
		val, present := entry.Params[strings.ToUpper(paf.Name)]
		if paf.IsNotDefined {
			if present {
				return false
			}
			continue
		}
		if !present {
			return false
		}
		if paf.TextMatch != nil && !textMatches(val, *paf.TextMatch) {
			return false
		}
	}
	return true
}
