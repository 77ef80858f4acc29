package xmlscan

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// Escape escapes XML-significant characters in character data.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RawProp is a single named property value for a multistatus response. Name
// must already carry the namespace prefix/declaration expected by the
// client (e.g. `D:getcontentlength`); Raw, when true, means Value is
// emitted verbatim (already-XML-encoded child content) rather than escaped.
type RawProp struct {
	Name  string
	Value string
	Raw   bool
}

// PropStatGroup groups properties that share an HTTP status within one
// response element (RFC 4918 §14.22): "200 OK" properties in one group,
// "404 Not Found" properties in another, etc.
type PropStatGroup struct {
	Status int
	Props  []RawProp
}

// ResponseEntry is one <D:response> element of a multistatus body.
type ResponseEntry struct {
	Href      string
	Status    int // used instead of PropStats for whole-resource statuses (e.g. 424)
	PropStats []PropStatGroup
}

// MultiStatus accumulates ResponseEntry values and renders the RFC
// 4918 §13 multistatus document, assembled with pooled byte buffers
// instead of a generic XML encoder (spec.md's non-goal excludes a full
// XML DOM on the response side too).
type MultiStatus struct {
	Entries      []ResponseEntry
	ExtraXMLNS   map[string]string // prefix -> namespace URI, besides D
}

func (m *MultiStatus) Add(e ResponseEntry) {
	m.Entries = append(m.Entries, e)
}

func statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

// Render writes the complete multistatus XML document.
func (m *MultiStatus) Render() []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<D:multistatus xmlns:D="DAV:"`)
	for prefix, uri := range m.ExtraXMLNS {
		buf.WriteString(fmt.Sprintf(` xmlns:%s=%q`, prefix, uri))
	}
	buf.WriteString(">\n")

	for _, e := range m.Entries {
		buf.WriteString("  <D:response>\n")
		buf.WriteString("    <D:href>" + Escape(e.Href) + "</D:href>\n")
		if e.Status != 0 {
			buf.WriteString("    <D:status>" + statusLine(e.Status) + "</D:status>\n")
		}
		for _, ps := range e.PropStats {
			buf.WriteString("    <D:propstat>\n")
			buf.WriteString("      <D:prop>\n")
			for _, p := range ps.Props {
				writeProp(buf, p)
			}
			buf.WriteString("      </D:prop>\n")
			buf.WriteString("      <D:status>" + statusLine(ps.Status) + "</D:status>\n")
			buf.WriteString("    </D:propstat>\n")
		}
		buf.WriteString("  </D:response>\n")
	}
	buf.WriteString("</D:multistatus>\n")

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}

func writeProp(buf *bytebufferpool.ByteBuffer, p RawProp) {
	if p.Value == "" && !p.Raw {
		buf.WriteString("        <" + p.Name + "/>\n")
		return
	}
	buf.WriteString("        <" + p.Name + ">")
	if p.Raw {
		buf.WriteString(p.Value)
	} else {
		buf.WriteString(Escape(p.Value))
	}
	buf.WriteString("</" + p.Name + ">\n")
}

// QuotedETag formats a weak entity tag value per spec §4.2.
func QuotedETag(size int64, mtimeUnixNano int64) string {
	return `W/"` + strconv.FormatInt(size, 10) + "-" + strconv.FormatInt(mtimeUnixNano, 10) + `"`
}

// LockDiscoveryXML renders the lockdiscovery/activelock property body for
// a single exclusive write lock, ready to embed as a RawProp's raw value.
func LockDiscoveryXML(token, owner, scope, depth string, timeoutSeconds int64) string {
	timeout := "Infinite"
	if timeoutSeconds > 0 {
		timeout = "Second-" + strconv.FormatInt(timeoutSeconds, 10)
	}
	var b strings.Builder
	b.WriteString("<D:activelock>")
	b.WriteString("<D:locktype><D:write/></D:locktype>")
	b.WriteString("<D:lockscope><D:" + scope + "/></D:lockscope>")
	b.WriteString("<D:depth>" + depth + "</D:depth>")
	if owner != "" {
		b.WriteString("<D:owner>" + Escape(owner) + "</D:owner>")
	}
	b.WriteString("<D:timeout>" + timeout + "</D:timeout>")
	b.WriteString("<D:locktoken><D:href>" + Escape(token) + "</D:href></D:locktoken>")
	b.WriteString("</D:activelock>")
	return b.String()
}
