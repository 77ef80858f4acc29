package xmlscan

import (
	"strings"
	"testing"
)

func TestRenderMultiStatus(t *testing.T) {
	ms := &MultiStatus{}
	ms.Add(ResponseEntry{
		Href: "/a.txt",
		PropStats: []PropStatGroup{
			{Status: 200, Props: []RawProp{{Name: "D:getcontentlength", Value: "5"}}},
			{Status: 404, Props: []RawProp{{Name: "D:displayname"}}},
		},
	})
	out := string(ms.Render())
	if !strings.Contains(out, "<D:multistatus") {
		t.Fatal("missing multistatus root")
	}
	if !strings.Contains(out, "<D:href>/a.txt</D:href>") {
		t.Error("missing href")
	}
	if !strings.Contains(out, "HTTP/1.1 200 OK") || !strings.Contains(out, "HTTP/1.1 404 Not Found") {
		t.Error("missing status lines")
	}
	if !strings.Contains(out, "<D:getcontentlength>5</D:getcontentlength>") {
		t.Error("missing prop value")
	}
	if !strings.Contains(out, "<D:displayname/>") {
		t.Error("missing empty prop")
	}
}

func TestEscape(t *testing.T) {
	if got := Escape(`a & b < "c" >`); got != `a &amp; b &lt; &quot;c&quot; &gt;` {
		t.Errorf("Escape = %q", got)
	}
}

func TestQuotedETag(t *testing.T) {
	if got := QuotedETag(42, 1000); got != `W/"42-1000"` {
		t.Errorf("QuotedETag = %q", got)
	}
}

func TestLockDiscoveryXML(t *testing.T) {
	out := LockDiscoveryXML("urn:uuid:abc", "me", "exclusive", "0", 60)
	if !strings.Contains(out, "urn:uuid:abc") || !strings.Contains(out, "Second-60") {
		t.Errorf("LockDiscoveryXML = %q", out)
	}
}
