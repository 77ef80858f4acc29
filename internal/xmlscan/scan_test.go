package xmlscan

import "testing"

func TestChildrenSelfClosingAndPaired(t *testing.T) {
	s := `<D:getcontentlength/><D:displayname>room</D:displayname>`
	kids := Children(s)
	if len(kids) != 2 {
		t.Fatalf("Children = %v, want 2", kids)
	}
	if kids[0].Name != "D:getcontentlength" || kids[0].Inner != "" {
		t.Errorf("kids[0] = %+v", kids[0])
	}
	if kids[1].Name != "D:displayname" || kids[1].Inner != "room" {
		t.Errorf("kids[1] = %+v", kids[1])
	}
}

func TestFindNested(t *testing.T) {
	s := `<D:propfind xmlns:D="DAV:"><D:prop><D:resourcetype/></D:prop></D:propfind>`
	prop, ok := Find(s, "prop")
	if !ok {
		t.Fatal("expected to find prop")
	}
	if kids := Children(prop.Inner); len(kids) != 1 || kids[0].Name != "D:resourcetype" {
		t.Errorf("prop children = %v", kids)
	}
}

func TestFindDoesNotMatchPrefixOfLongerTag(t *testing.T) {
	s := `<D:propstat><D:status>200</D:status></D:propstat>`
	if _, ok := Find(s, "prop"); ok {
		t.Error("Find(\"prop\") should not match propstat")
	}
}

func TestAttr(t *testing.T) {
	attrs := ` name="VEVENT" xmlns:x="urn:x"`
	v, ok := Attr(attrs, "name")
	if !ok || v != "VEVENT" {
		t.Errorf("Attr(name) = %q, %v", v, ok)
	}
	if _, ok := Attr(attrs, "missing"); ok {
		t.Error("Attr(missing) should not be found")
	}
}

func TestParsePropFindModes(t *testing.T) {
	if r := ParsePropFind(nil); !r.AllProp {
		t.Error("empty body should be allprop")
	}
	if r := ParsePropFind([]byte(`<D:propfind xmlns:D="DAV:"><D:propname/></D:propfind>`)); !r.PropName {
		t.Error("propname element should set PropName")
	}
	body := []byte(`<D:propfind xmlns:D="DAV:"><D:prop><D:getetag/><D:displayname/></D:prop></D:propfind>`)
	r := ParsePropFind(body)
	if r.AllProp || r.PropName {
		t.Fatalf("unexpected mode: %+v", r)
	}
	if len(r.Names) != 2 || r.Names[0] != "D:getetag" || r.Names[1] != "D:displayname" {
		t.Errorf("Names = %v", r.Names)
	}
}

func TestParsePropPatch(t *testing.T) {
	body := []byte(`<D:propertyupdate xmlns:D="DAV:">
		<D:set><D:prop><D:displayname>New</D:displayname></D:prop></D:set>
		<D:remove><D:prop><D:getcontentlanguage/></D:prop></D:remove>
	</D:propertyupdate>`)
	ops := ParsePropPatch(body)
	if len(ops) != 2 {
		t.Fatalf("ops = %v", ops)
	}
	if ops[0].Name != "D:displayname" || ops[0].Value != "New" || ops[0].Remove {
		t.Errorf("ops[0] = %+v", ops[0])
	}
	if ops[1].Name != "D:getcontentlanguage" || !ops[1].Remove {
		t.Errorf("ops[1] = %+v", ops[1])
	}
}

func TestParseMkcolProps(t *testing.T) {
	body := []byte(`<D:mkcol xmlns:D="DAV:"><D:set><D:prop><D:resourcetype><D:collection/></D:resourcetype></D:prop></D:set></D:mkcol>`)
	ops := ParseMkcolProps(body)
	if len(ops) != 1 || ops[0].Name != "D:resourcetype" {
		t.Fatalf("ops = %v", ops)
	}
	if ParseMkcolProps([]byte(`<D:propfind xmlns:D="DAV:"/>`)) != nil {
		t.Error("non-mkcol body should return nil")
	}
}

func TestParseOrderPatch(t *testing.T) {
	body := []byte(`<D:orderpatch xmlns:D="DAV:">
		<D:ordering-type><D:custom/></D:ordering-type>
		<D:order-member><D:segment>b.txt</D:segment></D:order-member>
		<D:order-member><D:segment>a.txt</D:segment></D:order-member>
	</D:orderpatch>`)
	names := ParseOrderPatch(body)
	if len(names) != 2 || names[0] != "b.txt" || names[1] != "a.txt" {
		t.Fatalf("names = %v", names)
	}
}

func TestParseReportKind(t *testing.T) {
	cases := map[string]ReportKind{
		`<D:version-tree xmlns:D="DAV:"/>`:                    ReportVersionTree,
		`<D:version-history xmlns:D="DAV:"/>`:                 ReportVersionHistory,
		`<C:calendar-query xmlns:C="urn:ietf:params:xml:ns:caldav"/>`:    ReportCalendarQuery,
		`<C:calendar-multiget xmlns:C="urn:ietf:params:xml:ns:caldav"/>`: ReportCalendarMultiget,
		`<C:free-busy-query xmlns:C="urn:ietf:params:xml:ns:caldav"/>`:   ReportFreeBusyQuery,
		`<C:unknown-report xmlns:C="urn:x"/>`:                 ReportUnknown,
	}
	for body, want := range cases {
		if got := ParseReportKind([]byte(body)); got != want {
			t.Errorf("ParseReportKind(%q) = %v, want %v", body, got, want)
		}
	}
}

func TestParseCalendarMultiget(t *testing.T) {
	body := []byte(`<C:calendar-multiget xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:D="DAV:">
		<D:href>/cal/a.ics</D:href>
		<D:href>/cal/b.ics</D:href>
	</C:calendar-multiget>`)
	hrefs := ParseCalendarMultiget(body)
	if len(hrefs) != 2 || hrefs[0] != "/cal/a.ics" || hrefs[1] != "/cal/b.ics" {
		t.Fatalf("hrefs = %v", hrefs)
	}
}

func TestParseFreeBusyQuery(t *testing.T) {
	body := []byte(`<C:free-busy-query xmlns:C="urn:ietf:params:xml:ns:caldav">
		<C:time-range start="20260101T000000Z" end="20260201T000000Z"/>
	</C:free-busy-query>`)
	start, end, ok := ParseFreeBusyQuery(body)
	if !ok || start != "20260101T000000Z" || end != "20260201T000000Z" {
		t.Fatalf("start=%q end=%q ok=%v", start, end, ok)
	}
}

func TestParseCalendarQuery(t *testing.T) {
	body := []byte(`<C:calendar-query xmlns:C="urn:ietf:params:xml:ns:caldav">
		<C:filter>
			<C:comp-filter name="VCALENDAR">
				<C:comp-filter name="VEVENT">
					<C:time-range start="20260101T000000Z" end="20260201T000000Z"/>
					<C:prop-filter name="SUMMARY">
						<C:text-match collation="i;ascii-casemap" negate-condition="yes">Standup</C:text-match>
					</C:prop-filter>
				</C:comp-filter>
			</C:comp-filter>
		</C:filter>
	</C:calendar-query>`)
	cq, ok := ParseCalendarQuery(body)
	if !ok {
		t.Fatal("expected filter to parse")
	}
	if cq.Root.Name != "VCALENDAR" {
		t.Fatalf("root comp-filter = %+v", cq.Root)
	}
	if len(cq.Root.CompFilters) != 1 || cq.Root.CompFilters[0].Name != "VEVENT" {
		t.Fatalf("nested comp-filter = %+v", cq.Root.CompFilters)
	}
	vevent := cq.Root.CompFilters[0]
	if vevent.TimeRange == nil || vevent.TimeRange.Start != "20260101T000000Z" {
		t.Fatalf("time-range = %+v", vevent.TimeRange)
	}
	if len(vevent.PropFilters) != 1 || vevent.PropFilters[0].Name != "SUMMARY" {
		t.Fatalf("prop-filters = %+v", vevent.PropFilters)
	}
	tm := vevent.PropFilters[0].TextMatch
	if tm == nil || tm.Text != "Standup" || tm.Collation != "i;ascii-casemap" || !tm.NegateCondition {
		t.Fatalf("text-match = %+v", tm)
	}
}

func TestParseCalendarQueryIsNotDefined(t *testing.T) {
	body := []byte(`<C:calendar-query xmlns:C="urn:ietf:params:xml:ns:caldav">
		<C:filter>
			<C:comp-filter name="VCALENDAR">
				<C:comp-filter name="VTODO"><C:is-not-defined/></C:comp-filter>
			</C:comp-filter>
		</C:filter>
	</C:calendar-query>`)
	cq, ok := ParseCalendarQuery(body)
	if !ok || len(cq.Root.CompFilters) != 1 || !cq.Root.CompFilters[0].IsNotDefined {
		t.Fatalf("cq = %+v ok=%v", cq, ok)
	}
}
