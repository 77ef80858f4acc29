package pathkey

import "testing"

func TestInTree(t *testing.T) {
	if !InTree("/", "/") {
		t.Error("/ should contain /")
	}
	if !InTree("/foo", "/") {
		t.Error("/ should contain /foo")
	}
	if !InTree("/foo/bar", "/") {
		t.Error("/ should contain /foo/bar")
	}
	if InTree("/foo/zoo", "/foo/bar") {
		t.Error("/foo/bar should not contain /foo/zoo")
	}
	if InTree("/foozy", "/doozy") {
		t.Error("/doozy should not contain /foozy")
	}
}

func TestIncluded(t *testing.T) {
	if _, ok := Included("/", "/", 0); !ok {
		t.Error("/ should include / with depth 0")
	}
	if _, ok := Included("/foo", "/", 0); ok {
		t.Error("/ should not include /foo with depth 0")
	}
	if _, ok := Included("/foo", "/", 1); !ok {
		t.Error("/ should include /foo with depth 1")
	}
	if _, ok := Included("/foo/bar", "/", 1); ok {
		t.Error("/ should not include /foo/bar with depth 1")
	}
	if _, ok := Included("/foo/bar/baz", "/foo", -1); !ok {
		t.Error("infinity depth should include arbitrarily deep children")
	}
}

func TestSplitJoin(t *testing.T) {
	cases := []struct {
		in   string
		segs []string
	}{
		{"/", []string{}},
		{"", []string{}},
		{"/a/b/c", []string{"a", "b", "c"}},
		{"/a//b/", []string{"a", "b"}},
	}
	for _, c := range cases {
		got := Split(c.in)
		if len(got) != len(c.segs) {
			t.Fatalf("Split(%q) = %v, want %v", c.in, got, c.segs)
		}
		for i := range got {
			if got[i] != c.segs[i] {
				t.Fatalf("Split(%q) = %v, want %v", c.in, got, c.segs)
			}
		}
	}
	if Join(nil, false) != "/" {
		t.Error("Join(nil) should be root")
	}
	if Join([]string{"a", "b"}, true) != "/a/b/" {
		t.Error("Join should preserve trailing slash for collections")
	}
}

func TestSidecarKeyStable(t *testing.T) {
	k1 := SidecarKey("/foo/bar.txt")
	k2 := SidecarKey("/foo/bar.txt")
	if k1 != k2 {
		t.Error("SidecarKey must be deterministic")
	}
	if SidecarKey("/foo") == SidecarKey("/bar") {
		t.Error("different paths must not collide")
	}
}
