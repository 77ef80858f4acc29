package dav

import (
	"context"
	"net/http"
	"strconv"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

// entityView is one resource swept into a PROPFIND response (spec.md §4.5.9).
type entityView struct {
	segs  []string
	path  string
	href  string
	info  backend.Info
	isDir bool
}

func (s *Server) buildEntity(ctx context.Context, segs []string) (entityView, error) {
	info, err := s.Backend.Stat(ctx, segs)
	if err != nil {
		return entityView{}, err
	}
	isDir := info.Type == backend.Dir
	return entityView{
		segs:  segs,
		path:  pathkey.CanonicalPath(segs),
		href:  pathkey.URLEncode(pathkey.Join(segs, isDir)),
		info:  info,
		isDir: isDir,
	}, nil
}

// collectEntities walks the target per the Depth header (spec.md §4.5.9):
// 0 = self only, 1 = self + immediate children, infinity = full subtree
// breadth-first. Children are ordered via State.ApplyOrder and filtered
// through the ignore predicate.
func (s *Server) collectEntities(ctx context.Context, segs []string, depth int) ([]entityView, error) {
	root, err := s.buildEntity(ctx, segs)
	if err != nil {
		return nil, err
	}
	result := []entityView{root}
	if depth == 0 || !root.isDir {
		return result, nil
	}

	type queueItem struct {
		segs  []string
		depth int
	}
	queue := []queueItem{{segs, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if depth != -1 && it.depth >= depth {
			continue
		}

		names, err := s.Backend.Readdir(ctx, it.segs)
		if err != nil {
			return nil, err
		}
		filtered := make([]string, 0, len(names))
		for _, n := range names {
			child := append(clonePathSegs(it.segs), n)
			if s.ignore().Matches(child) {
				continue
			}
			filtered = append(filtered, n)
		}
		ordered, err := s.State.ApplyOrder(ctx, pathkey.CanonicalPath(it.segs), filtered)
		if err != nil {
			return nil, err
		}
		for _, n := range ordered {
			childSegs := append(clonePathSegs(it.segs), n)
			ent, err := s.buildEntity(ctx, childSegs)
			if err != nil {
				continue
			}
			result = append(result, ent)
			if ent.isDir {
				queue = append(queue, queueItem{childSegs, it.depth + 1})
			}
		}
	}
	return result, nil
}

var defaultLiveProps = []string{
	"D:displayname", "D:getcontentlength", "D:resourcetype", "D:getlastmodified", "D:getetag",
}

func isLiveName(name string) bool {
	switch name {
	case "D:displayname", "D:getcontentlength", "D:resourcetype", "D:getlastmodified",
		"D:getetag", "D:quota-used-bytes", "D:quota-available-bytes",
		"D:supportedlock", "D:lockdiscovery":
		return true
	}
	return false
}

// liveProp computes one server-derived property value (spec.md §4.5.9).
// found=false means the property genuinely does not apply here (e.g. no
// quota configured); err is reserved for backend/sidecar failures.
func (s *Server) liveProp(ctx context.Context, e entityView, name string) (value string, raw bool, found bool, err error) {
	switch name {
	case "D:displayname":
		return pathkey.Name(e.segs), false, true, nil
	case "D:getcontentlength":
		if e.isDir {
			return "0", false, true, nil
		}
		return strconv.FormatInt(e.info.Size, 10), false, true, nil
	case "D:resourcetype":
		if e.isDir {
			return "<D:collection/>", true, true, nil
		}
		return "", false, true, nil
	case "D:getlastmodified":
		return e.info.Mtime.UTC().Format(http.TimeFormat), false, true, nil
	case "D:getetag":
		return weakETag(e.info, true), false, true, nil
	case "D:quota-used-bytes":
		used, err := s.totalUsed(ctx, e.segs)
		if err != nil {
			return "", false, false, err
		}
		return strconv.FormatInt(used, 10), false, true, nil
	case "D:quota-available-bytes":
		limit, ok, err := s.quotaLimit(ctx)
		if err != nil {
			return "", false, false, err
		}
		if !ok {
			return "", false, false, nil
		}
		used, err := s.totalUsed(ctx, nil)
		if err != nil {
			return "", false, false, err
		}
		avail := limit - used
		if avail < 0 {
			avail = 0
		}
		return strconv.FormatInt(avail, 10), false, true, nil
	case "D:supportedlock":
		return "<D:lockentry><D:lockscope><D:exclusive/></D:lockscope>" +
			"<D:locktype><D:write/></D:locktype></D:lockentry>", true, true, nil
	case "D:lockdiscovery":
		rec, locked, err := s.State.GetLock(ctx, e.path)
		if err != nil {
			return "", false, false, err
		}
		if !locked {
			return "", false, true, nil
		}
		return xmlscan.LockDiscoveryXML(rec.Token, "", "exclusive", "0", 0), true, true, nil
	}
	return "", false, false, nil
}

// propsForEntity builds the propstat groups for one entity under the
// request's parsed PROPFIND mode.
func (s *Server) propsForEntity(ctx context.Context, e entityView, mode xmlscan.PropFindRequest) ([]xmlscan.PropStatGroup, error) {
	if mode.PropName {
		names := append([]string{}, defaultLiveProps...)
		deadProps, err := s.State.GetProps(ctx, e.path)
		if err != nil {
			return nil, err
		}
		for k := range deadProps {
			names = append(names, k)
		}
		props := make([]xmlscan.RawProp, len(names))
		for i, n := range names {
			props[i] = xmlscan.RawProp{Name: n}
		}
		return []xmlscan.PropStatGroup{{Status: http.StatusOK, Props: props}}, nil
	}

	if mode.AllProp {
		var props []xmlscan.RawProp
		for _, n := range defaultLiveProps {
			v, raw, found, err := s.liveProp(ctx, e, n)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			props = append(props, xmlscan.RawProp{Name: n, Value: v, Raw: raw})
		}
		return []xmlscan.PropStatGroup{{Status: http.StatusOK, Props: props}}, nil
	}

	deadProps, err := s.State.GetProps(ctx, e.path)
	if err != nil {
		return nil, err
	}
	var ok []xmlscan.RawProp
	var missing []xmlscan.RawProp
	for _, n := range mode.Names {
		if isLiveName(n) {
			v, raw, found, err := s.liveProp(ctx, e, n)
			if err != nil {
				return nil, err
			}
			if found {
				ok = append(ok, xmlscan.RawProp{Name: n, Value: v, Raw: raw})
			} else {
				missing = append(missing, xmlscan.RawProp{Name: n})
			}
			continue
		}
		if v, present := deadProps[n]; present {
			ok = append(ok, xmlscan.RawProp{Name: n, Value: v})
		} else {
			missing = append(missing, xmlscan.RawProp{Name: n})
		}
	}

	var groups []xmlscan.PropStatGroup
	if len(ok) > 0 {
		groups = append(groups, xmlscan.PropStatGroup{Status: http.StatusOK, Props: ok})
	}
	if len(missing) > 0 {
		groups = append(groups, xmlscan.PropStatGroup{Status: http.StatusNotFound, Props: missing})
	}
	return groups, nil
}

func (s *Server) doPropfind(ctx context.Context, w http.ResponseWriter, req *Request) error {
	if _, err := s.Backend.Stat(ctx, req.Segs); err != nil {
		return mapBackendErr(err)
	}

	// spec.md §4.5.9: Depth defaults to 1 when the header is absent.
	entities, err := s.collectEntities(ctx, req.Segs, resolveDepth(req.Depth, 1))
	if err != nil {
		return mapBackendErr(err)
	}

	mode := xmlscan.ParsePropFind(req.Body)
	ms := &xmlscan.MultiStatus{}
	if s.CalDAV != nil {
		ms.ExtraXMLNS = map[string]string{"C": calDAVNamespace}
	}

	for _, e := range entities {
		groups, err := s.propsForEntity(ctx, e, mode)
		if err != nil {
			return mapBackendErr(err)
		}
		if s.CalDAV != nil {
			groups, err = s.CalDAV.afterPropfindEntity(ctx, s, e, mode, groups)
			if err != nil {
				s.logf("warn", "dav: caldav afterPropfind swallowed error for %s: %s", e.path, err)
			}
		}
		ms.Add(xmlscan.ResponseEntry{Href: e.href, PropStats: groups})
	}

	prefApplied := applyPropfindBrief(req, ms)

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if prefApplied {
		w.Header().Set("Preference-Applied", "return=minimal")
	}
	w.WriteHeader(StatusMulti)
	_, werr := w.Write(ms.Render())
	return werr
}

// applyPropfindBrief is the "propfind-brief" compat after-hook (spec.md
// §4.10): when Brief or Prefer:return=minimal was requested, 404 propstat
// groups are stripped from every response entry.
func applyPropfindBrief(req *Request, ms *xmlscan.MultiStatus) bool {
	brief := req.HTTP.Header.Get("Brief") == "t"
	preferMinimal := req.HTTP.Header.Get("Prefer") == "return=minimal"
	if !brief && !preferMinimal {
		return false
	}
	for i, e := range ms.Entries {
		var kept []xmlscan.PropStatGroup
		for _, g := range e.PropStats {
			if g.Status == http.StatusNotFound {
				continue
			}
			kept = append(kept, g)
		}
		ms.Entries[i].PropStats = kept
	}
	return preferMinimal
}
