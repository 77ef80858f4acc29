package dav

import (
	"context"
	"net/http"

	"github.com/WJQSERVER-STUDIO/davcore/internal/davstate"
	"github.com/WJQSERVER-STUDIO/davcore/internal/pathkey"
	"github.com/WJQSERVER-STUDIO/davcore/internal/xmlscan"
)

// doProppatch applies a set/remove property update and reports the result
// as a single 207 response with up to two propstat groups (spec.md §4.5.8).
func (s *Server) doProppatch(ctx context.Context, w http.ResponseWriter, req *Request) error {
	if _, err := s.Backend.Stat(ctx, req.Segs); err != nil {
		return mapBackendErr(err)
	}

	ops := xmlscan.ParsePropPatch(req.Body)
	stateOps := make([]davstate.PropOp, len(ops))
	for i, o := range ops {
		stateOps[i] = davstate.PropOp{Name: o.Name, Value: o.Value, Remove: o.Remove}
	}
	missing, err := s.State.ApplyPropPatch(ctx, req.Path, stateOps)
	if err != nil {
		return mapBackendErr(err)
	}

	missingSet := make(map[string]bool, len(missing))
	for _, m := range missing {
		missingSet[m] = true
	}

	var okProps, missingProps []xmlscan.RawProp
	for _, o := range ops {
		if o.Remove && missingSet[o.Name] {
			missingProps = append(missingProps, xmlscan.RawProp{Name: o.Name})
			continue
		}
		okProps = append(okProps, xmlscan.RawProp{Name: o.Name})
	}

	var groups []xmlscan.PropStatGroup
	if len(okProps) > 0 {
		groups = append(groups, xmlscan.PropStatGroup{Status: http.StatusOK, Props: okProps})
	}
	if len(missingProps) > 0 {
		groups = append(groups, xmlscan.PropStatGroup{Status: http.StatusNotFound, Props: missingProps})
	}

	ms := &xmlscan.MultiStatus{}
	ms.Add(xmlscan.ResponseEntry{Href: pathkey.URLEncode(req.Path), PropStats: groups})
	return writeXML(w, StatusMulti, ms.Render())
}
