package dav

import (
	"context"
	"strconv"

	"github.com/WJQSERVER-STUDIO/davcore/internal/backend"
	"github.com/WJQSERVER-STUDIO/davcore/internal/davstate"
	"golang.org/x/sync/errgroup"
)

// quotaLimit returns the configured root quota limit in bytes, and whether
// one is configured at all (spec.md §3, §4.5.9).
func (s *Server) quotaLimit(ctx context.Context) (int64, bool, error) {
	props, err := s.State.GetProps(ctx, "/")
	if err != nil {
		return 0, false, err
	}
	raw, ok := props["Z:quota-limit-bytes"]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// totalUsed recursively sums file sizes under segs, excluding the sidecar
// tree, fanning traversal out across subdirectories concurrently.
func (s *Server) totalUsed(ctx context.Context, segs []string) (int64, error) {
	if len(segs) > 0 && segs[0] == davstate.SidecarRoot {
		return 0, nil
	}
	info, err := s.Backend.Stat(ctx, segs)
	if err != nil {
		return 0, err
	}
	if info.Type == backend.File {
		return info.Size, nil
	}

	names, err := s.Backend.Readdir(ctx, segs)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	sizes := make([]int64, len(names))
	for i, name := range names {
		i, name := i, name
		if len(segs) == 0 && name == davstate.SidecarRoot {
			continue
		}
		g.Go(func() error {
			child := append(append([]string{}, segs...), name)
			sz, err := s.totalUsed(gctx, child)
			if err != nil {
				return err
			}
			sizes[i] = sz
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var total int64
	for _, sz := range sizes {
		total += sz
	}
	return total, nil
}

// checkQuota reports whether writing newSize bytes over a resource of
// existingSize bytes (0 if the resource is new) fits the configured root
// quota (spec.md §4.5.3).
func (s *Server) checkQuota(ctx context.Context, existingSize, newSize int64) (bool, error) {
	limit, ok, err := s.quotaLimit(ctx)
	if err != nil || !ok {
		return true, err
	}
	used, err := s.totalUsed(ctx, nil)
	if err != nil {
		return false, err
	}
	delta := newSize - existingSize
	if delta < 0 {
		delta = 0
	}
	return used+delta <= limit, nil
}
