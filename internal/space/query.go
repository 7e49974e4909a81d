package space

import "github.com/tame2d/engine/internal/geom"

// ForAllInBounds visits every leaf object whose bounds overlap q, descending
// into overlapping subspaces. Each leaf is visited at most once.
//
// Matches are collected before the first visit, so visit may remove, move or
// add items and run nested queries; removed refs are skipped.
func (s *Space) ForAllInBounds(q geom.Rect, visit func(payload any, b geom.Rect, r *Ref)) {
	buf := s.collect(q, stamps.Add(1), s.getBuf())
	for _, r := range buf {
		if r.removed {
			continue
		}
		visit(r.payload, r.bounds, r)
	}
	s.putBuf(buf)
}

// Leaves appends every leaf object held by s or its descendants to out.
func (s *Space) Leaves(out []*Ref) []*Ref {
	for _, r := range s.refs {
		if r.child != nil {
			out = r.child.Leaves(out)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Space) collect(q geom.Rect, stamp uint64, out []*Ref) []*Ref {
	consider := func(r *Ref) {
		if r.seen == stamp {
			return
		}
		r.seen = stamp
		if !r.bounds.Overlaps(q) {
			return
		}
		if r.child != nil {
			out = r.child.collect(q, stamp, out)
			return
		}
		out = append(out, r)
	}

	qs := s.spanOf(q)
	if qs.count() > int64(len(s.refs)) {
		for _, r := range s.refs {
			consider(r)
		}
		return out
	}
	for _, r := range s.large {
		consider(r)
	}
	for y := qs.min.y; y <= qs.max.y; y++ {
		for x := qs.min.x; x <= qs.max.x; x++ {
			for _, r := range s.cells[cell{x, y}] {
				consider(r)
			}
		}
	}
	return out
}
