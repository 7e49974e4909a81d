package space

import "math"

// FindCollisionPairs appends every candidate overlapping pair of leaf
// objects to left and right (left[i] pairs with right[i]) and returns the
// extended slices. Each unordered pair appears once. Objects inside two
// subspaces whose bounds do not overlap are never paired.
func (s *Space) FindCollisionPairs(left, right []*Ref) ([]*Ref, []*Ref) {
	for _, a := range s.refs {
		s.candidates(a, func(b *Ref) {
			left, right = s.pair(a, b, left, right)
		})
	}
	for _, r := range s.refs {
		if r.child != nil {
			left, right = r.child.FindCollisionPairs(left, right)
		}
	}
	return left, right
}

// candidates calls fn once for every item of s that overlaps a and is
// ordered after it. Cell-linked pairs are reported only from the cell
// holding the corner of their intersection, so items sharing several cells
// are not reported twice.
func (s *Space) candidates(a *Ref, fn func(b *Ref)) {
	if a.large {
		for _, b := range s.refs {
			if b == a || (b.large && b.id < a.id) {
				continue
			}
			if a.bounds.Overlaps(b.bounds) {
				fn(b)
			}
		}
		return
	}
	for y := a.span.min.y; y <= a.span.max.y; y++ {
		for x := a.span.min.x; x <= a.span.max.x; x++ {
			c := cell{x, y}
			for _, b := range s.cells[c] {
				if b.id <= a.id || !a.bounds.Overlaps(b.bounds) {
					continue
				}
				corner := s.cellOf(
					math.Max(a.bounds.X, b.bounds.X),
					math.Max(a.bounds.Y, b.bounds.Y),
				)
				if corner != c {
					continue
				}
				fn(b)
			}
		}
	}
}

// pair expands a candidate pair of items into leaf pairs.
func (s *Space) pair(a, b *Ref, left, right []*Ref) ([]*Ref, []*Ref) {
	switch {
	case a.child == nil && b.child == nil:
		left = append(left, a)
		right = append(right, b)
	case a.child == nil:
		left, right = leafAgainst(a, b.child, left, right)
	case b.child == nil:
		left, right = leafAgainst(b, a.child, left, right)
	default:
		xs := a.child.collect(b.bounds, stamps.Add(1), a.child.getBuf())
		for _, x := range xs {
			left, right = leafAgainst(x, b.child, left, right)
		}
		a.child.putBuf(xs)
	}
	return left, right
}

func leafAgainst(leaf *Ref, sub *Space, left, right []*Ref) ([]*Ref, []*Ref) {
	ys := sub.collect(leaf.bounds, stamps.Add(1), sub.getBuf())
	for _, y := range ys {
		left = append(left, leaf)
		right = append(right, y)
	}
	sub.putBuf(ys)
	return left, right
}
