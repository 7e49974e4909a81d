package collision

import (
	"math"

	"github.com/tame2d/engine/internal/geom"
)

// Test reports whether a and b overlap. Composite shapes stop at the first
// colliding pair of parts. A nil shape never collides.
func Test(a, b Shape) bool {
	_, ok := solve(a, b, false)
	return ok
}

// MTV returns the minimum translation vector: the smallest displacement
// that, applied to a, separates it from b. For composites the vector comes
// from the colliding pair of parts with the smallest overlap.
func MTV(a, b Shape) (geom.Vec, bool) {
	return solve(a, b, true)
}

func solve(a, b Shape, wantMTV bool) (geom.Vec, bool) {
	if a == nil || b == nil {
		return geom.Vec{}, false
	}
	if ca, ok := a.(*Composite); ok {
		return solveParts(ca.Parts, func(part Shape) (geom.Vec, bool) {
			return solve(part, b, wantMTV)
		}, wantMTV)
	}
	if cb, ok := b.(*Composite); ok {
		return solveParts(cb.Parts, func(part Shape) (geom.Vec, bool) {
			return solve(a, part, wantMTV)
		}, wantMTV)
	}
	pa, ok := a.(*Polygon)
	if !ok {
		return geom.Vec{}, false
	}
	pb, ok := b.(*Polygon)
	if !ok {
		return geom.Vec{}, false
	}
	return separate(pa, pb)
}

func solveParts(parts []Shape, fn func(Shape) (geom.Vec, bool), wantMTV bool) (geom.Vec, bool) {
	var (
		best    geom.Vec
		bestLen = math.Inf(1)
		hit     bool
	)
	for _, part := range parts {
		mtv, ok := fn(part)
		if !ok {
			continue
		}
		if !wantMTV {
			return mtv, true
		}
		if l := mtv.Len(); l < bestLen {
			best, bestLen, hit = mtv, l, true
		}
	}
	return best, hit
}

// separate runs the separating-axis test over the edge normals of both
// polygons. Shapes without a single usable axis do not collide.
func separate(a, b *Polygon) (geom.Vec, bool) {
	if len(a.axes)+len(b.axes) == 0 || len(a.points) == 0 || len(b.points) == 0 {
		return geom.Vec{}, false
	}
	var (
		best    geom.Vec
		minimum = math.Inf(1)
	)
	for _, axes := range [2][]geom.Vec{a.axes, b.axes} {
		for _, axis := range axes {
			aLo, aHi := a.project(axis)
			bLo, bHi := b.project(axis)
			push, back := aHi-bLo, bHi-aLo
			overlap := math.Min(push, back)
			if !(overlap > 0) {
				return geom.Vec{}, false
			}
			if overlap < minimum {
				minimum = overlap
				if push < back {
					best = axis.Scale(-overlap)
				} else {
					best = axis.Scale(overlap)
				}
			}
		}
	}
	return best, true
}
