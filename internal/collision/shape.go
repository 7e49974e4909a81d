// Package collision holds collision shapes, the separating-axis narrow
// phase and the broad-to-narrow pipeline run by each scene's physics pass.
package collision

import (
	"math"

	"github.com/tame2d/engine/internal/geom"
)

// DefaultCircleSides is used when Circle is asked for fewer than three sides.
const DefaultCircleSides = 16

// Shape is a collision shape in some coordinate frame. Shapes are immutable;
// Translate returns a moved copy.
type Shape interface {
	Bounds() geom.Rect
	Translate(d geom.Vec) Shape
}

// Polygon is a convex polygon. Its separating axes are the unit normals of
// its edges, computed once at construction.
type Polygon struct {
	points []geom.Vec
	axes   []geom.Vec
	bounds geom.Rect
}

// NewPolygon builds a convex polygon from its vertices in order. Edges of
// zero length contribute no axis.
func NewPolygon(points []geom.Vec) *Polygon {
	p := &Polygon{
		points: append([]geom.Vec(nil), points...),
		bounds: geom.RectFromPoints(points),
	}
	for i, a := range p.points {
		b := p.points[(i+1)%len(p.points)]
		n, ok := b.Sub(a).Perp().Normalize()
		if !ok || p.hasAxis(n) {
			continue
		}
		p.axes = append(p.axes, n)
	}
	return p
}

// hasAxis reports whether a parallel axis is already present; projecting
// onto it again would give the same interval.
func (p *Polygon) hasAxis(n geom.Vec) bool {
	for _, a := range p.axes {
		if math.Abs(a.X*n.Y-a.Y*n.X) < 1e-12 {
			return true
		}
	}
	return false
}

// Box returns the polygon covering r.
func Box(r geom.Rect) *Polygon {
	return NewPolygon([]geom.Vec{
		{X: r.X, Y: r.Y},
		{X: r.MaxX(), Y: r.Y},
		{X: r.MaxX(), Y: r.MaxY()},
		{X: r.X, Y: r.MaxY()},
	})
}

// Circle approximates a circle with a regular polygon of the given number
// of sides.
func Circle(center geom.Vec, radius float64, sides int) *Polygon {
	if sides < 3 {
		sides = DefaultCircleSides
	}
	pts := make([]geom.Vec, sides)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(sides)
		pts[i] = geom.Vec{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		}
	}
	return NewPolygon(pts)
}

func (p *Polygon) Bounds() geom.Rect { return p.bounds }

// Points returns the polygon's vertices. Callers must not modify them.
func (p *Polygon) Points() []geom.Vec { return p.points }

func (p *Polygon) Translate(d geom.Vec) Shape {
	moved := &Polygon{
		points: make([]geom.Vec, len(p.points)),
		axes:   p.axes,
		bounds: p.bounds.Translate(d),
	}
	for i, pt := range p.points {
		moved.points[i] = pt.Add(d)
	}
	return moved
}

func (p *Polygon) project(axis geom.Vec) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, pt := range p.points {
		d := pt.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// Composite is a shape made of several parts. Two shapes collide when any
// pair of their parts does.
type Composite struct {
	Parts []Shape
}

func (c *Composite) Bounds() geom.Rect {
	var (
		b     geom.Rect
		found bool
	)
	for _, part := range c.Parts {
		if part == nil {
			continue
		}
		if !found {
			b, found = part.Bounds(), true
			continue
		}
		b = b.Union(part.Bounds())
	}
	return b
}

func (c *Composite) Translate(d geom.Vec) Shape {
	moved := &Composite{Parts: make([]Shape, len(c.Parts))}
	for i, part := range c.Parts {
		if part != nil {
			moved.Parts[i] = part.Translate(d)
		}
	}
	return moved
}
