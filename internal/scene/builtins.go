package scene

import (
	"fmt"

	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/system"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/render"
)

// Builtin class names.
const (
	ClassSolid  = "solid"
	ClassBounce = "bounce"
	ClassStatic = "static" // fixed geometry, never pushed by contacts
)

// NoSprite marks an entity that draws nothing by default.
const NoSprite int32 = -1

// UpdateFunc advances e by one simulation tick.
type UpdateFunc func(s *Scene, e *ecs.Entity, t system.TickTime)

// CollideFunc is called for each confirmed contact. mtv is the displacement
// that moves self out of other.
type CollideFunc func(s *Scene, self, other *ecs.Entity, mtv geom.Vec)

// RenderFunc appends e's draw commands to q.
type RenderFunc func(s *Scene, e *ecs.Entity, q *render.Queue)

// Props holds the property and behavior definitions every scene relies on.
type Props struct {
	Name     *ecs.Property[string]
	Position *ecs.Property[geom.Vec]
	Velocity *ecs.Property[geom.Vec]
	Shape    *ecs.Property[collision.Shape] // local to Position; nil never collides
	Sprite   *ecs.Property[int32]
	ZIndex   *ecs.Property[int32]

	Update  *ecs.Behavior[UpdateFunc]
	Collide *ecs.Behavior[CollideFunc]
	Render  *ecs.Behavior[RenderFunc]
}

// DefineBuiltins registers the builtin definitions and classes in reg. It
// fails if any builtin name is already taken.
func DefineBuiltins(reg *ecs.Registry) (*Props, error) {
	var err error
	p := &Props{
		Name:     property(reg, &err, "name", func() string { return "" }),
		Position: property[geom.Vec](reg, &err, "position", nil),
		Velocity: property[geom.Vec](reg, &err, "velocity", nil),
		Shape:    property[collision.Shape](reg, &err, "shape", nil),
		Sprite:   property(reg, &err, "sprite", func() int32 { return NoSprite }),
		ZIndex:   property[int32](reg, &err, "z_index", nil),
		Update:   behavior(reg, &err, "update", UpdateFunc(func(*Scene, *ecs.Entity, system.TickTime) {})),
		Collide:  behavior(reg, &err, "collide", CollideFunc(func(*Scene, *ecs.Entity, *ecs.Entity, geom.Vec) {})),
	}
	if err != nil {
		return nil, fmt.Errorf("define builtins: %w", err)
	}
	p.Render, err = ecs.DefineBehavior(reg, "render", RenderFunc(p.drawSprite))
	if err != nil {
		return nil, fmt.Errorf("define builtins: %w", err)
	}

	reg.Class(ClassStatic)
	for _, c := range []struct {
		name string
		fn   CollideFunc
	}{
		{ClassSolid, p.solid},
		{ClassBounce, p.bounce},
	} {
		if err := ecs.Provide(reg, reg.Class(c.name), p.Collide, c.fn); err != nil {
			return nil, fmt.Errorf("define builtins: %w", err)
		}
	}
	return p, nil
}

func property[T any](reg *ecs.Registry, errp *error, name string, factory func() T) *ecs.Property[T] {
	p, err := ecs.DefineProperty(reg, name, factory)
	if err != nil && *errp == nil {
		*errp = err
	}
	return p
}

func behavior[T any](reg *ecs.Registry, errp *error, name string, neutral T) *ecs.Behavior[T] {
	b, err := ecs.DefineBehavior(reg, name, neutral)
	if err != nil && *errp == nil {
		*errp = err
	}
	return b
}

// drawSprite is the neutral render behavior: one sprite command at the
// entity's position when it has a sprite.
func (p *Props) drawSprite(_ *Scene, e *ecs.Entity, q *render.Queue) {
	sprite := ecs.Value(e, p.Sprite)
	if sprite == NoSprite {
		return
	}
	pos := ecs.Value(e, p.Position)
	q.Add(ecs.Value(e, p.ZIndex), render.ActionSprite,
		[]int32{sprite, 0},
		[]float64{pos.X, pos.Y, 0, 1})
}

// solid pushes self out of the contact and cancels the velocity component
// heading into it.
func (p *Props) solid(_ *Scene, self, other *ecs.Entity, mtv geom.Vec) {
	n, ok := mtv.Normalize()
	if !ok {
		return
	}
	if !p.push(self, other, mtv) {
		return
	}
	v := ecs.Value(self, p.Velocity)
	if into := v.Dot(n); into < 0 {
		ecs.Set(self, p.Velocity, v.Sub(n.Scale(into)))
	}
}

// bounce pushes self out of the contact and reflects its velocity about the
// contact normal.
func (p *Props) bounce(_ *Scene, self, other *ecs.Entity, mtv geom.Vec) {
	n, ok := mtv.Normalize()
	if !ok {
		return
	}
	if !p.push(self, other, mtv) {
		return
	}
	v := ecs.Value(self, p.Velocity)
	if into := v.Dot(n); into < 0 {
		ecs.Set(self, p.Velocity, v.Sub(n.Scale(2*into)))
	}
}

// push moves self by mtv, or by half of it when other is pushed back too.
// Static entities stay where they are.
func (p *Props) push(self, other *ecs.Entity, mtv geom.Vec) bool {
	if self.HasClass(ClassStatic) {
		return false
	}
	if !other.HasClass(ClassStatic) && (other.HasClass(ClassSolid) || other.HasClass(ClassBounce)) {
		mtv = mtv.Scale(0.5)
	}
	ecs.Set(self, p.Position, ecs.Value(self, p.Position).Add(mtv))
	return true
}
