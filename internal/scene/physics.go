package scene

import (
	"time"

	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/event"
	"github.com/tame2d/engine/internal/core/system"
	"github.com/tame2d/engine/internal/geom"
)

// PhysicsSystem runs the fixed-rate simulation step. PassPhysics.
//
// Each tick: update behaviors, motion, index sync, then broad and narrow
// phase with collide behaviors called on both participants.
type PhysicsSystem struct {
	scene    *Scene
	clock    *system.FixedRate
	pipeline collision.Pipeline
	ticks    uint64
}

func NewPhysicsSystem(s *Scene, rate, catchupCap int) *PhysicsSystem {
	p := &PhysicsSystem{scene: s}
	p.clock = system.NewFixedRate(system.PassPhysics, 0, rate, catchupCap, p.step, s.log)
	return p
}

func (p *PhysicsSystem) Pass() system.Pass { return system.PassPhysics }

// Ticks returns the number of simulation ticks run so far.
func (p *PhysicsSystem) Ticks() uint64 { return p.ticks }

// Dropped returns the ticks discarded by the catch-up cap.
func (p *PhysicsSystem) Dropped() uint64 { return p.clock.Dropped() }

func (p *PhysicsSystem) Update(t system.TickTime) {
	before := p.clock.Dropped()
	p.clock.Update(t)
	if d := p.clock.Dropped() - before; d > 0 {
		event.Emit(p.scene.bus, event.CatchupDropped{
			Scene:   p.scene.name,
			Ticks:   d,
			Dropped: p.clock.Step() * time.Duration(d),
		})
	}
}

func (p *PhysicsSystem) step(t system.TickTime) {
	s := p.scene
	props := s.props
	p.ticks++

	s.Each(func(e *ecs.Entity) {
		ecs.Resolve(e, props.Update)(s, e, t)
	})

	dt := t.Seconds()
	s.Each(func(e *ecs.Entity) {
		if !ecs.Has(e, props.Velocity) {
			return
		}
		v := ecs.Value(e, props.Velocity)
		if v.IsZero() {
			return
		}
		ecs.Set(e, props.Position, ecs.Value(e, props.Position).Add(v.Scale(dt)))
	})

	s.syncPresence()
	p.pipeline.Run(s.space, worldShape, p.contact)
}

func worldShape(payload any) collision.Shape {
	return payload.(*member).world
}

func (p *PhysicsSystem) contact(a, b any, mtv geom.Vec) {
	s := p.scene
	ma, mb := a.(*member), b.(*member)
	if ma.dying || mb.dying {
		return
	}
	ecs.Resolve(ma.e, s.props.Collide)(s, ma.e, mb.e, mtv)
	ecs.Resolve(mb.e, s.props.Collide)(s, mb.e, ma.e, mtv.Neg())
	event.Emit(s.bus, event.Contact{Scene: s.name, A: ma.e.ID(), B: mb.e.ID(), MTV: mtv})
}
