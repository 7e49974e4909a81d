package scene

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/event"
	"github.com/tame2d/engine/internal/core/system"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/render"
	"github.com/tame2d/engine/internal/space"
	"go.uber.org/zap"
)

// member is a scene's record of one entity. It is also the payload stored
// in the spatial index.
type member struct {
	e     *ecs.Entity
	index int        // position in Scene.members
	ref   *space.Ref // nil while the entity has no shape
	world collision.Shape
	dying bool
}

// Stats is a snapshot of a scene's counters.
type Stats struct {
	Entities     int
	Indexed      int
	Frames       uint64
	Ticks        uint64
	DroppedTicks uint64
	Pending      int // queued render commands
	Collisions   collision.Stats
}

// Scene owns a set of entities, their spatial index, a scheduler and a
// render queue. All of it is driven from the goroutine calling Advance.
type Scene struct {
	id    uuid.UUID
	name  string
	game  *Game
	props *Props

	members []*member
	byID    map[ecs.EntityID]*member
	space   *space.Space
	sched   *system.Scheduler
	bus     *event.Bus
	queue   render.Queue

	presence []*system.Watch
	physics  *PhysicsSystem
	cleanup  *CleanupSystem

	log *zap.Logger
}

func newScene(g *Game, name string) *Scene {
	log := g.log.With(zap.String("scene", name))
	s := &Scene{
		id:    uuid.New(),
		name:  name,
		game:  g,
		props: g.props,
		byID:  make(map[ecs.EntityID]*member),
		space: space.New(g.cfg.CellSize),
		sched: system.NewScheduler(log),
		bus:   event.NewBus(),
		log:   log,
	}

	s.sched.Register(NewInputSystem(s))
	s.presence = []*system.Watch{
		system.WatchProperty(s.sched, s.props.Position, system.PassImmediate, 0,
			func(e *ecs.Entity, _ geom.Vec) { s.place(e) }),
		system.WatchProperty(s.sched, s.props.Shape, system.PassImmediate, 0,
			func(e *ecs.Entity, _ collision.Shape) { s.place(e) }),
	}
	s.physics = NewPhysicsSystem(s, g.cfg.TickRate, g.cfg.CatchupCap)
	s.sched.Register(s.physics)
	s.sched.Register(NewRenderSystem(s))
	s.cleanup = NewCleanupSystem(s)
	s.sched.Register(s.cleanup)
	return s
}

func (s *Scene) ID() uuid.UUID                { return s.id }
func (s *Scene) Name() string                 { return s.name }
func (s *Scene) Game() *Game                  { return s.game }
func (s *Scene) Props() *Props                { return s.props }
func (s *Scene) Space() *space.Space          { return s.space }
func (s *Scene) Scheduler() *system.Scheduler { return s.sched }
func (s *Scene) Bus() *event.Bus              { return s.bus }
func (s *Scene) Queue() *render.Queue         { return &s.queue }
func (s *Scene) Len() int                     { return len(s.members) }

// Add moves e into s. If e belongs to another scene it is taken out of
// that scene's index first.
func (s *Scene) Add(e *ecs.Entity) {
	if e.Destroyed() {
		panic(fmt.Errorf("scene %s: adding destroyed entity %d", s.name, e.ID()))
	}
	if old, ok := e.Owner().(*Scene); ok {
		if old == s {
			return
		}
		old.remove(e)
	}
	m := &member{e: e, index: len(s.members)}
	s.members = append(s.members, m)
	s.byID[e.ID()] = m
	e.SetOwner(s)
	s.place(e)
}

// Destroy queues e for destruction at the end of the current frame.
func (s *Scene) Destroy(e *ecs.Entity) {
	m, ok := s.byID[e.ID()]
	if !ok || m.dying {
		return
	}
	m.dying = true
	s.cleanup.queue(e)
}

// Lookup finds a member by ID.
func (s *Scene) Lookup(id ecs.EntityID) (*ecs.Entity, bool) {
	m, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return m.e, true
}

// Entities returns a copy of the member list in the order members were
// added.
func (s *Scene) Entities() []*ecs.Entity {
	out := make([]*ecs.Entity, len(s.members))
	for i, m := range s.members {
		out[i] = m.e
	}
	return out
}

// Each calls fn for every entity that is not queued for destruction. fn may
// add or remove members; the walk covers the members present when it began.
func (s *Scene) Each(fn func(e *ecs.Entity)) {
	for _, m := range slices.Clone(s.members) {
		if !m.dying && s.byID[m.e.ID()] == m {
			fn(m.e)
		}
	}
}

// Query visits every entity whose collision bounds overlap b.
func (s *Scene) Query(b geom.Rect, fn func(e *ecs.Entity)) {
	s.space.ForAllInBounds(b, func(payload any, _ geom.Rect, _ *space.Ref) {
		fn(payload.(*member).e)
	})
}

// Advance runs one frame of elapsed wall time.
func (s *Scene) Advance(elapsed time.Duration) {
	s.sched.Advance(elapsed)
}

// Flush hands the frame's render commands to visit in draw order, then
// clears the queue.
func (s *Scene) Flush(visit func(render.Command)) {
	s.queue.Render(visit)
	s.queue.Clear()
}

// Frame flushes the render queue into its wire form.
func (s *Scene) Frame() render.Frame {
	f := s.queue.Frame()
	s.queue.Clear()
	return f
}

func (s *Scene) Stats() Stats {
	return Stats{
		Entities:     len(s.members),
		Indexed:      s.space.Len(),
		Frames:       s.sched.Frames(),
		Ticks:        s.physics.Ticks(),
		DroppedTicks: s.physics.Dropped(),
		Pending:      s.queue.Len(),
		Collisions:   s.physics.pipeline.Total(),
	}
}

// PropertyChanged implements ecs.Owner.
func (s *Scene) PropertyChanged(e *ecs.Entity, slot int) {
	s.sched.PropertyChanged(e, slot)
}

// place brings e's spatial index entry in line with its Position and Shape.
func (s *Scene) place(e *ecs.Entity) {
	m, ok := s.byID[e.ID()]
	if !ok || m.e != e {
		return
	}
	local := ecs.Value(e, s.props.Shape)
	if local == nil {
		if m.ref != nil {
			m.ref.Remove()
			m.ref, m.world = nil, nil
		}
		return
	}
	m.world = local.Translate(ecs.Value(e, s.props.Position))
	b := m.world.Bounds()
	if m.ref == nil {
		m.ref = s.space.AddObject(b, m)
		return
	}
	m.ref.Move(b)
}

// syncPresence applies pending Position/Shape changes to the index now.
func (s *Scene) syncPresence() {
	for _, w := range s.presence {
		w.Flush()
	}
}

// remove detaches e from s without destroying it.
func (s *Scene) remove(e *ecs.Entity) *member {
	m, ok := s.byID[e.ID()]
	if !ok {
		return nil
	}
	if m.ref != nil {
		m.ref.Remove()
		m.ref = nil
	}
	s.members = slices.Delete(s.members, m.index, m.index+1)
	for _, rest := range s.members[m.index:] {
		rest.index--
	}
	delete(s.byID, e.ID())
	s.cleanup.forget(e)
	if e.Owner() == s {
		e.SetOwner(nil)
	}
	return m
}
