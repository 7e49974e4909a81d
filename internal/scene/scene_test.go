package scene

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/event"
	"github.com/tame2d/engine/internal/core/system"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/render"
	"go.uber.org/zap"
)

const tick = 100 * time.Millisecond // at TickRate 10

func newGame(t *testing.T, cfg Config) *Game {
	t.Helper()
	if cfg.TickRate == 0 {
		cfg.TickRate = 10
	}
	g, err := NewGame(cfg, zap.NewNop())
	require.NoError(t, err)
	return g
}

func mustScene(t *testing.T, g *Game, name string) *Scene {
	t.Helper()
	s, err := g.NewScene(name)
	require.NoError(t, err)
	return s
}

func spawn(s *Scene, name string, pos geom.Vec, shape collision.Shape, classes ...string) *ecs.Entity {
	p := s.Props()
	e := s.Game().NewEntity()
	ecs.Set(e, p.Name, name)
	ecs.Set(e, p.Position, pos)
	ecs.Set(e, p.Shape, shape)
	for _, c := range classes {
		e.AddClass(c)
	}
	s.Add(e)
	return e
}

func square(size float64) collision.Shape {
	return collision.Box(geom.Rect{W: size, H: size})
}

func TestNewGameValidatesConfig(t *testing.T) {
	_, err := NewGame(Config{CellSize: -1}, nil)
	require.Error(t, err)
	_, err = NewGame(Config{TickRate: -5}, nil)
	require.Error(t, err)

	g, err := NewGame(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultCellSize), g.Config().CellSize)
	assert.Equal(t, DefaultTickRate, g.Config().TickRate)
	assert.Equal(t, system.DefaultCatchupCap, g.Config().CatchupCap)

	// Builtins cannot be registered twice in one registry.
	_, err = NewGame(Config{Registry: g.Registry()}, nil)
	require.ErrorIs(t, err, ecs.ErrDuplicateName)
}

func TestSceneNamesAreUnique(t *testing.T) {
	g := newGame(t, Config{})
	a := mustScene(t, g, "b-level")
	mustScene(t, g, "a-level")
	_, err := g.NewScene("b-level")
	require.ErrorIs(t, err, ErrSceneExists)

	got, ok := g.Scene("b-level")
	require.True(t, ok)
	require.Same(t, a, got)
	require.Len(t, g.Scenes(), 2)
	require.Equal(t, "a-level", g.Scenes()[0].Name())
	require.NotEqual(t, g.Scenes()[0].ID(), g.Scenes()[1].ID())
}

func TestMovingEntityBetweenScenes(t *testing.T) {
	g := newGame(t, Config{})
	a, b := mustScene(t, g, "a"), mustScene(t, g, "b")
	e := spawn(a, "crate", geom.Vec{}, square(4))
	require.Equal(t, 1, a.Space().Len())

	b.Add(e)
	assert.Zero(t, a.Space().Len())
	assert.Zero(t, a.Len())
	_, ok := a.Lookup(e.ID())
	assert.False(t, ok)

	got, ok := b.Lookup(e.ID())
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.Equal(t, 1, b.Space().Len())
	assert.Equal(t, ecs.Owner(b), e.Owner())

	// Writes now reach b's watches only.
	ecs.Set(e, g.Props().Position, geom.Vec{X: 500})
	b.Advance(0)
	var hits int
	b.Query(geom.Rect{X: 499, W: 10, H: 10}, func(*ecs.Entity) { hits++ })
	assert.Equal(t, 1, hits)
}

func TestEntitiesKeepInsertionOrder(t *testing.T) {
	g := newGame(t, Config{})
	s, other := mustScene(t, g, "main"), mustScene(t, g, "other")
	var all []*ecs.Entity
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		all = append(all, spawn(s, name, geom.Vec{}, nil))
	}
	names := func() []string {
		var out []string
		for _, e := range s.Entities() {
			out = append(out, ecs.Value(e, g.Props().Name))
		}
		return out
	}

	other.Add(all[1])
	s.Destroy(all[0])
	s.Advance(tick)
	assert.Equal(t, []string{"c", "d", "e"}, names())

	s.Add(all[1])
	assert.Equal(t, []string{"c", "d", "e", "b"}, names())
	for _, e := range all[2:] {
		got, ok := s.Lookup(e.ID())
		require.True(t, ok)
		assert.Same(t, e, got)
	}
}

func TestMotionIsFixedRate(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	e := spawn(s, "mover", geom.Vec{}, nil)
	ecs.Set(e, g.Props().Velocity, geom.Vec{X: 10, Y: -5})

	s.Advance(250 * time.Millisecond)
	assert.Equal(t, uint64(2), s.Stats().Ticks)
	s.Advance(750 * time.Millisecond)
	assert.Equal(t, uint64(10), s.Stats().Ticks)

	pos := ecs.Value(e, g.Props().Position)
	assert.InDelta(t, 10, pos.X, 1e-9)
	assert.InDelta(t, -5, pos.Y, 1e-9)
}

func TestUpdateBehaviorRunsPerTick(t *testing.T) {
	g := newGame(t, Config{})
	var windows []system.TickTime
	require.NoError(t, ecs.Provide(g.Registry(), g.Registry().Class("clock"), g.Props().Update,
		UpdateFunc(func(_ *Scene, _ *ecs.Entity, tt system.TickTime) { windows = append(windows, tt) })))

	s := mustScene(t, g, "main")
	spawn(s, "watcher", geom.Vec{}, nil, "clock")
	s.Advance(3 * tick)
	require.Equal(t, []system.TickTime{
		{Start: 0, End: tick},
		{Start: tick, End: 2 * tick},
		{Start: 2 * tick, End: 3 * tick},
	}, windows)
}

func TestCollisionNotifiesBothSides(t *testing.T) {
	g := newGame(t, Config{})
	type hit struct {
		self, other string
		mtv         geom.Vec
	}
	var hits []hit
	name := func(e *ecs.Entity) string { return ecs.Value(e, g.Props().Name) }
	require.NoError(t, ecs.Provide(g.Registry(), g.Registry().Class("probe"), g.Props().Collide,
		CollideFunc(func(_ *Scene, self, other *ecs.Entity, mtv geom.Vec) {
			hits = append(hits, hit{name(self), name(other), mtv})
		})))

	s := mustScene(t, g, "main")
	var contacts []event.Contact
	event.Subscribe(s.Bus(), func(c event.Contact) { contacts = append(contacts, c) })

	spawn(s, "a", geom.Vec{}, square(10), "probe")
	spawn(s, "b", geom.Vec{X: 5, Y: 5}, square(10), "probe")
	spawn(s, "ghost", geom.Vec{X: 2, Y: 2}, nil, "probe")
	spawn(s, "far", geom.Vec{X: 50, Y: 50}, square(10), "probe")

	s.Advance(tick)
	require.Len(t, hits, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{hits[0].self, hits[1].self})
	assert.Equal(t, hits[0].self, hits[1].other)
	assert.InDelta(t, 5, hits[0].mtv.Len(), 1e-9)
	assert.Equal(t, hits[0].mtv.Neg(), hits[1].mtv)
	assert.Empty(t, contacts, "contact events arrive next frame")

	s.Advance(tick)
	require.Len(t, contacts, 1)
	assert.Equal(t, "main", contacts[0].Scene)
	assert.Equal(t, 2, s.Stats().Collisions.Contacts)
}

func TestSolidPushesApart(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	a := spawn(s, "a", geom.Vec{}, square(10), ClassSolid)
	b := spawn(s, "b", geom.Vec{X: 5}, square(10), ClassSolid)

	s.Advance(tick)
	assert.InDelta(t, -2.5, ecs.Value(a, g.Props().Position).X, 1e-9)
	assert.InDelta(t, 7.5, ecs.Value(b, g.Props().Position).X, 1e-9)

	// Touching after the push: no further contact.
	s.Advance(tick)
	assert.Equal(t, 1, s.Stats().Collisions.Contacts)
}

func TestRestingSolidStaysPut(t *testing.T) {
	g := newGame(t, Config{TickRate: 60})
	s := mustScene(t, g, "arena")
	p := g.Props()
	floor := spawn(s, "floor", geom.Vec{Y: 460}, collision.Box(geom.Rect{W: 640, H: 20}), ClassSolid, ClassStatic)
	ball := spawn(s, "ball", geom.Vec{X: 320, Y: 440}, collision.Circle(geom.Vec{}, 12, 16), ClassBounce)
	ecs.Set(ball, p.Velocity, geom.Vec{Y: 300})

	bounced := false
	for i := 0; i < 60; i++ {
		s.Advance(16 * time.Millisecond)
		if ecs.Value(ball, p.Velocity).Y < 0 {
			bounced = true
		}
	}
	assert.True(t, bounced)
	assert.Equal(t, geom.Vec{Y: 460}, ecs.Value(floor, p.Position))
	assert.Less(t, ecs.Value(ball, p.Position).Y, 460.0)
}

func TestMovingSolidStopsAtWall(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	p := g.Props()
	wall := spawn(s, "wall", geom.Vec{X: 10}, square(10), ClassSolid, ClassStatic)
	crate := spawn(s, "crate", geom.Vec{X: 1}, square(10), ClassSolid)
	ecs.Set(crate, p.Velocity, geom.Vec{X: 5, Y: 1})

	s.Advance(tick)
	assert.Equal(t, geom.Vec{X: 10}, ecs.Value(wall, p.Position))
	assert.InDelta(t, 0, ecs.Value(crate, p.Position).X, 1e-9)
	assert.True(t, ecs.Value(crate, p.Velocity).Approx(geom.Vec{Y: 1}, 1e-9))
}

func TestMovingSolidsSplitContact(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	p := g.Props()
	a := spawn(s, "a", geom.Vec{}, square(10), ClassSolid)
	b := spawn(s, "b", geom.Vec{X: 9}, square(10), ClassSolid)
	ecs.Set(a, p.Velocity, geom.Vec{X: 10})
	ecs.Set(b, p.Velocity, geom.Vec{X: -10})

	s.Advance(tick)
	// Both moved 1 toward each other, overlapping by 3.
	assert.InDelta(t, -0.5, ecs.Value(a, p.Position).X, 1e-9)
	assert.InDelta(t, 9.5, ecs.Value(b, p.Position).X, 1e-9)
	assert.True(t, ecs.Value(a, p.Velocity).IsZero())
	assert.True(t, ecs.Value(b, p.Velocity).IsZero())
}

func TestBounceReflectsVelocity(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	spawn(s, "wall", geom.Vec{X: -10, Y: -10}, collision.Box(geom.Rect{W: 10, H: 20}))
	ball := spawn(s, "ball", geom.Vec{X: 0.5}, square(2), ClassBounce)
	ecs.Set(ball, g.Props().Velocity, geom.Vec{X: -10})

	s.Advance(tick)
	assert.InDelta(t, 0, ecs.Value(ball, g.Props().Position).X, 1e-9)
	assert.True(t, ecs.Value(ball, g.Props().Velocity).Approx(geom.Vec{X: 10}, 1e-9))

	s.Advance(tick)
	assert.InDelta(t, 1, ecs.Value(ball, g.Props().Position).X, 1e-9)
}

func TestDestroyIsDeferredToCleanup(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	var stillMember bool
	var destroyed []ecs.EntityID
	event.Subscribe(s.Bus(), func(ev event.EntityDestroyed) { destroyed = append(destroyed, ev.EntityID) })

	victim := spawn(s, "victim", geom.Vec{}, square(1))
	require.NoError(t, ecs.Provide(g.Registry(), g.Registry().Class("doomed"), g.Props().Update,
		UpdateFunc(func(sc *Scene, e *ecs.Entity, _ system.TickTime) {
			sc.Destroy(e)
			sc.Destroy(e)
			_, ok := sc.Lookup(e.ID())
			stillMember = ok
		})))
	victim.AddClass("doomed")

	s.Advance(tick)
	assert.True(t, stillMember, "still a member until cleanup")
	_, ok := s.Lookup(victim.ID())
	assert.False(t, ok)
	assert.True(t, victim.Destroyed())
	assert.False(t, g.World().Alive(victim.ID()))
	assert.Zero(t, s.Space().Len())
	assert.Empty(t, destroyed)

	s.Advance(tick)
	assert.Equal(t, []ecs.EntityID{victim.ID()}, destroyed)
}

func TestRenderPassFillsQueue(t *testing.T) {
	g := newGame(t, Config{})
	p := g.Props()
	s := mustScene(t, g, "main")

	top := spawn(s, "top", geom.Vec{X: 1, Y: 2}, nil)
	ecs.Set(top, p.Sprite, 3)
	ecs.Set(top, p.ZIndex, 2)
	bottom := spawn(s, "bottom", geom.Vec{X: 5}, nil)
	ecs.Set(bottom, p.Sprite, 1)
	ecs.Set(bottom, p.ZIndex, 1)
	spawn(s, "invisible", geom.Vec{}, nil)

	require.NoError(t, ecs.Provide(g.Registry(), g.Registry().Class("outlined"), p.Render,
		RenderFunc(func(_ *Scene, e *ecs.Entity, q *render.Queue) {
			pos := ecs.Value(e, p.Position)
			q.Add(0, render.ActionRect, []int32{0xff}, []float64{pos.X, pos.Y, 1, 1})
		})))
	outlined := spawn(s, "outlined", geom.Vec{X: 9}, nil, "outlined")
	ecs.Set(outlined, p.Sprite, 7)

	s.Advance(0)
	f := s.Frame()
	assert.Equal(t, []int32{0, 1, 2}, f.Z)
	assert.Equal(t, []uint8{uint8(render.ActionRect), uint8(render.ActionSprite), uint8(render.ActionSprite)}, f.Actions)
	assert.Equal(t, []int32{0xff, 1, 0, 3, 0}, f.Ints)
	assert.Zero(t, s.Queue().Len(), "frame clears the queue")

	s.Advance(0)
	var n int
	s.Flush(func(render.Command) { n++ })
	assert.Equal(t, 3, n)
	assert.Zero(t, s.Stats().Pending)
}

func TestShapeChangesUpdateIndex(t *testing.T) {
	g := newGame(t, Config{})
	s := mustScene(t, g, "main")
	e := spawn(s, "e", geom.Vec{}, nil)
	assert.Zero(t, s.Space().Len())

	ecs.Set(e, g.Props().Shape, square(3))
	s.Advance(0)
	assert.Equal(t, 1, s.Stats().Indexed)

	ecs.Set(e, g.Props().Shape, nil)
	s.Advance(0)
	assert.Zero(t, s.Stats().Indexed)
}

func TestCatchupDropsTicks(t *testing.T) {
	g := newGame(t, Config{TickRate: 100, CatchupCap: 5})
	s := mustScene(t, g, "main")
	var drops []event.CatchupDropped
	event.Subscribe(s.Bus(), func(ev event.CatchupDropped) { drops = append(drops, ev) })

	s.Advance(time.Second)
	st := s.Stats()
	assert.Equal(t, uint64(5), st.Ticks)
	assert.Equal(t, uint64(95), st.DroppedTicks)

	s.Advance(10 * time.Millisecond)
	assert.Equal(t, uint64(6), s.Stats().Ticks)
	require.Len(t, drops, 1)
	assert.Equal(t, uint64(95), drops[0].Ticks)
	assert.Equal(t, 950*time.Millisecond, drops[0].Dropped)
}

func TestGameAdvanceRunsEveryScene(t *testing.T) {
	g := newGame(t, Config{})
	var movers []*ecs.Entity
	for _, name := range []string{"a", "b", "c", "d"} {
		s := mustScene(t, g, name)
		e := spawn(s, "m", geom.Vec{}, square(1))
		ecs.Set(e, g.Props().Velocity, geom.Vec{X: 1})
		movers = append(movers, e)
	}
	require.NoError(t, g.Advance(context.Background(), time.Second))
	for _, e := range movers {
		assert.InDelta(t, 1, ecs.Value(e, g.Props().Position).X, 1e-9)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, g.Advance(ctx, tick), context.Canceled)
}

func TestGameAdvanceReportsPanickingScene(t *testing.T) {
	g := newGame(t, Config{})
	require.NoError(t, ecs.Provide(g.Registry(), g.Registry().Class("broken"), g.Props().Update,
		UpdateFunc(func(*Scene, *ecs.Entity, system.TickTime) { panic("boom") })))
	mustScene(t, g, "fine")
	bad := mustScene(t, g, "bad")
	spawn(bad, "x", geom.Vec{}, nil, "broken")

	err := g.Advance(context.Background(), tick)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene bad")
	fine, _ := g.Scene("fine")
	assert.Equal(t, uint64(1), fine.Stats().Frames)
}
