package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/scene"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const tick = 100 * time.Millisecond

func newFixture(t *testing.T, scripts map[string]string) (*Engine, *scene.Scene, *observer.ObservedLogs) {
	t.Helper()
	dir := t.TempDir()
	for name, src := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	core, logs := observer.New(zap.DebugLevel)
	g, err := scene.NewGame(scene.Config{TickRate: 10}, zap.New(core))
	require.NoError(t, err)
	e, err := NewEngine(dir, g, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	s, err := g.NewScene("main")
	require.NoError(t, err)
	return e, s, logs
}

func spawn(s *scene.Scene, name string, pos geom.Vec, classes ...string) *ecs.Entity {
	p := s.Props()
	ent := s.Game().NewEntity()
	ecs.Set(ent, p.Name, name)
	ecs.Set(ent, p.Position, pos)
	ecs.Set[collision.Shape](ent, p.Shape, collision.Box(geom.Rect{W: 10, H: 10}))
	for _, c := range classes {
		ent.AddClass(c)
	}
	s.Add(ent)
	return ent
}

func TestUpdateFromScript(t *testing.T) {
	e, s, _ := newFixture(t, map[string]string{
		"drift.lua": `
class("drift", {
  update = function(self, dt)
    local x, y = self:position()
    self:set_velocity(3, 0)
    if x > 1 and not self:has_class("fast") then
      self:add_class("fast")
    end
  end,
})
`,
		"notes.txt": "not a script",
	})
	require.Equal(t, []string{"drift"}, e.Classes())

	ent := spawn(s, "mote", geom.Vec{}, "drift")
	s.Advance(10 * tick)

	pos := ecs.Value(ent, s.Props().Position)
	assert.InDelta(t, 3, pos.X, 1e-9)
	assert.True(t, ent.HasClass("fast"))
}

func TestCollideFromScript(t *testing.T) {
	e, s, _ := newFixture(t, nil)
	require.NoError(t, e.DoString(`
hits = {}
class("sensor", {
  collide = function(self, other, mx, my)
    table.insert(hits, self:name() .. ">" .. other:name())
    if other:name() == "bomb" then other:destroy() end
  end,
})
`))
	spawn(s, "probe", geom.Vec{}, "sensor")
	bomb := spawn(s, "bomb", geom.Vec{X: 5})

	s.Advance(tick)
	_, ok := s.Lookup(bomb.ID())
	assert.False(t, ok)
	require.NoError(t, e.DoString(`assert(#hits == 1 and hits[1] == "probe>bomb")`))
}

func TestScriptErrorsAreLogged(t *testing.T) {
	e, s, logs := newFixture(t, nil)
	require.NoError(t, e.DoString(`class("broken", { update = function(self) error("nope") end })`))
	spawn(s, "x", geom.Vec{}, "broken")

	require.NotPanics(t, func() { s.Advance(2 * tick) })
	assert.Equal(t, 2, logs.FilterMessage("lua callback error").Len())
}

func TestRedefiningClassWithdrawsCallbacks(t *testing.T) {
	e, s, _ := newFixture(t, nil)
	require.NoError(t, e.DoString(`class("mover", { update = function(self) self:set_velocity(1, 0) end })`))
	require.NoError(t, e.DoString(`class("mover", {})`))

	ent := spawn(s, "m", geom.Vec{}, "mover")
	s.Advance(tick)
	assert.False(t, ecs.Has(ent, s.Props().Velocity))
}

func TestBadScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("class(("), 0o644))
	g, err := scene.NewGame(scene.Config{}, nil)
	require.NoError(t, err)
	_, err = NewEngine(dir, g, nil)
	require.Error(t, err)

	e, err := NewEngine(filepath.Join(dir, "missing"), g, nil)
	require.NoError(t, err)
	e.Close()

	e, err = NewEngine("", g, nil)
	require.NoError(t, err)
	assert.Error(t, e.DoString(`class(42)`))
	e.Close()
}

func TestClassDefinitionsClose(t *testing.T) {
	e, s, logs := newFixture(t, nil)
	require.NoError(t, e.DoString(`class("spawner", { update = function(self) class("late", {}) end })`))
	spawn(s, "x", geom.Vec{}, "spawner")

	s.Advance(tick)
	require.Equal(t, 1, logs.FilterMessage("lua callback error").Len())
	assert.Equal(t, []string{"spawner"}, e.Classes())

	e.Seal()
	err := e.DoString(`class("late", {})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrSealed.Error())
	require.NoError(t, e.DoString(`local n = 1 + 1`))
	assert.Equal(t, []string{"spawner"}, e.Classes())
}
