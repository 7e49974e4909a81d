package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/system"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/scene"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrSealed is raised by class() once the engine is sealed or while a class
// callback is running.
var ErrSealed = errors.New("class definitions are closed")

// Engine wraps a single gopher-lua VM whose scripts define entity classes.
// Scenes advance in parallel, so every entry into the VM holds mu.
//
// class() writes the shared registry that scenes read without locks while
// they advance, so it is only accepted between frames: never from a
// callback, and never after Seal.
type Engine struct {
	mu      sync.Mutex
	vm      *lua.LState
	game    *scene.Game
	classes map[string]struct{}
	sealed  bool
	inCall  bool
	log     *zap.Logger
}

// NewEngine creates a Lua engine bound to game and loads every .lua file in
// dir. An empty or missing dir loads nothing.
func NewEngine(dir string, game *scene.Game, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:      vm,
		game:    game,
		classes: make(map[string]struct{}),
		log:     log,
	}
	e.registerEntityType()
	vm.SetGlobal("class", vm.NewFunction(e.luaClass))

	if dir != "" {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		e.mu.Lock()
		err := e.vm.DoFile(path)
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source. It must not overlap Game.Advance;
// class() inside it fails once the engine is sealed.
func (e *Engine) DoString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// Classes returns the names of the classes defined by scripts.
func (e *Engine) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.classes))
	for name := range e.classes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Seal closes class definitions. Call it before the first frame.
func (e *Engine) Seal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sealed = true
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// luaClass implements class(name, { update = fn, collide = fn }). Keys that
// are absent withdraw a previous definition.
func (e *Engine) luaClass(L *lua.LState) int {
	name := L.CheckString(1)
	def := L.CheckTable(2)
	if e.sealed || e.inCall {
		L.RaiseError("class %s: %s", name, ErrSealed)
	}
	reg := e.game.Registry()
	props := e.game.Props()
	c := reg.Class(name)

	var update scene.UpdateFunc
	if fn, ok := def.RawGetString("update").(*lua.LFunction); ok {
		update = func(s *scene.Scene, ent *ecs.Entity, t system.TickTime) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.call("update", fn, e.entity(s, ent), lua.LNumber(t.Seconds()))
		}
	}
	if err := ecs.Provide(reg, c, props.Update, update); err != nil {
		L.RaiseError("class %s: %s", name, err)
	}

	var collide scene.CollideFunc
	if fn, ok := def.RawGetString("collide").(*lua.LFunction); ok {
		collide = func(s *scene.Scene, self, other *ecs.Entity, mtv geom.Vec) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.call("collide", fn, e.entity(s, self), e.entity(s, other), lua.LNumber(mtv.X), lua.LNumber(mtv.Y))
		}
	}
	if err := ecs.Provide(reg, c, props.Collide, collide); err != nil {
		L.RaiseError("class %s: %s", name, err)
	}

	e.classes[name] = struct{}{}
	e.log.Debug("lua class defined", zap.String("class", name))
	return 0
}

// call runs a class callback with mu held. Errors are logged and the call
// does nothing.
func (e *Engine) call(what string, fn *lua.LFunction, args ...lua.LValue) {
	e.inCall = true
	defer func() { e.inCall = false }()
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua callback error", zap.String("callback", what), zap.Error(err))
	}
}
