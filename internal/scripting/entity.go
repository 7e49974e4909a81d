package scripting

import (
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/scene"
	lua "github.com/yuin/gopher-lua"
)

const entityTypeName = "entity"

// entityRef is the Go value behind an entity userdata.
type entityRef struct {
	scene *scene.Scene
	e     *ecs.Entity
}

func (e *Engine) registerEntityType() {
	mt := e.vm.NewTypeMetatable(entityTypeName)
	e.vm.SetField(mt, "__index", e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"id":           entityID,
		"name":         e.entityName,
		"position":     e.vecGetter(func(p *scene.Props) *ecs.Property[geom.Vec] { return p.Position }),
		"set_position": e.vecSetter(func(p *scene.Props) *ecs.Property[geom.Vec] { return p.Position }),
		"velocity":     e.vecGetter(func(p *scene.Props) *ecs.Property[geom.Vec] { return p.Velocity }),
		"set_velocity": e.vecSetter(func(p *scene.Props) *ecs.Property[geom.Vec] { return p.Velocity }),
		"has_class":    entityHasClass,
		"add_class":    entityAddClass,
		"remove_class": entityRemoveClass,
		"destroy":      entityDestroy,
	}))
}

func (e *Engine) entity(s *scene.Scene, ent *ecs.Entity) *lua.LUserData {
	ud := e.vm.NewUserData()
	ud.Value = &entityRef{scene: s, e: ent}
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(entityTypeName))
	return ud
}

func checkEntity(L *lua.LState) *entityRef {
	ud := L.CheckUserData(1)
	if ref, ok := ud.Value.(*entityRef); ok {
		return ref
	}
	L.ArgError(1, "entity expected")
	return nil
}

func entityID(L *lua.LState) int {
	ref := checkEntity(L)
	L.Push(lua.LNumber(ref.e.ID()))
	return 1
}

func (e *Engine) entityName(L *lua.LState) int {
	ref := checkEntity(L)
	L.Push(lua.LString(ecs.Value(ref.e, e.game.Props().Name)))
	return 1
}

func (e *Engine) vecGetter(prop func(*scene.Props) *ecs.Property[geom.Vec]) lua.LGFunction {
	return func(L *lua.LState) int {
		ref := checkEntity(L)
		v := ecs.Value(ref.e, prop(e.game.Props()))
		L.Push(lua.LNumber(v.X))
		L.Push(lua.LNumber(v.Y))
		return 2
	}
}

func (e *Engine) vecSetter(prop func(*scene.Props) *ecs.Property[geom.Vec]) lua.LGFunction {
	return func(L *lua.LState) int {
		ref := checkEntity(L)
		v := geom.Vec{X: float64(L.CheckNumber(2)), Y: float64(L.CheckNumber(3))}
		ecs.Set(ref.e, prop(e.game.Props()), v)
		return 0
	}
}

func entityHasClass(L *lua.LState) int {
	ref := checkEntity(L)
	L.Push(lua.LBool(ref.e.HasClass(L.CheckString(2))))
	return 1
}

func entityAddClass(L *lua.LState) int {
	ref := checkEntity(L)
	ref.e.AddClass(L.CheckString(2))
	return 0
}

func entityRemoveClass(L *lua.LState) int {
	ref := checkEntity(L)
	ref.e.RemoveClass(L.CheckString(2))
	return 0
}

func entityDestroy(L *lua.LState) int {
	ref := checkEntity(L)
	ref.scene.Destroy(ref.e)
	return 0
}
