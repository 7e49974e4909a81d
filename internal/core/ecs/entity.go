package ecs

import "slices"

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

// EntityPool manages ID allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) Create() EntityID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

// Destroy retires id. Returns false if id was already stale.
func (p *EntityPool) Destroy(id EntityID) bool {
	if !p.Alive(id) {
		return false
	}
	idx := id.Index()
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
	return true
}

// Owner is notified whenever a property slot of an owned entity is written.
// A scene is the owner of the entities it contains.
type Owner interface {
	PropertyChanged(e *Entity, slot int)
}

// Entity is an identity with a sparse set of property slots and an ordered
// class list used for behavior resolution.
//
// Entities are not safe for concurrent use; an entity is only touched from
// the goroutine advancing the scene that owns it.
type Entity struct {
	id        EntityID
	reg       *Registry
	slots     []any // slot id -> *T, nil until first access
	classes   []string
	resolved  []resolution // behavior id -> cached resolution
	owner     Owner
	destroyed bool
}

type resolution struct {
	ok   bool
	impl any
}

func newEntity(id EntityID, reg *Registry) *Entity {
	return &Entity{id: id, reg: reg}
}

func (e *Entity) ID() EntityID        { return e.id }
func (e *Entity) Registry() *Registry { return e.reg }
func (e *Entity) Owner() Owner        { return e.owner }
func (e *Entity) Destroyed() bool     { return e.destroyed }

// SetOwner attaches e to o (nil detaches). Callers are responsible for
// removing e from its previous owner first.
func (e *Entity) SetOwner(o Owner) { e.owner = o }

func (e *Entity) markDestroyed() {
	e.destroyed = true
	e.owner = nil
	e.slots = nil
	e.resolved = nil
}

// Classes returns a copy of the class list, most specific first.
func (e *Entity) Classes() []string {
	return slices.Clone(e.classes)
}

// HasClass reports whether name is anywhere in the class list.
func (e *Entity) HasClass(name string) bool {
	return slices.Contains(e.classes, name)
}

// AddClass puts name at the front of the class list so its definitions
// take precedence over every class added before it.
func (e *Entity) AddClass(name string) {
	e.classes = slices.Insert(e.classes, 0, name)
	e.invalidate()
}

// RemoveClass removes every occurrence of name.
func (e *Entity) RemoveClass(name string) {
	n := len(e.classes)
	e.classes = slices.DeleteFunc(e.classes, func(c string) bool { return c == name })
	if len(e.classes) != n {
		e.invalidate()
	}
}

// invalidate drops all cached behavior resolutions; a class change can
// affect any behavior, not just one.
func (e *Entity) invalidate() {
	clear(e.resolved)
}

func (e *Entity) notify(slot int) {
	if e.owner != nil {
		e.owner.PropertyChanged(e, slot)
	}
}
