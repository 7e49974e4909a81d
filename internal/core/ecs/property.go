package ecs

import "fmt"

// Property is a named, typed slot definition shared by every entity of a
// registry. Create with DefineProperty; the zero value is unusable.
type Property[T any] struct {
	name    string
	slot    int
	reg     *Registry
	factory func() T
}

func (p *Property[T]) Name() string { return p.name }
func (p *Property[T]) Slot() int    { return p.slot }

// Default builds a fresh default value.
func (p *Property[T]) Default() T {
	if p.factory == nil {
		var zero T
		return zero
	}
	return p.factory()
}

func (p *Property[T]) check(e *Entity) {
	if p == nil || p.reg == nil || p.reg != e.reg {
		name := "<nil>"
		if p != nil {
			name = p.name
		}
		panic(fmt.Errorf("%w: property %q used on entity %d", ErrUnregistered, name, e.id))
	}
}

// DefineProperty registers a property. factory may be nil, in which case
// the zero value of T is the default.
func DefineProperty[T any](reg *Registry, name string, factory func() T) (*Property[T], error) {
	slot, err := reg.addProperty(name)
	if err != nil {
		return nil, err
	}
	return &Property[T]{name: name, slot: slot, reg: reg, factory: factory}, nil
}

// MustDefineProperty is DefineProperty for package-level setup code.
func MustDefineProperty[T any](reg *Registry, name string, factory func() T) *Property[T] {
	p, err := DefineProperty(reg, name, factory)
	if err != nil {
		panic(err)
	}
	return p
}

// Get returns a pointer to e's slot for p, creating the default on first
// access. The pointer is stable for the life of the entity. Writing through
// it does not trigger watches; use Set or Touch for that.
func Get[T any](e *Entity, p *Property[T]) *T {
	p.check(e)
	if p.slot < len(e.slots) {
		if v := e.slots[p.slot]; v != nil {
			return v.(*T)
		}
	}
	v := p.Default()
	ptr := &v
	e.store(p.slot, ptr)
	return ptr
}

// Value is shorthand for *Get(e, p).
func Value[T any](e *Entity, p *Property[T]) T {
	return *Get(e, p)
}

// Set writes v into e's slot for p and notifies the owner.
func Set[T any](e *Entity, p *Property[T], v T) {
	p.check(e)
	if p.slot < len(e.slots) {
		if cur := e.slots[p.slot]; cur != nil {
			*cur.(*T) = v
			e.notify(p.slot)
			return
		}
	}
	ptr := new(T)
	*ptr = v
	e.store(p.slot, ptr)
	e.notify(p.slot)
}

// Touch notifies the owner that the slot was mutated in place.
func Touch[T any](e *Entity, p *Property[T]) {
	p.check(e)
	e.notify(p.slot)
}

// Has reports whether e's slot for p has been materialized.
func Has[T any](e *Entity, p *Property[T]) bool {
	p.check(e)
	return p.slot < len(e.slots) && e.slots[p.slot] != nil
}

func (e *Entity) store(slot int, v any) {
	if slot >= len(e.slots) {
		e.slots = append(e.slots, make([]any, slot+1-len(e.slots))...)
	}
	e.slots[slot] = v
}
