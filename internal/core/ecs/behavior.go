package ecs

import (
	"fmt"
	"reflect"
)

// Behavior is a named capability resolved per entity through its class list.
// When no class provides it, the neutral value is used.
type Behavior[T any] struct {
	name    string
	id      int
	reg     *Registry
	neutral T
}

func (b *Behavior[T]) Name() string { return b.name }

// DefineBehavior registers a behavior with its neutral default.
func DefineBehavior[T any](reg *Registry, name string, neutral T) (*Behavior[T], error) {
	id, err := reg.addBehavior(name)
	if err != nil {
		return nil, err
	}
	return &Behavior[T]{name: name, id: id, reg: reg, neutral: neutral}, nil
}

// Class is a tag that may carry concrete behavior definitions.
type Class struct {
	name  string
	impls map[int]any
}

func (c *Class) Name() string { return c.name }

// Provides reports whether the class defines behavior b.
func Provides[T any](c *Class, b *Behavior[T]) bool {
	_, ok := c.impls[b.id]
	return ok
}

// Provide installs impl as c's definition of b. A nil impl withdraws it.
// Entities that already cached a resolution keep it until their class list
// changes.
func Provide[T any](reg *Registry, c *Class, b *Behavior[T], impl T) error {
	if b == nil || b.reg != reg {
		return fmt.Errorf("%w: behavior for class %q", ErrUnregistered, c.name)
	}
	if reg.classes[c.name] != c {
		return fmt.Errorf("%w: class %q", ErrUnregistered, c.name)
	}
	if isNil(impl) {
		delete(c.impls, b.id)
		return nil
	}
	c.impls[b.id] = impl
	return nil
}

// Resolve returns the first definition of b found walking e's classes front
// to back, or b's neutral value.
func Resolve[T any](e *Entity, b *Behavior[T]) T {
	if b == nil || b.reg != e.reg {
		name := "<nil>"
		if b != nil {
			name = b.name
		}
		panic(fmt.Errorf("%w: behavior %q resolved on entity %d", ErrUnregistered, name, e.id))
	}
	if b.id < len(e.resolved) {
		if r := e.resolved[b.id]; r.ok {
			v, _ := r.impl.(T)
			return v
		}
	} else {
		e.resolved = append(e.resolved, make([]resolution, b.id+1-len(e.resolved))...)
	}

	impl := b.neutral
	for _, name := range e.classes {
		c := e.reg.classes[name]
		if c == nil {
			continue
		}
		if v, ok := c.impls[b.id]; ok {
			impl, _ = v.(T)
			break
		}
	}
	e.resolved[b.id] = resolution{ok: true, impl: impl}
	return impl
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// MustDefineBehavior is DefineBehavior for package-level setup code.
func MustDefineBehavior[T any](reg *Registry, name string, neutral T) *Behavior[T] {
	b, err := DefineBehavior(reg, name, neutral)
	if err != nil {
		panic(err)
	}
	return b
}
