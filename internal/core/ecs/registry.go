package ecs

import (
	"fmt"
	"sort"
)

// Registry holds every property, behavior and class definition known to a
// game. Definitions are added during setup; afterwards the registry is only
// read, so scenes advancing in parallel may share it.
type Registry struct {
	properties map[string]int
	behaviors  map[string]int
	classes    map[string]*Class
}

func NewRegistry() *Registry {
	return &Registry{
		properties: make(map[string]int, 32),
		behaviors:  make(map[string]int, 16),
		classes:    make(map[string]*Class, 16),
	}
}

func (r *Registry) addProperty(name string) (int, error) {
	if _, ok := r.properties[name]; ok {
		return 0, fmt.Errorf("%w: property %q", ErrDuplicateName, name)
	}
	slot := len(r.properties)
	r.properties[name] = slot
	return slot, nil
}

func (r *Registry) addBehavior(name string) (int, error) {
	if _, ok := r.behaviors[name]; ok {
		return 0, fmt.Errorf("%w: behavior %q", ErrDuplicateName, name)
	}
	id := len(r.behaviors)
	r.behaviors[name] = id
	return id, nil
}

// Class returns the class table for name, creating an empty one on first use.
func (r *Registry) Class(name string) *Class {
	c := r.classes[name]
	if c == nil {
		c = &Class{name: name, impls: make(map[int]any)}
		r.classes[name] = c
	}
	return c
}

// ClassNames lists every class table, sorted.
func (r *Registry) ClassNames() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
