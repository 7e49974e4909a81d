package ecs

import "sync"

// World is the top-level entity factory. It owns the ID pool and the
// definition registry. Entity creation and destruction are serialised so
// scenes running on different goroutines may spawn freely.
type World struct {
	mu       sync.Mutex
	pool     *EntityPool
	registry *Registry
}

func NewWorld(reg *Registry) *World {
	if reg == nil {
		reg = NewRegistry()
	}
	return &World{
		pool:     NewEntityPool(),
		registry: reg,
	}
}

func (w *World) Registry() *Registry { return w.registry }

func (w *World) NewEntity() *Entity {
	w.mu.Lock()
	id := w.pool.Create()
	w.mu.Unlock()
	return newEntity(id, w.registry)
}

func (w *World) Alive(id EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pool.Alive(id)
}

// Destroy retires e's ID and detaches it from its owner. Property slots are
// released with the entity. Returns false if e was already destroyed.
func (w *World) Destroy(e *Entity) bool {
	w.mu.Lock()
	ok := w.pool.Destroy(e.id)
	w.mu.Unlock()
	if ok {
		e.markDestroyed()
	}
	return ok
}
