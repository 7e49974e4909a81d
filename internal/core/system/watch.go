package system

import "github.com/tame2d/engine/internal/core/ecs"

type watchState struct {
	pending []*ecs.Entity
	queued  map[*ecs.Entity]struct{}
	drain   func()
}

func (w *watchState) mark(e *ecs.Entity) {
	if _, ok := w.queued[e]; ok {
		return
	}
	w.queued[e] = struct{}{}
	w.pending = append(w.pending, e)
}

// take hands back the pending batch and resets the queue. Writes made by
// the callback itself are queued for the next run.
func (w *watchState) take() []*ecs.Entity {
	batch := w.pending
	w.pending = nil
	clear(w.queued)
	return batch
}

// Watch is a registered property watch.
type Watch struct {
	*Handle
	state *watchState
	slot  int
}

// Cancel unregisters the watch and drops anything still pending.
func (w *Watch) Cancel() {
	if w == nil || w.e.removed {
		return
	}
	w.Handle.Cancel()
	ws := w.s.watches[w.slot]
	for i, st := range ws {
		if st == w.state {
			w.s.watches[w.slot] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	w.state.take()
}

// Pending returns how many entities are queued for the next run.
func (w *Watch) Pending() int { return len(w.state.pending) }

// Flush runs the callback for everything queued so far, outside the
// normal pass order.
func (w *Watch) Flush() {
	if w.e.removed {
		return
	}
	w.state.drain()
}

// WatchProperty calls fn with the current value for every entity whose prop
// was written since the watch last ran, once per entity, during pass.
// Destroyed entities are skipped.
func WatchProperty[T any](s *Scheduler, prop *ecs.Property[T], pass Pass, priority int, fn func(e *ecs.Entity, v T)) *Watch {
	st := &watchState{queued: make(map[*ecs.Entity]struct{})}
	st.drain = func() {
		for _, e := range st.take() {
			if e.Destroyed() {
				continue
			}
			fn(e, ecs.Value(e, prop))
		}
	}
	h := s.Func(pass, priority, func(TickTime) { st.drain() })
	s.watches[prop.Slot()] = append(s.watches[prop.Slot()], st)
	return &Watch{Handle: h, state: st, slot: prop.Slot()}
}
