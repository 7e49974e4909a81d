package scene

import (
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/event"
	"github.com/tame2d/engine/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred destruction queue at frame end.
// PassCleanup.
type CleanupSystem struct {
	scene   *Scene
	pending []*ecs.Entity
}

func NewCleanupSystem(s *Scene) *CleanupSystem {
	return &CleanupSystem{scene: s}
}

func (s *CleanupSystem) Pass() system.Pass { return system.PassCleanup }

func (s *CleanupSystem) queue(e *ecs.Entity) {
	s.pending = append(s.pending, e)
}

func (s *CleanupSystem) forget(e *ecs.Entity) {
	for i, p := range s.pending {
		if p == e {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *CleanupSystem) Update(_ system.TickTime) {
	if len(s.pending) == 0 {
		return
	}
	sc := s.scene
	batch := s.pending
	s.pending = nil
	for _, e := range batch {
		id := e.ID()
		if sc.remove(e) == nil {
			continue
		}
		sc.game.world.Destroy(e)
		event.Emit(sc.bus, event.EntityDestroyed{Scene: sc.name, EntityID: id})
	}
	sc.log.Debug("entities destroyed", zap.Int("count", len(batch)))
}
