package scene

import (
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/system"
)

// RenderSystem asks every entity's render behavior for its draw commands.
// PassRender. The queue is flushed by the host after the frame.
type RenderSystem struct {
	scene *Scene
}

func NewRenderSystem(s *Scene) *RenderSystem {
	return &RenderSystem{scene: s}
}

func (s *RenderSystem) Pass() system.Pass { return system.PassRender }

func (s *RenderSystem) Update(_ system.TickTime) {
	sc := s.scene
	sc.Each(func(e *ecs.Entity) {
		ecs.Resolve(e, sc.props.Render)(sc, e, &sc.queue)
	})
}
