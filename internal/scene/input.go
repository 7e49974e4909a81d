package scene

import "github.com/tame2d/engine/internal/core/system"

// InputSystem delivers the events emitted during the previous frame.
// PassInput.
type InputSystem struct {
	scene *Scene
}

func NewInputSystem(s *Scene) *InputSystem {
	return &InputSystem{scene: s}
}

func (s *InputSystem) Pass() system.Pass { return system.PassInput }

func (s *InputSystem) Update(_ system.TickTime) {
	s.scene.bus.SwapBuffers()
	s.scene.bus.DispatchAll()
}
