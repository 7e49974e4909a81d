package system

import (
	"errors"
	"fmt"
	"time"
)

// Pass defines execution ordering within a single frame.
type Pass int

const (
	PassInput     Pass = iota // 0: deliver host messages and last frame's events
	PassImmediate             // 1: propagate property changes (presence, derived state)
	PassPhysics               // 2: fixed-rate motion + collision
	PassRender                // 3: append render commands
	PassCleanup               // 4: destroy queued entities

	passCount
)

func (p Pass) String() string {
	switch p {
	case PassInput:
		return "Input"
	case PassImmediate:
		return "Immediate"
	case PassPhysics:
		return "Physics"
	case PassRender:
		return "Render"
	case PassCleanup:
		return "Cleanup"
	default:
		return fmt.Sprintf("Pass(%d)", int(p))
	}
}

// ErrTimeReversed is raised when Advance is called with a negative interval.
var ErrTimeReversed = errors.New("system: clock moved backwards")

// TickTime is the clock window a handler is invoked for. For frame passes it
// is the wall interval of the frame; for fixed-rate handlers it is the
// simulation tick window.
type TickTime struct {
	Start time.Duration
	End   time.Duration
}

func (t TickTime) Delta() time.Duration { return t.End - t.Start }

// Seconds returns the window length in seconds, the unit motion uses.
func (t TickTime) Seconds() float64 { return t.Delta().Seconds() }

// System is the interface every pass handler implements.
type System interface {
	Pass() Pass
	Update(t TickTime)
}

// Prioritized systems run ordered by Priority within their pass (ascending).
// Systems without it run at priority 0.
type Prioritized interface {
	Priority() int
}
