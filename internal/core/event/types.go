package event

import (
	"time"

	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/geom"
)

// Contact records a confirmed collision. MTV separates A from B.
type Contact struct {
	Scene string
	A, B  ecs.EntityID
	MTV   geom.Vec
}

// CatchupDropped is emitted when a scene's fixed-rate clock discarded
// simulation time after a stall.
type CatchupDropped struct {
	Scene   string
	Ticks   uint64
	Dropped time.Duration
}

// EntityDestroyed is emitted when a scene's cleanup pass retires an entity.
type EntityDestroyed struct {
	Scene    string
	EntityID ecs.EntityID
}
