package scene

import (
	"fmt"

	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/system"
)

const (
	DefaultCellSize = 64
	DefaultTickRate = 60
)

// Config is handed to NewGame. The caller owns the registry; NewGame adds
// the builtin definitions to it. Zero values select the defaults.
type Config struct {
	Registry   *ecs.Registry
	CellSize   float64
	TickRate   int
	CatchupCap int
}

func (c Config) withDefaults() (Config, error) {
	if c.Registry == nil {
		c.Registry = ecs.NewRegistry()
	}
	if c.CellSize == 0 {
		c.CellSize = DefaultCellSize
	}
	if c.TickRate == 0 {
		c.TickRate = DefaultTickRate
	}
	if c.CatchupCap == 0 {
		c.CatchupCap = system.DefaultCatchupCap
	}
	if !(c.CellSize > 0) {
		return c, fmt.Errorf("scene: cell size must be positive, got %v", c.CellSize)
	}
	if c.TickRate < 0 {
		return c, fmt.Errorf("scene: tick rate must be positive, got %d", c.TickRate)
	}
	if c.CatchupCap < 0 {
		return c, fmt.Errorf("scene: catch-up cap must be positive, got %d", c.CatchupCap)
	}
	return c, nil
}
