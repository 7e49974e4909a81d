// Package scene ties the simulation core together: a Game owns the entity
// world and the builtin definitions, each Scene owns its entities' spatial
// index, scheduler, event bus and render queue.
package scene

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tame2d/engine/internal/core/ecs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSceneExists is returned by NewScene for a name already in use.
var ErrSceneExists = errors.New("scene: name already in use")

// Game is the root of the simulation. Scenes are independent and are
// advanced in parallel.
type Game struct {
	mu     sync.RWMutex
	cfg    Config
	world  *ecs.World
	props  *Props
	scenes map[string]*Scene
	log    *zap.Logger
}

// NewGame validates cfg and registers the builtin definitions in its
// registry.
func NewGame(cfg Config, log *zap.Logger) (*Game, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	props, err := DefineBuiltins(cfg.Registry)
	if err != nil {
		return nil, err
	}
	return &Game{
		cfg:    cfg,
		world:  ecs.NewWorld(cfg.Registry),
		props:  props,
		scenes: make(map[string]*Scene),
		log:    log,
	}, nil
}

func (g *Game) Config() Config          { return g.cfg }
func (g *Game) World() *ecs.World       { return g.world }
func (g *Game) Registry() *ecs.Registry { return g.cfg.Registry }
func (g *Game) Props() *Props           { return g.props }

// NewEntity creates an entity that belongs to no scene yet.
func (g *Game) NewEntity() *ecs.Entity {
	return g.world.NewEntity()
}

// NewScene creates an empty scene.
func (g *Game) NewScene(name string) (*Scene, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.scenes[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrSceneExists, name)
	}
	s := newScene(g, name)
	g.scenes[name] = s
	g.log.Info("scene created", zap.String("scene", name), zap.String("id", s.id.String()))
	return s, nil
}

func (g *Game) Scene(name string) (*Scene, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.scenes[name]
	return s, ok
}

// Scenes returns every scene ordered by name.
func (g *Game) Scenes() []*Scene {
	g.mu.RLock()
	out := make([]*Scene, 0, len(g.scenes))
	for _, s := range g.scenes {
		out = append(out, s)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Advance runs one frame on every scene, each on its own goroutine. A scene
// that panics fails the frame with an error naming it; the other scenes
// still complete.
func (g *Game) Advance(ctx context.Context, elapsed time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var eg errgroup.Group
	for _, s := range g.Scenes() {
		s := s
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scene %s: %v", s.name, r)
				}
			}()
			s.Advance(elapsed)
			return nil
		})
	}
	return eg.Wait()
}
