package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tame2d/engine/internal/scene"
	"go.uber.org/zap"
)

// Store is the snapshot storage used by Autosaver. SnapshotRepo implements it.
type Store interface {
	Save(ctx context.Context, scene string, id uuid.UUID, digest uint64, rows []EntityRow) error
	Load(ctx context.Context, scene string) ([]EntityRow, error)
	Scenes(ctx context.Context) ([]string, error)
	Digests(ctx context.Context) (map[string]uint64, error)
}

// Autosaver snapshots every scene of a game. It must run on the goroutine
// that advances the game, between frames.
type Autosaver struct {
	store   Store
	game    *scene.Game
	log     *zap.Logger
	timeout time.Duration
	saved   map[string]uint64 // digest of the last stored snapshot
}

func NewAutosaver(ctx context.Context, store Store, game *scene.Game, log *zap.Logger) (*Autosaver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	saved, err := store.Digests(ctx)
	if err != nil {
		return nil, fmt.Errorf("load digests: %w", err)
	}
	return &Autosaver{
		store:   store,
		game:    game,
		log:     log,
		timeout: 5 * time.Second,
		saved:   saved,
	}, nil
}

// RestoreAll recreates every saved scene in the game and returns the names
// restored. Scenes already present in the game receive the saved entities
// in addition to their own.
func (a *Autosaver) RestoreAll(ctx context.Context) ([]string, error) {
	names, err := a.store.Scenes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	for _, name := range names {
		rows, err := a.store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", name, err)
		}
		s, ok := a.game.Scene(name)
		if !ok {
			if s, err = a.game.NewScene(name); err != nil {
				return nil, err
			}
		}
		if err := Restore(s, rows); err != nil {
			return nil, fmt.Errorf("restore %s: %w", name, err)
		}
		a.log.Info("scene restored", zap.String("scene", name), zap.Int("entities", len(rows)))
	}
	return names, nil
}

// SaveAll stores every scene whose content changed since its last save, or
// every scene when force is set. It returns the number of scenes written.
func (a *Autosaver) SaveAll(ctx context.Context, force bool) (int, error) {
	var errs []error
	count := 0
	for _, s := range a.game.Scenes() {
		rows, err := Capture(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("capture %s: %w", s.Name(), err))
			continue
		}
		digest, err := Digest(rows)
		if err != nil {
			errs = append(errs, fmt.Errorf("digest %s: %w", s.Name(), err))
			continue
		}
		if last, ok := a.saved[s.Name()]; ok && last == digest && !force {
			continue
		}
		saveCtx, cancel := context.WithTimeout(ctx, a.timeout)
		err = a.store.Save(saveCtx, s.Name(), s.ID(), digest, rows)
		cancel()
		if err != nil {
			a.log.Error("scene autosave failed", zap.String("scene", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("save %s: %w", s.Name(), err))
			continue
		}
		a.saved[s.Name()] = digest
		count++
	}
	if count > 0 {
		a.log.Info("autosave complete", zap.Int("scenes", count))
	}
	return count, errors.Join(errs...)
}
