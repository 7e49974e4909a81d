package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNoSnapshot is returned by Load for a scene that was never saved.
var ErrNoSnapshot = errors.New("no snapshot")

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save replaces the stored snapshot of a scene in a single transaction.
func (r *SnapshotRepo) Save(ctx context.Context, scene string, id uuid.UUID, digest uint64, rows []EntityRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO scene_snapshots (scene, scene_id, entities, digest, saved_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (scene) DO UPDATE
		 SET scene_id = EXCLUDED.scene_id, entities = EXCLUDED.entities,
		     digest = EXCLUDED.digest, saved_at = EXCLUDED.saved_at`,
		sceneArgs(scene, id, digest, len(rows))...,
	); err != nil {
		return fmt.Errorf("snapshot upsert: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM entity_snapshots WHERE scene = $1`, scene); err != nil {
		return fmt.Errorf("snapshot clear: %w", err)
	}
	for i, e := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO entity_snapshots (scene, idx, name, classes, x, y, vx, vy, sprite, z_index, shape)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			entityArgs(scene, i, e)...,
		); err != nil {
			return fmt.Errorf("snapshot insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// sceneArgs binds one scene_snapshots row.
func sceneArgs(scene string, id uuid.UUID, digest uint64, entities int) []any {
	return []any{scene, pgtype.UUID{Bytes: id, Valid: true}, int32(entities), int64(digest)}
}

// entityArgs binds one entity_snapshots row. classes is NOT NULL, so an
// entity without classes is stored as an empty array.
func entityArgs(scene string, idx int, e EntityRow) []any {
	classes := e.Classes
	if classes == nil {
		classes = []string{}
	}
	return []any{
		scene, int32(idx), e.Name, classes, e.Position.X, e.Position.Y,
		e.Velocity.X, e.Velocity.Y, e.Sprite, e.ZIndex, e.Shape,
	}
}

// Load returns the saved entities of a scene in their saved order.
func (r *SnapshotRepo) Load(ctx context.Context, scene string) ([]EntityRow, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT entities FROM scene_snapshots WHERE scene = $1`, scene,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, classes, x, y, vx, vy, sprite, z_index, shape
		 FROM entity_snapshots
		 WHERE scene = $1
		 ORDER BY idx`, scene,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]EntityRow, 0, n)
	for rows.Next() {
		var e EntityRow
		if err := rows.Scan(
			&e.Name, &e.Classes, &e.Position.X, &e.Position.Y,
			&e.Velocity.X, &e.Velocity.Y, &e.Sprite, &e.ZIndex, &e.Shape,
		); err != nil {
			return nil, err
		}
		if e.Classes == nil {
			e.Classes = []string{}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Scenes lists the names of every saved scene.
func (r *SnapshotRepo) Scenes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT scene FROM scene_snapshots ORDER BY scene`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Digests returns the stored digest per scene.
func (r *SnapshotRepo) Digests(ctx context.Context) (map[string]uint64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT scene, digest FROM scene_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var name string
		var d int64
		if err := rows.Scan(&name, &d); err != nil {
			return nil, err
		}
		out[name] = uint64(d)
	}
	return out, rows.Err()
}
