package persist

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/scene"
	"github.com/vmihailenco/msgpack/v5"
)

// EntityRow is the saved form of one scene entity.
type EntityRow struct {
	Name     string   `msgpack:"n"`
	Classes  []string `msgpack:"c"` // most specific first
	Position geom.Vec `msgpack:"p"`
	Velocity geom.Vec `msgpack:"v"`
	Sprite   int32    `msgpack:"s"`
	ZIndex   int32    `msgpack:"z"`
	Shape    []byte   `msgpack:"sh"` // EncodeShape output, nil for no shape
}

// Capture snapshots every live entity of s in scene order.
func Capture(s *scene.Scene) ([]EntityRow, error) {
	p := s.Props()
	var rows []EntityRow
	var err error
	s.Each(func(e *ecs.Entity) {
		if err != nil {
			return
		}
		row := EntityRow{
			Name:     ecs.Value(e, p.Name),
			Classes:  append([]string{}, e.Classes()...),
			Position: ecs.Value(e, p.Position),
			Velocity: ecs.Value(e, p.Velocity),
			Sprite:   ecs.Value(e, p.Sprite),
			ZIndex:   ecs.Value(e, p.ZIndex),
		}
		if row.Shape, err = EncodeShape(ecs.Value(e, p.Shape)); err != nil {
			err = fmt.Errorf("entity %d: %w", e.ID(), err)
			return
		}
		rows = append(rows, row)
	})
	return rows, err
}

// Restore creates one entity per row in s.
func Restore(s *scene.Scene, rows []EntityRow) error {
	g := s.Game()
	p := s.Props()
	for i, row := range rows {
		shape, err := DecodeShape(row.Shape)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		e := g.NewEntity()
		ecs.Set(e, p.Name, row.Name)
		ecs.Set(e, p.Position, row.Position)
		if !row.Velocity.IsZero() {
			ecs.Set(e, p.Velocity, row.Velocity)
		}
		ecs.Set(e, p.Sprite, row.Sprite)
		ecs.Set(e, p.ZIndex, row.ZIndex)
		if shape != nil {
			ecs.Set(e, p.Shape, shape)
		}
		for j := len(row.Classes) - 1; j >= 0; j-- {
			e.AddClass(row.Classes[j])
		}
		s.Add(e)
	}
	return nil
}

// Digest hashes rows so unchanged scenes can skip a save.
func Digest(rows []EntityRow) (uint64, error) {
	raw, err := msgpack.Marshal(rows)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(raw), nil
}

// EncodeShape flattens a shape into its convex polygons. Composite nesting
// is not preserved; the flattened parts collide identically.
func EncodeShape(shape collision.Shape) ([]byte, error) {
	if shape == nil {
		return nil, nil
	}
	var polys [][]geom.Vec
	if err := flatten(shape, &polys); err != nil {
		return nil, err
	}
	return msgpack.Marshal(polys)
}

func flatten(shape collision.Shape, out *[][]geom.Vec) error {
	switch s := shape.(type) {
	case nil:
		return nil
	case *collision.Polygon:
		*out = append(*out, s.Points())
		return nil
	case *collision.Composite:
		for _, part := range s.Parts {
			if err := flatten(part, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported shape %T", shape)
	}
}

// DecodeShape reverses EncodeShape.
func DecodeShape(raw []byte) (collision.Shape, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var polys [][]geom.Vec
	if err := msgpack.Unmarshal(raw, &polys); err != nil {
		return nil, fmt.Errorf("decode shape: %w", err)
	}
	switch len(polys) {
	case 0:
		return nil, nil
	case 1:
		return collision.NewPolygon(polys[0]), nil
	}
	c := &collision.Composite{Parts: make([]collision.Shape, len(polys))}
	for i, pts := range polys {
		c.Parts[i] = collision.NewPolygon(pts)
	}
	return c, nil
}
