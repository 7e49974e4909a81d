package data

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/scene"
	"gopkg.in/yaml.v3"
)

// Point is an [x, y] pair.
type Point [2]float64

func (p Point) Vec() geom.Vec { return geom.Vec{X: p[0], Y: p[1]} }

type BoxShape struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

type CircleShape struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	R     float64 `yaml:"r"`
	Sides int     `yaml:"sides"` // 0 = collision.DefaultCircleSides
}

// ShapeEntry describes a collision shape local to the entity position.
// Exactly one of the fields is set.
type ShapeEntry struct {
	Box     *BoxShape    `yaml:"box"`
	Circle  *CircleShape `yaml:"circle"`
	Polygon []Point      `yaml:"polygon"`
	Parts   []ShapeEntry `yaml:"parts"`
}

// Build turns the entry into a collision shape.
func (s *ShapeEntry) Build() (collision.Shape, error) {
	kinds := 0
	for _, set := range []bool{s.Box != nil, s.Circle != nil, s.Polygon != nil, s.Parts != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, errors.New("shape must set exactly one of box, circle, polygon, parts")
	}
	switch {
	case s.Box != nil:
		return collision.Box(geom.Rect{X: s.Box.X, Y: s.Box.Y, W: s.Box.W, H: s.Box.H}), nil
	case s.Circle != nil:
		if !(s.Circle.R > 0) {
			return nil, fmt.Errorf("circle radius must be positive, got %v", s.Circle.R)
		}
		return collision.Circle(geom.Vec{X: s.Circle.X, Y: s.Circle.Y}, s.Circle.R, s.Circle.Sides), nil
	case s.Polygon != nil:
		if len(s.Polygon) < 3 {
			return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(s.Polygon))
		}
		pts := make([]geom.Vec, len(s.Polygon))
		for i, p := range s.Polygon {
			pts[i] = p.Vec()
		}
		return collision.NewPolygon(pts), nil
	default:
		c := &collision.Composite{Parts: make([]collision.Shape, len(s.Parts))}
		for i := range s.Parts {
			part, err := s.Parts[i].Build()
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", i, err)
			}
			c.Parts[i] = part
		}
		return c, nil
	}
}

// EntityEntry is one entity placed in a scene.
type EntityEntry struct {
	Name     string      `yaml:"name"`
	Classes  []string    `yaml:"classes"` // most specific first
	Position Point       `yaml:"position"`
	Velocity Point       `yaml:"velocity"`
	Sprite   *int32      `yaml:"sprite"`
	Z        int32       `yaml:"z"`
	Shape    *ShapeEntry `yaml:"shape"`

	built collision.Shape
}

type SceneEntry struct {
	Name     string        `yaml:"name"`
	Entities []EntityEntry `yaml:"entities"`
}

// SceneTable is the content of a scene file.
type SceneTable struct {
	Scenes []SceneEntry `yaml:"scenes"`
}

// LoadSceneTable loads and checks a scene file.
func LoadSceneTable(path string) (*SceneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	t, err := ParseSceneTable(raw)
	if err != nil {
		return nil, fmt.Errorf("parse scene file %s: %w", path, err)
	}
	return t, nil
}

// ParseSceneTable decodes scene YAML and builds every shape up front so
// errors surface at load time.
func ParseSceneTable(raw []byte) (*SceneTable, error) {
	t := &SceneTable{}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(t.Scenes))
	for si := range t.Scenes {
		sc := &t.Scenes[si]
		if sc.Name == "" {
			return nil, fmt.Errorf("scene %d: missing name", si)
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("scene %q: defined twice", sc.Name)
		}
		seen[sc.Name] = true
		for ei := range sc.Entities {
			ent := &sc.Entities[ei]
			if ent.Shape == nil {
				continue
			}
			shape, err := ent.Shape.Build()
			if err != nil {
				return nil, fmt.Errorf("scene %q entity %d (%s): %w", sc.Name, ei, ent.Name, err)
			}
			ent.built = shape
		}
	}
	return t, nil
}

// Count returns the total number of entities in the table.
func (t *SceneTable) Count() int {
	n := 0
	for _, sc := range t.Scenes {
		n += len(sc.Entities)
	}
	return n
}

// Without returns a copy of the table minus the named scenes.
func (t *SceneTable) Without(names ...string) *SceneTable {
	out := &SceneTable{Scenes: make([]SceneEntry, 0, len(t.Scenes))}
	for _, sc := range t.Scenes {
		if !slices.Contains(names, sc.Name) {
			out.Scenes = append(out.Scenes, sc)
		}
	}
	return out
}

// Spawn creates the table's scenes in g (reusing scenes that already
// exist) and populates them. It returns the number of entities created.
func Spawn(g *scene.Game, t *SceneTable) (int, error) {
	p := g.Props()
	n := 0
	for si := range t.Scenes {
		entry := &t.Scenes[si]
		s, ok := g.Scene(entry.Name)
		if !ok {
			var err error
			if s, err = g.NewScene(entry.Name); err != nil {
				return n, err
			}
		}
		for ei := range entry.Entities {
			ent := &entry.Entities[ei]
			e := g.NewEntity()
			ecs.Set(e, p.Name, ent.Name)
			ecs.Set(e, p.Position, ent.Position.Vec())
			if ent.Velocity != (Point{}) {
				ecs.Set(e, p.Velocity, ent.Velocity.Vec())
			}
			if ent.Sprite != nil {
				ecs.Set(e, p.Sprite, *ent.Sprite)
			}
			ecs.Set(e, p.ZIndex, ent.Z)
			if ent.built != nil {
				ecs.Set(e, p.Shape, ent.built)
			}
			for i := len(ent.Classes) - 1; i >= 0; i-- {
				e.AddClass(ent.Classes[i])
			}
			s.Add(e)
			n++
		}
	}
	return n, nil
}
