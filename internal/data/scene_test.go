package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tame2d/engine/internal/collision"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/scene"
)

const arena = `
scenes:
  - name: arena
    entities:
      - name: floor
        classes: [solid]
        position: [0, 100]
        shape:
          box: {w: 200, h: 10}
      - name: ball
        classes: [bounce, glow]
        position: [50, 20]
        velocity: [0, 30]
        sprite: 4
        z: 2
        shape:
          circle: {r: 5, sides: 12}
      - name: tag
  - name: menu
    entities:
      - name: cursor
        shape:
          parts:
            - polygon: [[0, 0], [4, 0], [0, 4]]
            - box: {x: 4, w: 2, h: 2}
`

func TestParseAndSpawn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(arena), 0o644))
	table, err := LoadSceneTable(path)
	require.NoError(t, err)
	require.Len(t, table.Scenes, 2)
	require.Equal(t, 4, table.Count())

	g, err := scene.NewGame(scene.Config{}, nil)
	require.NoError(t, err)
	n, err := Spawn(g, table)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	a, ok := g.Scene("arena")
	require.True(t, ok)
	require.Equal(t, 3, a.Len())
	require.Equal(t, 2, a.Space().Len(), "tag has no shape")

	p := g.Props()
	var ball *ecs.Entity
	for _, e := range a.Entities() {
		if ecs.Value(e, p.Name) == "ball" {
			ball = e
		}
	}
	require.NotNil(t, ball)
	assert.Equal(t, []string{"bounce", "glow"}, ball.Classes())
	assert.Equal(t, geom.Vec{X: 50, Y: 20}, ecs.Value(ball, p.Position))
	assert.Equal(t, geom.Vec{Y: 30}, ecs.Value(ball, p.Velocity))
	assert.Equal(t, int32(4), ecs.Value(ball, p.Sprite))
	assert.Equal(t, int32(2), ecs.Value(ball, p.ZIndex))
	assert.Len(t, ecs.Value(ball, p.Shape).(*collision.Polygon).Points(), 12)

	m, ok := g.Scene("menu")
	require.True(t, ok)
	cursor := m.Entities()[0]
	assert.Equal(t, scene.NoSprite, ecs.Value(cursor, p.Sprite))
	composite, ok := ecs.Value(cursor, p.Shape).(*collision.Composite)
	require.True(t, ok)
	assert.Len(t, composite.Parts, 2)
	assert.Equal(t, geom.Rect{W: 6, H: 4}, composite.Bounds())

	// Spawning again reuses the existing scenes.
	_, err = Spawn(g, table)
	require.NoError(t, err)
	assert.Len(t, g.Scenes(), 2)
	assert.Equal(t, 6, a.Len())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate scene", "scenes: [{name: a}, {name: a}]"},
		{"missing name", "scenes: [{entities: []}]"},
		{"two shape kinds", "scenes: [{name: a, entities: [{shape: {box: {w: 1, h: 1}, circle: {r: 1}}}]}]"},
		{"empty shape", "scenes: [{name: a, entities: [{shape: {}}]}]"},
		{"flat polygon", "scenes: [{name: a, entities: [{shape: {polygon: [[0, 0], [1, 1]]}}]}]"},
		{"bad circle", "scenes: [{name: a, entities: [{shape: {circle: {r: 0}}}]}]"},
		{"bad part", "scenes: [{name: a, entities: [{shape: {parts: [{}]}}]}]"},
		{"not yaml", "scenes: [name: {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSceneTable([]byte(tt.yaml))
			require.Error(t, err)
		})
	}

	_, err := LoadSceneTable(filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithout(t *testing.T) {
	table, err := ParseSceneTable([]byte(arena))
	require.NoError(t, err)
	rest := table.Without("arena")
	require.Len(t, rest.Scenes, 1)
	assert.Equal(t, "menu", rest.Scenes[0].Name)
	assert.Len(t, table.Scenes, 2)

	g, err := scene.NewGame(scene.Config{}, nil)
	require.NoError(t, err)
	n, err := Spawn(g, rest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	m, _ := g.Scene("menu")
	assert.Equal(t, 1, m.Space().Len(), "shape survives the copy")
}
