package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIsStableByZ(t *testing.T) {
	var q Queue
	q.Add(3, ActionSprite, []int32{30}, nil)
	q.Add(1, ActionSprite, []int32{10}, nil)
	q.Add(2, ActionSprite, []int32{20}, nil)
	q.Add(1, ActionSprite, []int32{11}, nil)

	var got []int32
	q.Render(func(c Command) { got = append(got, c.Ints[0]) })
	require.Equal(t, []int32{10, 11, 20, 30}, got)
}

func TestArgumentsAreCopied(t *testing.T) {
	var q Queue
	ints := []int32{1, 2}
	floats := []float64{0.5, 1.5, 2.5}
	q.Add(0, ActionLine, ints, floats)
	ints[0] = 99
	floats[0] = 99

	q.Render(func(c Command) {
		assert.Equal(t, ActionLine, c.Action)
		assert.Equal(t, []int32{1, 2}, c.Ints)
		assert.Equal(t, []float64{0.5, 1.5, 2.5}, c.Floats)
	})
}

func TestClear(t *testing.T) {
	var q Queue
	q.Clear()
	q.Clear()
	require.Zero(t, q.Len())

	q.Add(1, ActionRect, []int32{0xff}, []float64{0, 0, 1, 1})
	require.Equal(t, 1, q.Len())
	q.Clear()
	require.Zero(t, q.Len())

	visited := 0
	q.Render(func(Command) { visited++ })
	require.Zero(t, visited)
}

func TestMutationDuringFlushPanics(t *testing.T) {
	var q Queue
	q.Add(0, ActionClear, nil, nil)

	require.PanicsWithValue(t, ErrFlushing, func() {
		q.Render(func(Command) { q.Add(1, ActionClear, nil, nil) })
	})
	require.PanicsWithValue(t, ErrFlushing, func() {
		q.Render(func(Command) { q.Clear() })
	})
	require.PanicsWithValue(t, ErrFlushing, func() {
		q.Render(func(Command) { q.Render(func(Command) {}) })
	})

	// The queue is usable again once the flush has unwound.
	q.Clear()
	q.Add(0, ActionClear, nil, nil)
	require.Equal(t, 1, q.Len())
}

func TestFrameRoundTrip(t *testing.T) {
	var q Queue
	q.Add(5, ActionText, []int32{1, 0xffffffff >> 1, 'h', 'i'}, []float64{10, 20, 12})
	q.Add(-1, ActionCamera, nil, []float64{0, 0, 2, 0})
	q.Add(5, ActionSprite, []int32{7, 0}, []float64{1, 2, 0, 1})

	f := q.Frame()
	require.Equal(t, 3, f.Len())
	require.Equal(t, []int32{-1, 5, 5}, f.Z)

	b, err := EncodeFrame(f)
	require.NoError(t, err)
	decoded, err := DecodeFrame(b)
	require.NoError(t, err)

	var actions []Action
	var ints [][]int32
	require.NoError(t, decoded.Commands(func(c Command) {
		actions = append(actions, c.Action)
		ints = append(ints, append([]int32{}, c.Ints...))
	}))
	assert.Equal(t, []Action{ActionCamera, ActionText, ActionSprite}, actions)
	assert.Equal(t, [][]int32{{}, {1, 0x7fffffff, 'h', 'i'}, {7, 0}}, ints)
	assert.Equal(t, f.Floats, decoded.Floats)
}

func TestFrameLongCommand(t *testing.T) {
	long := make([]int32, 70000)
	long[len(long)-1] = 'z'
	var q Queue
	q.Add(0, ActionText, long, []float64{0, 0, 12})
	q.Add(1, ActionSprite, []int32{7, 0}, []float64{1, 2, 0, 1})

	b, err := EncodeFrame(q.Frame())
	require.NoError(t, err)
	f, err := DecodeFrame(b)
	require.NoError(t, err)

	var ints [][]int32
	require.NoError(t, f.Commands(func(c Command) {
		ints = append(ints, c.Ints)
	}))
	require.Len(t, ints, 2)
	assert.Len(t, ints[0], 70000)
	assert.Equal(t, int32('z'), ints[0][69999])
	assert.Equal(t, []int32{7, 0}, ints[1])
}

func TestFrameCommandsRejectsBadCounts(t *testing.T) {
	f := Frame{
		Z:       []int32{0},
		Actions: []uint8{uint8(ActionRect)},
		NInts:   []uint32{4},
		NFloats: []uint32{0},
		Ints:    []int32{1},
	}
	require.Error(t, f.Commands(func(Command) {}))

	f.NInts = []uint32{0}
	require.Error(t, f.Commands(func(Command) {}), "leftover ints")

	f.NInts = nil
	require.Error(t, f.Commands(func(Command) {}))

	_, err := DecodeFrame([]byte{0xc1})
	require.Error(t, err)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "sprite", ActionSprite.String())
	assert.Equal(t, "action(42)", Action(42).String())
}
