// Package render holds the per-scene render queue: an append-only buffer of
// draw commands filled during simulation and flushed once per frame, in z
// order, to whatever renderer is attached to the host.
package render

import (
	"errors"
	"fmt"
	"sort"
)

// ErrFlushing is raised when the queue is mutated while it is being flushed.
var ErrFlushing = errors.New("render: queue mutated during flush")

// Action identifies a draw command. The set is closed and shared with the
// renderer; the queue does not interpret it.
type Action uint8

const (
	ActionClear  Action = iota // ints: rgba
	ActionCamera               // floats: x, y, zoom, rotation
	ActionSprite               // ints: sprite, frame; floats: x, y, rotation, scale
	ActionRect                 // ints: rgba; floats: x, y, w, h
	ActionLine                 // ints: rgba; floats: x0, y0, x1, y1, width
	ActionText                 // ints: font, rgba, codepoints...; floats: x, y, size
)

func (a Action) String() string {
	switch a {
	case ActionClear:
		return "clear"
	case ActionCamera:
		return "camera"
	case ActionSprite:
		return "sprite"
	case ActionRect:
		return "rect"
	case ActionLine:
		return "line"
	case ActionText:
		return "text"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// Command is one queued draw command. Ints and Floats alias the queue's
// buffers and are only valid during the visit that received them.
type Command struct {
	Z      int32
	Action Action
	Ints   []int32
	Floats []float64
}

type item struct {
	z            int32
	action       Action
	intOff, nInt int32
	fltOff, nFlt int32
}

// Queue stores commands as flat numeric arrays. Append is O(1); the z sort
// happens once, in Render.
type Queue struct {
	items    []item
	ints     []int32
	floats   []float64
	flushing bool
}

// Add appends a command. The argument slices are copied.
func (q *Queue) Add(z int32, action Action, ints []int32, floats []float64) {
	q.mutable()
	q.items = append(q.items, item{
		z:      z,
		action: action,
		intOff: int32(len(q.ints)),
		nInt:   int32(len(ints)),
		fltOff: int32(len(q.floats)),
		nFlt:   int32(len(floats)),
	})
	q.ints = append(q.ints, ints...)
	q.floats = append(q.floats, floats...)
}

// Clear empties the queue and keeps its buffers.
func (q *Queue) Clear() {
	q.mutable()
	q.items = q.items[:0]
	q.ints = q.ints[:0]
	q.floats = q.floats[:0]
}

func (q *Queue) Len() int { return len(q.items) }

// Render sorts the queue by ascending z, keeping submission order among
// equal z, and visits every command in that order. The queue must not be
// modified from visit.
func (q *Queue) Render(visit func(Command)) {
	q.mutable()
	q.flushing = true
	defer func() { q.flushing = false }()

	sort.SliceStable(q.items, func(i, j int) bool { return q.items[i].z < q.items[j].z })
	for _, it := range q.items {
		visit(Command{
			Z:      it.z,
			Action: it.action,
			Ints:   q.ints[it.intOff : it.intOff+it.nInt : it.intOff+it.nInt],
			Floats: q.floats[it.fltOff : it.fltOff+it.nFlt : it.fltOff+it.nFlt],
		})
	}
}

func (q *Queue) mutable() {
	if q.flushing {
		panic(ErrFlushing)
	}
}
