// Package space implements the recursive spatial index used for bounds
// queries and collision broad phase.
//
// Each Space is a uniform hashed grid. A placed item is either a leaf object
// or a child Space with its own bounds; queries descend into child spaces
// whose bounds overlap. Accessed only from the goroutine advancing the
// owning scene, no locks.
package space

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/tame2d/engine/internal/geom"
)

var (
	// ErrStaleRef is raised when a removed reference is used again.
	ErrStaleRef = errors.New("space: stale reference")
	// ErrForeignRef is raised when a reference is handed to a space that
	// neither holds it nor contains the space that does.
	ErrForeignRef = errors.New("space: reference belongs to another space")
)

// maxSpanCells is the cell count above which an item is kept in the
// oversize list instead of being linked into every cell it covers.
const maxSpanCells = 256

const cellLimit = 1 << 30

// stamps hands out query identifiers; a ref visited under the current
// stamp is not visited again by the same query.
var stamps atomic.Uint64

type cell struct {
	x, y int32
}

type span struct {
	min, max cell
}

func (sp span) count() int64 {
	return (int64(sp.max.x) - int64(sp.min.x) + 1) * (int64(sp.max.y) - int64(sp.min.y) + 1)
}

func (sp span) contains(c cell) bool {
	return c.x >= sp.min.x && c.x <= sp.max.x && c.y >= sp.min.y && c.y <= sp.max.y
}

// Ref is the handle of a placed object or subspace. It stays valid until
// removed; using it afterwards panics.
type Ref struct {
	space   *Space
	id      uint64
	bounds  geom.Rect
	payload any
	child   *Space
	span    span
	large   bool
	index   int // position in space.refs
	seen    uint64
	removed bool
}

func (r *Ref) Bounds() geom.Rect { return r.bounds }
func (r *Ref) Payload() any      { return r.payload }
func (r *Ref) Child() *Space     { return r.child }
func (r *Ref) Removed() bool     { return r.removed }

// Space returns the space directly holding r.
func (r *Ref) Space() *Space { return r.space }

// Remove takes r out of whichever space holds it.
func (r *Ref) Remove() {
	r.check()
	r.space.detach(r)
}

// Move relocates r within the space that holds it.
func (r *Ref) Move(b geom.Rect) {
	r.check()
	r.space.relocate(r, b)
}

func (r *Ref) check() {
	if r == nil {
		panic(fmt.Errorf("%w: nil ref", ErrStaleRef))
	}
	if r.removed {
		panic(fmt.Errorf("%w: ref %d", ErrStaleRef, r.id))
	}
}

// Space is one level of the index.
type Space struct {
	cellSize float64
	cells    map[cell][]*Ref
	large    []*Ref
	refs     []*Ref
	owner    *Ref // placement in the parent space, nil at the root
	nextID   uint64
	bufs     [][]*Ref
}

// New creates an empty space with square cells of cellSize world units.
func New(cellSize float64) *Space {
	if !(cellSize > 0) {
		panic(fmt.Sprintf("space: cell size must be positive, got %v", cellSize))
	}
	return &Space{
		cellSize: cellSize,
		cells:    make(map[cell][]*Ref),
	}
}

func (s *Space) CellSize() float64 { return s.cellSize }

// Len returns the number of items placed directly in s.
func (s *Space) Len() int { return len(s.refs) }

// Parent returns the space s is placed in, or nil.
func (s *Space) Parent() *Space {
	if s.owner == nil {
		return nil
	}
	return s.owner.space
}

// AddObject places a leaf object.
func (s *Space) AddObject(b geom.Rect, payload any) *Ref {
	r := &Ref{bounds: b, payload: payload}
	s.attach(r)
	return r
}

// AddSpace places child as a subspace covering b. A space can be placed in
// at most one parent.
func (s *Space) AddSpace(b geom.Rect, child *Space) *Ref {
	if child == nil {
		panic("space: nil subspace")
	}
	if child.owner != nil {
		panic("space: subspace is already placed")
	}
	for p := s; p != nil; p = p.Parent() {
		if p == child {
			panic("space: placing a space inside itself")
		}
	}
	r := &Ref{bounds: b, child: child}
	s.attach(r)
	child.owner = r
	return r
}

// Remove takes r out of the index. r must be held by s or one of its
// descendants.
func (s *Space) Remove(r *Ref) {
	s.own(r)
	r.space.detach(r)
}

// Move relocates r. r must be held by s or one of its descendants.
func (s *Space) Move(r *Ref, b geom.Rect) {
	s.own(r)
	r.space.relocate(r, b)
}

func (s *Space) own(r *Ref) {
	r.check()
	for p := r.space; p != nil; p = p.Parent() {
		if p == s {
			return
		}
	}
	panic(fmt.Errorf("%w: ref %d", ErrForeignRef, r.id))
}

func (s *Space) attach(r *Ref) {
	s.nextID++
	r.space = s
	r.id = s.nextID
	r.index = len(s.refs)
	s.refs = append(s.refs, r)
	s.link(r)
}

func (s *Space) detach(r *Ref) {
	s.unlink(r)
	last := len(s.refs) - 1
	moved := s.refs[last]
	s.refs[r.index] = moved
	moved.index = r.index
	s.refs[last] = nil
	s.refs = s.refs[:last]
	r.removed = true
	if r.child != nil {
		r.child.owner = nil
	}
}

// relocate only rewrites bounds when the covered cells are unchanged,
// which is the common case for small per-tick displacements.
func (s *Space) relocate(r *Ref, b geom.Rect) {
	sp := s.spanOf(b)
	if !r.large && sp == r.span && sp.count() <= maxSpanCells {
		r.bounds = b
		return
	}
	s.unlink(r)
	r.bounds = b
	s.link(r)
}

func (s *Space) link(r *Ref) {
	r.span = s.spanOf(r.bounds)
	if r.span.count() > maxSpanCells {
		r.large = true
		s.large = append(s.large, r)
		return
	}
	r.large = false
	for y := r.span.min.y; y <= r.span.max.y; y++ {
		for x := r.span.min.x; x <= r.span.max.x; x++ {
			c := cell{x, y}
			s.cells[c] = append(s.cells[c], r)
		}
	}
}

func (s *Space) unlink(r *Ref) {
	if r.large {
		s.large = removeRef(s.large, r)
		return
	}
	for y := r.span.min.y; y <= r.span.max.y; y++ {
		for x := r.span.min.x; x <= r.span.max.x; x++ {
			c := cell{x, y}
			list := removeRef(s.cells[c], r)
			if len(list) == 0 {
				delete(s.cells, c)
			} else {
				s.cells[c] = list
			}
		}
	}
}

func removeRef(list []*Ref, r *Ref) []*Ref {
	for i, x := range list {
		if x == r {
			last := len(list) - 1
			list[i] = list[last]
			list[last] = nil
			return list[:last]
		}
	}
	return list
}

func (s *Space) toCell(v float64) int32 {
	c := math.Floor(v / s.cellSize)
	if c < -cellLimit {
		return -cellLimit
	}
	if c > cellLimit {
		return cellLimit
	}
	if math.IsNaN(c) {
		return 0
	}
	return int32(c)
}

func (s *Space) cellOf(x, y float64) cell {
	return cell{s.toCell(x), s.toCell(y)}
}

func (s *Space) spanOf(b geom.Rect) span {
	return span{
		min: s.cellOf(b.X, b.Y),
		max: s.cellOf(b.MaxX(), b.MaxY()),
	}
}

func (s *Space) getBuf() []*Ref {
	if n := len(s.bufs); n > 0 {
		buf := s.bufs[n-1]
		s.bufs = s.bufs[:n-1]
		return buf
	}
	return make([]*Ref, 0, 32)
}

func (s *Space) putBuf(buf []*Ref) {
	clear(buf)
	s.bufs = append(s.bufs, buf[:0])
}
