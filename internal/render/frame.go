package render

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame is a flushed queue in wire form: parallel arrays with one entry per
// command plus the concatenated arguments, no nested objects.
type Frame struct {
	Z       []int32   `msgpack:"z"`
	Actions []uint8   `msgpack:"a"`
	NInts   []uint32  `msgpack:"ni"`
	NFloats []uint32  `msgpack:"nf"`
	Ints    []int32   `msgpack:"i"`
	Floats  []float64 `msgpack:"f"`
}

func (f *Frame) Len() int { return len(f.Z) }

// Frame flushes q into a Frame in draw order.
func (q *Queue) Frame() Frame {
	f := Frame{
		Z:       make([]int32, 0, q.Len()),
		Actions: make([]uint8, 0, q.Len()),
		NInts:   make([]uint32, 0, q.Len()),
		NFloats: make([]uint32, 0, q.Len()),
		Ints:    make([]int32, 0, len(q.ints)),
		Floats:  make([]float64, 0, len(q.floats)),
	}
	q.Render(func(c Command) {
		f.Z = append(f.Z, c.Z)
		f.Actions = append(f.Actions, uint8(c.Action))
		f.NInts = append(f.NInts, uint32(len(c.Ints)))
		f.NFloats = append(f.NFloats, uint32(len(c.Floats)))
		f.Ints = append(f.Ints, c.Ints...)
		f.Floats = append(f.Floats, c.Floats...)
	})
	return f
}

// Commands visits the frame's commands in order. It fails when the argument
// counts do not add up to exactly the argument arrays.
func (f *Frame) Commands(visit func(Command)) error {
	n := len(f.Z)
	if len(f.Actions) != n || len(f.NInts) != n || len(f.NFloats) != n {
		return fmt.Errorf("render: frame arrays disagree on command count")
	}
	var io, fo int
	for i := 0; i < n; i++ {
		ni, nf := int(f.NInts[i]), int(f.NFloats[i])
		if io+ni > len(f.Ints) || fo+nf > len(f.Floats) {
			return fmt.Errorf("render: command %d overruns argument arrays", i)
		}
		visit(Command{
			Z:      f.Z[i],
			Action: Action(f.Actions[i]),
			Ints:   f.Ints[io : io+ni],
			Floats: f.Floats[fo : fo+nf],
		})
		io += ni
		fo += nf
	}
	if io != len(f.Ints) || fo != len(f.Floats) {
		return fmt.Errorf("render: %d ints and %d floats left over", len(f.Ints)-io, len(f.Floats)-fo)
	}
	return nil
}

// EncodeFrame serializes f with msgpack.
func EncodeFrame(f Frame) ([]byte, error) {
	b, err := msgpack.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

// DecodeFrame parses a frame produced by EncodeFrame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
