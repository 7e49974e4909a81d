package collision

import (
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/space"
)

// Stats counts the work done by one pipeline run.
type Stats struct {
	Candidates int // pairs reported by the broad phase
	Skipped    int // pairs with a missing shape on either side
	Tested     int // pairs handed to the narrow phase
	Contacts   int // pairs confirmed colliding
}

func (s *Stats) add(o Stats) {
	s.Candidates += o.Candidates
	s.Skipped += o.Skipped
	s.Tested += o.Tested
	s.Contacts += o.Contacts
}

// Pipeline runs broad and narrow phase over a space. It keeps its pair
// buffers between runs; one pipeline per scene.
type Pipeline struct {
	left, right []*space.Ref
	total       Stats
}

// Run collects candidate pairs from sp, resolves each with the exact
// shapes returned by shapeOf (in world coordinates) and calls notify for
// every confirmed contact with the MTV that moves a away from b.
//
// The pair list is complete before the first notify, but notify should
// still leave structural index changes to a later pass.
func (p *Pipeline) Run(sp *space.Space, shapeOf func(payload any) Shape, notify func(a, b any, mtv geom.Vec)) Stats {
	p.left, p.right = sp.FindCollisionPairs(p.left[:0], p.right[:0])
	st := Stats{Candidates: len(p.left)}
	for i, l := range p.left {
		r := p.right[i]
		sa, sb := shapeOf(l.Payload()), shapeOf(r.Payload())
		if sa == nil || sb == nil {
			st.Skipped++
			continue
		}
		st.Tested++
		mtv, ok := MTV(sa, sb)
		if !ok {
			continue
		}
		st.Contacts++
		notify(l.Payload(), r.Payload(), mtv)
	}
	clear(p.left)
	clear(p.right)
	p.total.add(st)
	return st
}

// Total returns the stats accumulated over every run.
func (p *Pipeline) Total() Stats { return p.total }
