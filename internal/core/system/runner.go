package system

import (
	"fmt"
	"sort"
	"time"

	"github.com/tame2d/engine/internal/core/ecs"
	"go.uber.org/zap"
)

type entry struct {
	pass     Pass
	priority int
	seq      uint64
	run      func(TickTime)
	removed  bool
}

// Handle identifies a registered handler. Cancel removes it from its pass.
type Handle struct {
	s *Scheduler
	e *entry
}

func (h *Handle) Cancel() {
	if h == nil || h.e.removed {
		return
	}
	h.e.removed = true
	h.s.dirty[h.e.pass] = true
}

// Scheduler runs registered handlers pass by pass each time the clock is
// advanced. Within a pass handlers run by ascending priority, then in
// registration order. Not safe for concurrent use: one scheduler per scene.
type Scheduler struct {
	passes  [passCount][]*entry
	dirty   [passCount]bool
	watches map[int][]*watchState // property slot -> watches on it
	seq     uint64
	now     time.Duration
	frames  uint64
	log     *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		watches: make(map[int][]*watchState),
		log:     log,
	}
}

// Now returns the cumulative clock.
func (s *Scheduler) Now() time.Duration { return s.now }

// Frames returns how many times Advance has run.
func (s *Scheduler) Frames() uint64 { return s.frames }

// Register adds a System to its pass.
func (s *Scheduler) Register(sys System) *Handle {
	prio := 0
	if p, ok := sys.(Prioritized); ok {
		prio = p.Priority()
	}
	return s.Func(sys.Pass(), prio, sys.Update)
}

// Func adds a bare callback to pass.
func (s *Scheduler) Func(pass Pass, priority int, fn func(TickTime)) *Handle {
	if pass < 0 || pass >= passCount {
		panic(fmt.Sprintf("system: invalid pass %d", pass))
	}
	s.seq++
	e := &entry{pass: pass, priority: priority, seq: s.seq, run: fn}
	s.passes[pass] = append(s.passes[pass], e)
	s.dirty[pass] = true
	return &Handle{s: s, e: e}
}

// Advance moves the clock forward by elapsed and runs every pass once.
func (s *Scheduler) Advance(elapsed time.Duration) {
	if elapsed < 0 {
		panic(fmt.Errorf("%w: advance(%s)", ErrTimeReversed, elapsed))
	}
	t := TickTime{Start: s.now, End: s.now + elapsed}
	s.now = t.End
	s.frames++
	for p := Pass(0); p < passCount; p++ {
		s.RunPass(p, t)
	}
}

// RunPass runs a single pass. Handlers registered while the pass is running
// take effect from the next run.
func (s *Scheduler) RunPass(p Pass, t TickTime) {
	s.ensureSorted(p)
	entries := s.passes[p]
	for _, e := range entries {
		if e.removed {
			continue
		}
		e.run(t)
	}
}

func (s *Scheduler) ensureSorted(p Pass) {
	if !s.dirty[p] {
		return
	}
	// Fresh slice so a pass iterating the old one is unaffected.
	sorted := make([]*entry, 0, len(s.passes[p]))
	for _, e := range s.passes[p] {
		if !e.removed {
			sorted = append(sorted, e)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority < sorted[j].priority
		}
		return sorted[i].seq < sorted[j].seq
	})
	s.passes[p] = sorted
	s.dirty[p] = false
}

// PropertyChanged implements ecs.Owner fan-out: every watch on slot gets
// e queued for its next run.
func (s *Scheduler) PropertyChanged(e *ecs.Entity, slot int) {
	for _, w := range s.watches[slot] {
		w.mark(e)
	}
}
