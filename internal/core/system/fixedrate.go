package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultCatchupCap bounds the ticks fired by a single Update. After a long
// stall (suspended tab, debugger) the excess simulation time is discarded.
const DefaultCatchupCap = 20

// FixedRate decouples a simulation step from the frame rate. Each Update
// fires fn once per tick boundary crossed since the last call, passing the
// simulation window of that tick rather than wall time.
type FixedRate struct {
	pass     Pass
	priority int
	step     time.Duration
	cap      int
	fired    int64 // index of the next tick to fire
	dropped  uint64
	fn       func(TickTime)
	log      *zap.Logger
}

// NewFixedRate fires fn rate times per simulated second. catchupCap <= 0
// selects DefaultCatchupCap.
func NewFixedRate(pass Pass, priority int, rate int, catchupCap int, fn func(TickTime), log *zap.Logger) *FixedRate {
	if rate <= 0 {
		panic(fmt.Sprintf("system: fixed rate must be positive, got %d", rate))
	}
	if catchupCap <= 0 {
		catchupCap = DefaultCatchupCap
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FixedRate{
		pass:     pass,
		priority: priority,
		step:     time.Second / time.Duration(rate),
		cap:      catchupCap,
		fn:       fn,
		log:      log,
	}
}

func (f *FixedRate) Pass() Pass          { return f.pass }
func (f *FixedRate) Priority() int       { return f.priority }
func (f *FixedRate) Step() time.Duration { return f.step }

// Dropped returns the total number of ticks discarded by the catch-up cap.
func (f *FixedRate) Dropped() uint64 { return f.dropped }

// Update fires every tick whose end lies at or before t.End.
func (f *FixedRate) Update(t TickTime) {
	due := int64(t.End / f.step)
	n := due - f.fired
	if n <= 0 {
		return
	}
	if n > int64(f.cap) {
		skipped := n - int64(f.cap)
		f.dropped += uint64(skipped)
		f.fired = due - int64(f.cap)
		n = int64(f.cap)
		f.log.Warn("simulation catch-up capped",
			zap.Int64("skipped_ticks", skipped),
			zap.Duration("skipped_time", time.Duration(skipped)*f.step),
			zap.Uint64("dropped_total", f.dropped),
		)
	}
	for i := int64(0); i < n; i++ {
		start := time.Duration(f.fired) * f.step
		f.fired++
		f.fn(TickTime{Start: start, End: start + f.step})
	}
}
