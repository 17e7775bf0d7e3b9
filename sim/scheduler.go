package sim

import (
	"math/rand"
)

// TargetScheduler reselects the predator's pursuit target on a fixed
// cadence of real wall-clock time. Deliberately fed unscaled deltas so
// retargeting is unaffected by the elasticity controller slowing the
// simulation down.
type TargetScheduler struct {
	Interval float64 // seconds between reselections

	acc    float64
	target uint32
	rng    *rand.Rand
}

// NewTargetScheduler seeds the scheduler; the initial target is index 0.
func NewTargetScheduler(interval float64, seed int64) *TargetScheduler {
	return &TargetScheduler{
		Interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Target returns the current target index.
func (s *TargetScheduler) Target() uint32 { return s.target }

// Tick accumulates unscaled elapsed time and returns (target, true) when
// a new target was selected. A target orphaned by a capacity reduction
// (index >= activeCount) is reselected immediately, without waiting out
// the interval.
func (s *TargetScheduler) Tick(realDt float64, activeCount int) (uint32, bool) {
	if activeCount < 1 {
		activeCount = 1
	}

	s.acc += realDt

	orphaned := int(s.target) >= activeCount
	if !orphaned && s.acc < s.Interval {
		return s.target, false
	}

	s.target = uint32(s.rng.Intn(activeCount))
	s.acc = 0
	return s.target, true
}
