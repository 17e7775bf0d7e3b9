package app

import (
	"runtime"

	"github.com/flock3d/flock/sim"
)

// Default heap budget. Generous for the simulation itself; the point is
// to have a denominator so host pressure becomes a percentage.
const defaultHeapBudget = 512 << 20

// RuntimePressureSource derives memory pressure events from the Go
// runtime's heap statistics measured against a fixed budget. ReadMemStats
// is not free, so samples are spaced out by Interval.
type RuntimePressureSource struct {
	BudgetBytes     uint64
	WarnPercent     float64
	CriticalPercent float64
	Interval        float64

	lastSample  float64
	lastPercent float64
}

func NewRuntimePressureSource() *RuntimePressureSource {
	return &RuntimePressureSource{
		BudgetBytes:     defaultHeapBudget,
		WarnPercent:     85,
		CriticalPercent: 95,
		Interval:        0.5,
	}
}

// Poll samples the heap at most once per Interval and returns the usage
// percentage plus a pressure event when the warn threshold is crossed.
// Between samples it repeats the last percentage.
func (s *RuntimePressureSource) Poll(now float64) (float64, *sim.PressureEvent) {
	if now-s.lastSample < s.Interval && s.lastSample != 0 {
		return s.lastPercent, nil
	}
	s.lastSample = now

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.lastPercent = float64(ms.HeapAlloc) / float64(s.BudgetBytes) * 100

	if s.lastPercent >= s.WarnPercent {
		return s.lastPercent, &sim.PressureEvent{
			PercentUsed: s.lastPercent,
			IsCritical:  s.lastPercent >= s.CriticalPercent,
		}
	}
	return s.lastPercent, nil
}
