package sim

import (
	"github.com/flock3d/flock/core"
)

// PressureEvent is delivered by an external memory-pressure source.
// PercentUsed is 0..100.
type PressureEvent struct {
	PercentUsed float64
	IsCritical  bool
}

// PressureObserver receives memory-pressure events. The elasticity
// controller implements it; sources hold the interface, never a global.
type PressureObserver interface {
	OnMemoryPressure(ev PressureEvent, now float64)
}

// ElasticityController keeps the simulation interactive under load.
// Two independent mechanisms:
//
//   - a rolling frame-time average scales simulation speed (TimeScale)
//     and flips a low-performance flag with hysteresis;
//   - memory-pressure events shrink the active agent count (visibility
//     only, storage is never reallocated) and a deadline-driven recovery
//     walk steps it back once reported usage drops.
//
// All deadlines are plain timestamps checked from the frame loop, so
// there is nothing to cancel at teardown beyond dropping the struct.
type ElasticityController struct {
	cfg Config
	log core.Logger

	// CountChanged is invoked whenever the active count moves, with the
	// new count. The pipeline uses it to rewrite visibility flags.
	CountChanged func(active int)

	samples []float32
	sampleI int
	filled  int

	timeScale float32
	lowPerf   bool

	active         int
	originalCount  int
	throttled      bool
	nextRecoveryAt float64 // 0 when no check is scheduled
	lastUsage      float64
}

// NewElasticityController starts at cfg.BirdCount active agents.
func NewElasticityController(cfg Config, log core.Logger) *ElasticityController {
	cfg.Validate()
	if log == nil {
		log = core.NewNopLogger()
	}
	return &ElasticityController{
		cfg:           cfg,
		log:           log,
		samples:       make([]float32, cfg.FrameWindow),
		timeScale:     1,
		active:        cfg.BirdCount,
		originalCount: cfg.BirdCount,
	}
}

// TimeScale multiplies deltaTime before integration.
func (c *ElasticityController) TimeScale() float32 { return c.timeScale }

// LowPerformance reports whether rendering should drop to coarse shading.
func (c *ElasticityController) LowPerformance() bool { return c.lowPerf }

// ActiveCount is the current active agent boundary.
func (c *ElasticityController) ActiveCount() int { return c.active }

// Throttled reports whether a pressure reduction is in effect.
func (c *ElasticityController) Throttled() bool { return c.throttled }

// ObserveFrame records one frame time (seconds) and refreshes the time
// scale and the hysteresis flag.
func (c *ElasticityController) ObserveFrame(frameTime float32) {
	c.samples[c.sampleI] = frameTime
	c.sampleI = (c.sampleI + 1) % len(c.samples)
	if c.filled < len(c.samples) {
		c.filled++
	}

	var sum float32
	for i := 0; i < c.filled; i++ {
		sum += c.samples[i]
	}
	avg := sum / float32(c.filled)
	if avg <= 0 {
		c.timeScale = 1
		return
	}

	scale := c.cfg.TargetFrameTime / avg
	if scale > c.cfg.TimeScaleCap {
		scale = c.cfg.TimeScaleCap
	}
	c.timeScale = scale

	// Hysteresis: the enter threshold is slower than the exit threshold,
	// so the flag cannot flap around a single boundary. A pressure
	// throttle pins the flag regardless of frame times.
	if avg > c.cfg.LowPerfEnterAvg {
		if !c.lowPerf {
			c.log.Warnf("slow frames (avg %.1f ms), low-performance mode on", avg*1000)
		}
		c.lowPerf = true
	} else if avg < c.cfg.LowPerfExitAvg && !c.throttled {
		if c.lowPerf {
			c.log.Infof("frame times recovered (avg %.1f ms), low-performance mode off", avg*1000)
		}
		c.lowPerf = false
	}
}

// ReportUsage records the most recent externally reported memory usage,
// consulted by recovery checks.
func (c *ElasticityController) ReportUsage(percentUsed float64) {
	c.lastUsage = percentUsed
}

// OnMemoryPressure shrinks the active count. Critical pressure keeps 25%
// of the current count, non-critical keeps 50%, floored at MinCount.
// While a reduction is already in effect further events are ignored, so
// back-to-back signals cannot double-apply.
func (c *ElasticityController) OnMemoryPressure(ev PressureEvent, now float64) {
	c.lastUsage = ev.PercentUsed
	if c.throttled {
		return
	}

	factor := 0.5
	if ev.IsCritical {
		factor = 0.25
	}
	reduced := int(float64(c.active) * factor)
	if reduced < c.cfg.MinCount {
		reduced = c.cfg.MinCount
	}

	c.log.Warnf("memory pressure (%.0f%% used, critical=%v): reducing boids %d -> %d",
		ev.PercentUsed, ev.IsCritical, c.active, reduced)

	c.throttled = true
	c.lowPerf = true
	c.setActive(reduced)
	c.nextRecoveryAt = now + c.cfg.RecoveryDelay
}

// Update runs due recovery checks. Call once per frame with unscaled
// wall-clock seconds.
func (c *ElasticityController) Update(now float64) {
	if !c.throttled || c.nextRecoveryAt == 0 || now < c.nextRecoveryAt {
		return
	}

	if c.lastUsage >= c.cfg.RecoveryThreshold {
		// Still under pressure; try again after the full delay.
		c.nextRecoveryAt = now + c.cfg.RecoveryDelay
		return
	}

	// Step half the remaining gap toward the original count, never an
	// instant jump back to full scale.
	gap := c.originalCount - c.active
	step := (gap + 1) / 2
	next := c.active + step
	if next >= c.originalCount {
		next = c.originalCount
	}
	c.setActive(next)

	if c.active == c.originalCount {
		c.log.Infof("boid count fully recovered to %d", c.active)
		c.throttled = false
		c.lowPerf = false
		c.nextRecoveryAt = 0
		return
	}

	c.log.Infof("partial recovery: boid count %d of %d", c.active, c.originalCount)
	c.nextRecoveryAt = now + c.cfg.RecoveryDelay/2
}

func (c *ElasticityController) setActive(n int) {
	if n == c.active {
		return
	}
	c.active = n
	if c.CountChanged != nil {
		c.CountChanged(n)
	}
}
