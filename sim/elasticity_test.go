package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Validate()
	return cfg
}

func fillWindow(c *ElasticityController, frameTime float32) {
	for i := 0; i < c.cfg.FrameWindow; i++ {
		c.ObserveFrame(frameTime)
	}
}

func TestElasticity_TimeScaleTracksSlowFrames(t *testing.T) {
	c := NewElasticityController(testConfig(), nil)

	// At target speed the scale stays capped at 1.
	fillWindow(c, 1.0/60.0)
	assert.InDelta(t, 1.0, float64(c.TimeScale()), 1e-5)

	// Twice as slow halves the scale.
	fillWindow(c, 1.0/30.0)
	assert.InDelta(t, 0.5, float64(c.TimeScale()), 1e-5)

	// Faster than target never exceeds the cap.
	fillWindow(c, 1.0/120.0)
	assert.InDelta(t, 1.0, float64(c.TimeScale()), 1e-5)
}

func TestElasticity_LowPerfHysteresis(t *testing.T) {
	c := NewElasticityController(testConfig(), nil)

	fillWindow(c, 1.0/60.0)
	if c.LowPerformance() {
		t.Fatal("low-performance flag set at target frame rate")
	}

	// Slower than the enter threshold flips the flag on.
	fillWindow(c, 1.0/25.0)
	if !c.LowPerformance() {
		t.Fatal("low-performance flag not set after slow frames")
	}

	// Between the two thresholds the flag must hold.
	fillWindow(c, 1.0/40.0)
	if !c.LowPerformance() {
		t.Error("flag dropped inside the hysteresis band")
	}

	// Faster than the exit threshold clears it.
	fillWindow(c, 1.0/60.0)
	if c.LowPerformance() {
		t.Error("flag still set after frame times recovered")
	}
}

func TestElasticity_CriticalPressureReducesToQuarter(t *testing.T) {
	c := NewElasticityController(testConfig(), nil)

	var observed []int
	c.CountChanged = func(n int) { observed = append(observed, n) }

	require.Equal(t, 4096, c.ActiveCount())

	c.OnMemoryPressure(PressureEvent{PercentUsed: 97, IsCritical: true}, 100)

	assert.Equal(t, 1024, c.ActiveCount())
	assert.True(t, c.Throttled())
	assert.True(t, c.LowPerformance(), "pressure throttle must pin low-performance mode")
	assert.Equal(t, []int{1024}, observed)
}

func TestElasticity_NonCriticalPressureReducesToHalf(t *testing.T) {
	c := NewElasticityController(testConfig(), nil)
	c.OnMemoryPressure(PressureEvent{PercentUsed: 88, IsCritical: false}, 100)
	assert.Equal(t, 2048, c.ActiveCount())
}

func TestElasticity_ReductionFlooredAtMinCount(t *testing.T) {
	cfg := testConfig()
	cfg.BirdCount = 100
	cfg.MinCount = 64
	c := NewElasticityController(cfg, nil)

	c.OnMemoryPressure(PressureEvent{PercentUsed: 99, IsCritical: true}, 0)
	assert.Equal(t, 64, c.ActiveCount())
}

func TestElasticity_DoublePressureIsIdempotent(t *testing.T) {
	c := NewElasticityController(testConfig(), nil)

	c.OnMemoryPressure(PressureEvent{PercentUsed: 97, IsCritical: true}, 100)
	require.Equal(t, 1024, c.ActiveCount())

	// A second event while throttled must not reduce again.
	c.OnMemoryPressure(PressureEvent{PercentUsed: 98, IsCritical: true}, 101)
	assert.Equal(t, 1024, c.ActiveCount())
}

func TestElasticity_RecoveryHalvesRemainingGap(t *testing.T) {
	cfg := testConfig()
	c := NewElasticityController(cfg, nil)

	c.OnMemoryPressure(PressureEvent{PercentUsed: 97, IsCritical: true}, 100)
	require.Equal(t, 1024, c.ActiveCount())

	// Before the deadline nothing happens, regardless of usage.
	c.ReportUsage(10)
	c.Update(100 + cfg.RecoveryDelay - 1)
	assert.Equal(t, 1024, c.ActiveCount())

	// First due check: gap 3072, step (3072+1)/2 = 1536.
	t0 := 100 + cfg.RecoveryDelay
	c.Update(t0)
	assert.Equal(t, 2560, c.ActiveCount())
	assert.True(t, c.Throttled(), "partial recovery keeps the throttle")

	// Subsequent checks land sooner, at half the delay.
	t1 := t0 + cfg.RecoveryDelay/2
	c.Update(t1)
	assert.Equal(t, 3328, c.ActiveCount())

	t2 := t1 + cfg.RecoveryDelay/2
	c.Update(t2)
	assert.Equal(t, 3712, c.ActiveCount())

	// Walk the rest of the way back.
	now := t2
	for i := 0; i < 20 && c.Throttled(); i++ {
		now += cfg.RecoveryDelay / 2
		c.Update(now)
	}

	assert.Equal(t, 4096, c.ActiveCount())
	assert.False(t, c.Throttled())
	assert.False(t, c.LowPerformance(), "full recovery clears low-performance mode")
}

func TestElasticity_RecoveryWaitsWhileUsageHigh(t *testing.T) {
	cfg := testConfig()
	c := NewElasticityController(cfg, nil)

	c.OnMemoryPressure(PressureEvent{PercentUsed: 97, IsCritical: true}, 0)

	// Usage still above threshold: the check reschedules, count holds.
	c.ReportUsage(90)
	c.Update(cfg.RecoveryDelay)
	assert.Equal(t, 1024, c.ActiveCount())

	// Even after another full delay, high usage keeps blocking.
	c.Update(2 * cfg.RecoveryDelay)
	assert.Equal(t, 1024, c.ActiveCount())

	// Once usage drops the next due check steps forward.
	c.ReportUsage(50)
	c.Update(3 * cfg.RecoveryDelay)
	assert.Equal(t, 2560, c.ActiveCount())
}

func TestElasticity_ThrottlePinsLowPerfAgainstFastFrames(t *testing.T) {
	c := NewElasticityController(testConfig(), nil)

	c.OnMemoryPressure(PressureEvent{PercentUsed: 97, IsCritical: true}, 0)
	require.True(t, c.LowPerformance())

	// Fast frames alone must not clear the flag while throttled.
	fillWindow(c, 1.0/120.0)
	assert.True(t, c.LowPerformance())
}
