package sim

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestClampDelta(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.ClampDelta(0.01, true); got != 0.01 {
		t.Errorf("in-range delta altered: %v", got)
	}
	if got := cfg.ClampDelta(0.5, true); got != cfg.MaxDelta {
		t.Errorf("spike not clamped to MaxDelta: %v", got)
	}
	if got := cfg.ClampDelta(-0.01, true); got != 0 {
		t.Errorf("negative delta not zeroed: %v", got)
	}
	// A hidden host always yields zero, whatever the raw delta.
	if got := cfg.ClampDelta(0.01, false); got != 0 {
		t.Errorf("hidden host delta not zeroed: %v", got)
	}
	if got := cfg.ClampDelta(10, false); got != 0 {
		t.Errorf("hidden host spike not zeroed: %v", got)
	}
}

func TestValidateClampsCounts(t *testing.T) {
	cfg := Config{MaxCount: 100, BirdCount: 500, MinCount: 200}
	cfg.Validate()

	if cfg.BirdCount != 100 {
		t.Errorf("BirdCount not clamped to capacity: %d", cfg.BirdCount)
	}
	if cfg.MinCount != 100 {
		t.Errorf("MinCount not clamped to capacity: %d", cfg.MinCount)
	}

	cfg = Config{}
	cfg.Validate()
	if cfg.MaxCount < 1 || cfg.BirdCount < 1 || cfg.MinCount < 1 || cfg.FrameWindow < 1 {
		t.Errorf("zero config not lifted to minimums: %+v", cfg)
	}
}

func TestMinimalConfigFitsOneAgent(t *testing.T) {
	cfg := MinimalConfig()
	if cfg.MaxCount < 1 {
		t.Fatalf("minimal capacity %d", cfg.MaxCount)
	}
	if cfg.BirdCount != cfg.MaxCount {
		t.Errorf("minimal config should start full: %d of %d", cfg.BirdCount, cfg.MaxCount)
	}
}

func TestFlockingParamsLayout(t *testing.T) {
	p := FlockingParams{
		SeparationWeight: 1.5,
		AlignmentWeight:  0.25,
		CohesionWeight:   0.75,
		CenterGravity:    [3]float32{1, 2, 3},
	}
	buf := p.Bytes()

	if len(buf) != FlockingParamsSize {
		t.Fatalf("packed size %d, want %d", len(buf), FlockingParamsSize)
	}

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	if f32(0) != 1.5 || f32(4) != 0.25 || f32(8) != 0.75 {
		t.Error("weights not packed at offsets 0, 4, 8")
	}
	// Center gravity sits on the 16-byte boundary the shader expects.
	if f32(16) != 1 || f32(20) != 2 || f32(24) != 3 {
		t.Error("center gravity not packed at offset 16")
	}
}

func TestWorld_SetActiveUpdatesVisibility(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 16
	cfg.BirdCount = 16
	w := NewWorld(cfg, 1)

	w.SetActive(5)
	if w.Active != 5 {
		t.Fatalf("active = %d, want 5", w.Active)
	}
	for i, v := range w.Visible {
		if v != (i < 5) {
			t.Fatalf("visible[%d] = %v after SetActive(5)", i, v)
		}
	}

	// Out-of-range requests clamp instead of failing.
	w.SetActive(100)
	if w.Active != 16 {
		t.Errorf("active = %d, want capacity 16", w.Active)
	}
	w.SetActive(0)
	if w.Active != 1 {
		t.Errorf("active = %d, want floor 1", w.Active)
	}
}

func TestWorld_SpawnInsideSphere(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 256
	cfg.BirdCount = 256
	w := NewWorld(cfg, 99)

	for i, p := range w.Positions {
		if p.Len() > cfg.SpawnRadius*1.0001 {
			t.Fatalf("agent %d spawned at %v, outside radius %v", i, p, cfg.SpawnRadius)
		}
	}
	for i, v := range w.Velocities {
		if v.Len() > cfg.SpeedLimit {
			t.Fatalf("agent %d spawned over the speed limit: %v", i, v)
		}
	}
}
