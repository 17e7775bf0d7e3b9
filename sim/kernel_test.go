package sim

import (
	"math"
	"testing"
)

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func checkWorldFinite(t *testing.T, w *World, tick int) {
	t.Helper()
	for i := 0; i < w.Active; i++ {
		for k := 0; k < 3; k++ {
			if !finite(w.Positions[i][k]) || !finite(w.Velocities[i][k]) {
				t.Fatalf("tick %d: agent %d diverged: pos=%v vel=%v",
					tick, i, w.Positions[i], w.Velocities[i])
			}
		}
		if !finite(w.Phases[i]) {
			t.Fatalf("tick %d: agent %d phase diverged: %v", tick, i, w.Phases[i])
		}
	}
	for k := 0; k < 3; k++ {
		if !finite(w.PredatorPos[k]) || !finite(w.PredatorVel[k]) {
			t.Fatalf("tick %d: predator diverged: pos=%v vel=%v",
				tick, w.PredatorPos, w.PredatorVel)
		}
	}
}

func TestKernel_SpeedLimitHoldsAfterOneTick(t *testing.T) {
	for _, n := range []int{1, 2, 64, 513, 4096} {
		cfg := DefaultConfig()
		cfg.MaxCount = n
		cfg.BirdCount = n
		cfg.Validate()

		w := NewWorld(cfg, 42)
		w.Step(cfg.TargetFrameTime, 1)

		limit := cfg.SpeedLimit * 1.0001
		for i := 0; i < n; i++ {
			if s := w.Velocities[i].Len(); s > limit {
				t.Fatalf("n=%d: agent %d speed %.3f exceeds limit %.3f", n, i, s, cfg.SpeedLimit)
			}
		}
	}
}

func TestKernel_LongRunStaysFinite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 512
	cfg.BirdCount = 512
	cfg.Validate()

	w := NewWorld(cfg, 7)
	for tick := 0; tick < 600; tick++ {
		w.Step(cfg.TargetFrameTime, 1)
	}
	checkWorldFinite(t, w, 600)

	// The flock must not have escaped to infinity either; center gravity
	// keeps it loosely bounded.
	for i := 0; i < w.Active; i++ {
		if w.Positions[i].Len() > 10000 {
			t.Fatalf("agent %d drifted to %v", i, w.Positions[i])
		}
	}
}

func TestKernel_ZeroDeltaFreezesEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 128
	cfg.BirdCount = 128
	cfg.Validate()

	w := NewWorld(cfg, 3)
	before := make([]struct{ p, v [3]float32 }, w.Active)
	for i := range before {
		before[i].p = w.Positions[i]
		before[i].v = w.Velocities[i]
	}
	predBefore := w.PredatorPos

	w.Step(0, 1)

	for i := range before {
		if w.Positions[i] != before[i].p {
			t.Fatalf("agent %d moved with dt=0", i)
		}
		if w.Velocities[i] != before[i].v {
			t.Fatalf("agent %d velocity changed with dt=0", i)
		}
	}
	if w.PredatorPos != predBefore {
		t.Fatal("predator moved with dt=0")
	}
}

func TestKernel_TimeScaleSlowsDisplacement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 64
	cfg.BirdCount = 64
	cfg.Validate()

	full := NewWorld(cfg, 11)
	half := NewWorld(cfg, 11)

	dt := cfg.TargetFrameTime
	full.Step(dt, 1)
	half.Step(dt, 0.5)

	// Same forces, same velocities, but positions advance half as far.
	for i := 0; i < 64; i++ {
		if full.Velocities[i] != half.Velocities[i] {
			t.Fatalf("agent %d: time scale changed the velocity", i)
		}
		fullMove := full.Positions[i].Sub(half.Positions[i]).Len()
		halfMove := half.Velocities[i].Mul(dt * 0.5).Len()
		if math.Abs(float64(fullMove-halfMove)) > 1e-4 {
			t.Fatalf("agent %d: displacement not scaled (diff %.6f vs %.6f)", i, fullMove, halfMove)
		}
	}
}

func TestKernel_PredatorClosesOnTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 16
	cfg.BirdCount = 16
	cfg.Validate()

	w := NewWorld(cfg, 5)
	w.TargetIndex = 3

	start := w.PredatorPos.Sub(w.Positions[3]).Len()
	for tick := 0; tick < 1200; tick++ {
		StepHunt(w, cfg.TargetFrameTime, 1)
	}
	end := w.PredatorPos.Sub(w.Positions[3]).Len()

	if end >= start {
		t.Fatalf("predator did not close on a stationary target: %.2f -> %.2f", start, end)
	}
	// With the flock frozen, 20 seconds at hunt speed is plenty to arrive.
	if end > cfg.CatchDistance*4 {
		t.Fatalf("predator stalled %.2f away from the target", end)
	}
}

func TestKernel_GuidingLineTracksHunt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 8
	cfg.BirdCount = 8
	cfg.Validate()

	w := NewWorld(cfg, 9)
	w.TargetIndex = 2
	StepHunt(w, cfg.TargetFrameTime, 1)

	if w.GuidingLine[0].Vec3() != w.PredatorPos {
		t.Errorf("guiding line start %v != predator %v", w.GuidingLine[0], w.PredatorPos)
	}
	if w.GuidingLine[1].Vec3() != w.Positions[2] {
		t.Errorf("guiding line end %v != target %v", w.GuidingLine[1], w.Positions[2])
	}
	if w.GuidingLine[0].W() != 1 || w.GuidingLine[1].W() != 1 {
		t.Error("guiding line endpoints must carry w=1")
	}
}

func TestKernel_PhaseStaysWrapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCount = 32
	cfg.BirdCount = 32
	cfg.Validate()

	w := NewWorld(cfg, 1)
	for tick := 0; tick < 200; tick++ {
		StepFlock(w, cfg.MaxDelta, 1)
	}
	const twoPi = 2 * math.Pi
	for i := 0; i < w.Active; i++ {
		if w.Phases[i] < 0 || float64(w.Phases[i]) >= twoPi {
			t.Fatalf("agent %d phase %.4f outside [0, 2pi)", i, w.Phases[i])
		}
	}
}
