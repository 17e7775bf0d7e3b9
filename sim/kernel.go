package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Reference implementations of the two GPU kernels. The WGSL sources in
// the shaders package compute exactly the same thing; these run the
// headless mode and back the property tests. Neighbor search is
// intentionally brute-force O(N^2) — agent count, not the algorithm, is
// the knob the elasticity controller turns.

// StepFlock updates position, velocity and wing phase for every agent
// below the active boundary. Mirrors shaders/flock.wgsl.
func StepFlock(w *World, dt, timeScale float32) {
	cfg := w.Cfg
	p := w.Params
	n := w.Active

	// Forces are computed against the previous frame's state, then all
	// agents are overwritten, matching the GPU's ping-pong buffers.
	prevPos := make([]mgl32.Vec3, n)
	prevVel := make([]mgl32.Vec3, n)
	copy(prevPos, w.Positions[:n])
	copy(prevVel, w.Velocities[:n])

	for i := 0; i < n; i++ {
		pos := prevPos[i]
		vel := prevVel[i]

		var separation, alignSum, cohereSum mgl32.Vec3
		neighbors := 0

		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			diff := pos.Sub(prevPos[j])
			dist := diff.Len()
			if dist <= 0 || dist >= cfg.NeighborRadius {
				continue
			}
			if dist < cfg.SeparationDistance {
				// Push-away weighted by inverse distance.
				separation = separation.Add(diff.Mul(1 / dist))
			}
			alignSum = alignSum.Add(prevVel[j])
			cohereSum = cohereSum.Add(prevPos[j])
			neighbors++
		}

		force := separation.Mul(p.SeparationWeight)
		if neighbors > 0 {
			inv := 1 / float32(neighbors)
			force = force.Add(alignSum.Mul(inv).Mul(p.AlignmentWeight))
			force = force.Add(cohereSum.Mul(inv).Sub(pos).Mul(p.CohesionWeight))
		}

		// Center gravity pull.
		force = force.Add(p.CenterGravity.Sub(pos).Mul(0.05))

		// Predator repulsion: inverse-square keep-out inside the
		// influence radius.
		away := pos.Sub(w.PredatorPos)
		pd := away.Len()
		if pd > 0 && pd < cfg.PredatorRadius {
			force = force.Add(away.Mul(cfg.PredatorRepulsion / (pd * pd * pd)))
		}

		vel = vel.Add(force.Mul(dt))
		vel = clampSpeed(vel, cfg.SpeedLimit)

		w.Velocities[i] = vel
		w.Positions[i] = pos.Add(vel.Mul(dt * timeScale))
		w.Phases[i] = wrapPhase(w.Phases[i] + cfg.FlapRate*dt*timeScale)
	}
}

// StepHunt advances the predator toward its target and rewrites the
// guiding line. Mirrors shaders/hunt.wgsl, which runs as one lane.
func StepHunt(w *World, dt, timeScale float32) {
	cfg := w.Cfg

	ti := int(w.TargetIndex)
	if ti >= len(w.Positions) {
		ti = 0
	}
	targetPos := w.Positions[ti]

	toTarget := targetPos.Sub(w.PredatorPos)
	dist := toTarget.Len()

	var desired mgl32.Vec3
	if dist > cfg.CatchDistance {
		desired = toTarget.Mul(1 / dist).Mul(cfg.HuntSpeed)
	}

	// Exponential smoothing toward the desired velocity, never a snap.
	w.PredatorVel = w.PredatorVel.Add(desired.Sub(w.PredatorVel).Mul(cfg.HuntSteering))
	w.PredatorPos = w.PredatorPos.Add(w.PredatorVel.Mul(dt * timeScale))

	w.GuidingLine[0] = w.PredatorPos.Vec4(1)
	w.GuidingLine[1] = targetPos.Vec4(1)
}

func clampSpeed(v mgl32.Vec3, limit float32) mgl32.Vec3 {
	l := v.Len()
	if l > limit {
		return v.Mul(limit / l)
	}
	return v
}

func wrapPhase(p float32) float32 {
	const twoPi = 2 * math.Pi
	for p >= twoPi {
		p -= twoPi
	}
	for p < 0 {
		p += twoPi
	}
	return p
}
