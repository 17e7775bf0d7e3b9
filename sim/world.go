package sim

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// World is the CPU-side model of the simulation. The GPU pipeline uses it
// only to generate initial buffer contents; afterwards the authoritative
// state lives in GPU buffers. Headless runs and the property tests step
// the world directly through the reference kernels in kernel.go.
type World struct {
	Cfg    Config
	Params FlockingParams

	Positions  []mgl32.Vec3
	Velocities []mgl32.Vec3
	Phases     []float32
	Visible    []bool

	PredatorPos mgl32.Vec3
	PredatorVel mgl32.Vec3

	TargetIndex uint32
	GuidingLine [2]mgl32.Vec4

	Active int
}

// NewWorld allocates a world at cfg.MaxCount capacity and scatters agents
// inside the spawn sphere. The seed makes headless runs repeatable.
func NewWorld(cfg Config, seed int64) *World {
	cfg.Validate()
	rng := rand.New(rand.NewSource(seed))

	w := &World{
		Cfg:        cfg,
		Params:     DefaultFlockingParams(),
		Positions:  make([]mgl32.Vec3, cfg.MaxCount),
		Velocities: make([]mgl32.Vec3, cfg.MaxCount),
		Phases:     make([]float32, cfg.MaxCount),
		Visible:    make([]bool, cfg.MaxCount),
		Active:     cfg.BirdCount,
	}

	for i := 0; i < cfg.MaxCount; i++ {
		w.Positions[i] = randomInSphere(rng, cfg.SpawnRadius)
		w.Velocities[i] = randomInSphere(rng, cfg.SpeedLimit * 0.5)
		w.Phases[i] = rng.Float32() * 2 * math.Pi
		w.Visible[i] = i < w.Active
	}

	// Predator starts outside the flock, gliding inward.
	w.PredatorPos = mgl32.Vec3{cfg.SpawnRadius * 2, cfg.SpawnRadius, 0}
	w.PredatorVel = mgl32.Vec3{-cfg.HuntSpeed, 0, 0}

	return w
}

// SetActive moves the active boundary and updates visibility flags.
// Capacity is untouched; agents beyond the boundary are hidden, never
// removed.
func (w *World) SetActive(n int) {
	if n < 1 {
		n = 1
	}
	if n > w.Cfg.MaxCount {
		n = w.Cfg.MaxCount
	}
	w.Active = n
	for i := range w.Visible {
		w.Visible[i] = i < n
	}
}

// Step advances the whole world by one tick: flock update for every
// active agent, then the predator hunt update. dt is the already-clamped
// frame delta; timeScale is the elasticity controller's speed factor.
func (w *World) Step(dt, timeScale float32) {
	StepFlock(w, dt, timeScale)
	StepHunt(w, dt, timeScale)
}

func randomInSphere(rng *rand.Rand, radius float32) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
		}
		if v.LenSqr() <= 1 {
			return v.Mul(radius)
		}
	}
}
