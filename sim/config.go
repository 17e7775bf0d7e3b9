package sim

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// WorkgroupSize is the flock kernel's workgroup width. Dispatch count is
// ceil(activeCount / WorkgroupSize); the hunt kernel is a single lane.
const WorkgroupSize = 64

// Config holds every tunable of the simulation. Buffer capacity is fixed
// at MaxCount for the pipeline's lifetime; only the active count moves.
type Config struct {
	MaxCount  int // buffer capacity, never resized
	BirdCount int // initial active count
	MinCount  int // floor for memory-pressure reductions

	SpawnRadius float32 // initial placement sphere around the origin

	// Flock kernel
	NeighborRadius     float32
	SeparationDistance float32
	SpeedLimit         float32
	FlapRate           float32 // wing phase advance, rad/s at timeScale 1

	// Predator repulsion. The constants are deliberately large relative
	// to the spatial bounds; repulsion acts as a hard keep-out.
	PredatorRepulsion float32
	PredatorRadius    float32

	// Hunt kernel
	HuntSpeed     float32 // desired pursuit speed
	HuntSteering  float32 // per-frame exponential blend toward desired velocity
	CatchDistance float32 // within this range the desired velocity is zero

	// Frame pacing
	MaxDelta        float32 // dt clamp, seconds
	TargetFrameTime float32 // seconds, drives the time-scale controller
	TimeScaleCap    float32
	FrameWindow     int // rolling frame-time samples

	// Low-performance hysteresis, average frame time in seconds.
	LowPerfEnterAvg float32
	LowPerfExitAvg  float32

	// Memory pressure recovery
	RecoveryDelay     float64 // seconds until the first recovery check
	RecoveryThreshold float64 // percent used below which recovery steps forward

	// Target scheduling
	TargetInterval float64 // unscaled seconds between reselections
}

// DefaultConfig returns the tuning used by the demo binary.
func DefaultConfig() Config {
	return Config{
		MaxCount:  4096,
		BirdCount: 4096,
		MinCount:  64,

		SpawnRadius: 40,

		NeighborRadius:     8.0,
		SeparationDistance: 2.0,
		SpeedLimit:         14.0,
		FlapRate:           12.0,

		PredatorRepulsion: 1800.0,
		PredatorRadius:    24.0,

		HuntSpeed:     18.0,
		HuntSteering:  0.05,
		CatchDistance: 0.5,

		MaxDelta:        1.0 / 20.0,
		TargetFrameTime: 1.0 / 60.0,
		TimeScaleCap:    1.0,
		FrameWindow:     60,

		LowPerfEnterAvg: 1.0 / 30.0,
		LowPerfExitAvg:  1.0 / 50.0,

		RecoveryDelay:     30.0,
		RecoveryThreshold: 75.0,

		TargetInterval: 10.0,
	}
}

// MinimalConfig is the fallback used when buffer or pipeline creation is
// rejected during initialization. At least one agent always fits.
func MinimalConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxCount = cfg.MinCount
	if cfg.MaxCount < 1 {
		cfg.MaxCount = 1
	}
	cfg.BirdCount = cfg.MaxCount
	cfg.MinCount = 1
	return cfg
}

// Validate clamps the count fields into a consistent state.
func (c *Config) Validate() {
	if c.MaxCount < 1 {
		c.MaxCount = 1
	}
	if c.MinCount < 1 {
		c.MinCount = 1
	}
	if c.MinCount > c.MaxCount {
		c.MinCount = c.MaxCount
	}
	if c.BirdCount < 1 {
		c.BirdCount = 1
	}
	if c.BirdCount > c.MaxCount {
		c.BirdCount = c.MaxCount
	}
	if c.FrameWindow < 1 {
		c.FrameWindow = 1
	}
}

// ClampDelta bounds a raw frame delta into [0, MaxDelta]. A hidden host
// (tab in background, window iconified) forces dt to zero so the flock
// does not jump when visibility returns.
func (c Config) ClampDelta(dt float32, hostVisible bool) float32 {
	if !hostVisible || dt < 0 {
		return 0
	}
	if dt > c.MaxDelta {
		return c.MaxDelta
	}
	return dt
}

// FlockingParams is the uniform consumed by the flock kernel. Byte layout
// is fixed: three weights, one lane of padding, then the center-gravity
// target padded to vec4. 32 bytes total.
type FlockingParams struct {
	SeparationWeight float32
	AlignmentWeight  float32
	CohesionWeight   float32
	CenterGravity    mgl32.Vec3
}

// FlockingParamsSize is the wire size of FlockingParams.
const FlockingParamsSize = 32

// DefaultFlockingParams returns the demo weights.
func DefaultFlockingParams() FlockingParams {
	return FlockingParams{
		SeparationWeight: 1.2,
		AlignmentWeight:  0.6,
		CohesionWeight:   0.4,
		CenterGravity:    mgl32.Vec3{0, 0, 0},
	}
}

// Bytes packs the params into the 32-byte shader layout.
func (p FlockingParams) Bytes() []byte {
	buf := make([]byte, FlockingParamsSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.SeparationWeight))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.AlignmentWeight))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(p.CohesionWeight))
	// buf[12:16] padding, center gravity aligns to 16
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(p.CenterGravity.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(p.CenterGravity.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(p.CenterGravity.Z()))
	// buf[28:32] last lane padding
	return buf
}
