package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/flock3d/flock/sim"
)

// Byte layouts shared between host and shaders. Sizes are contractual:
// the WGSL structs in the shaders package assume exactly these offsets.
const (
	AgentStride      = 12 // 3 x f32, tightly packed
	PhaseStride      = 4
	FlagStride       = 4
	GuidingLineSize  = 32 // 2 endpoints x vec4<f32>
	SimParamsSize    = 64
	SceneUniformSize = 80 // mat4 view-proj + vec4 misc
)

// Per-instance flag values consumed by the boid vertex shader.
const (
	flagHidden   uint32 = 0
	flagBoid     uint32 = 1
	flagPredator uint32 = 2
)

// SimParams is the per-frame uniform consumed by both kernels. Field
// order matches the WGSL SimParams struct.
type SimParams struct {
	Dt          float32
	TimeScale   float32
	ActiveCount uint32
	Flags       uint32

	NeighborRadius     float32
	SeparationDistance float32
	SpeedLimit         float32
	FlapRate           float32

	PredatorRepulsion float32
	PredatorRadius    float32
	HuntSpeed         float32
	HuntSteering      float32

	CatchDistance float32
}

// NewSimParams lifts the static kernel tuning out of a Config; Dt,
// TimeScale and ActiveCount are filled in per frame.
func NewSimParams(cfg sim.Config) SimParams {
	return SimParams{
		TimeScale:          1,
		NeighborRadius:     cfg.NeighborRadius,
		SeparationDistance: cfg.SeparationDistance,
		SpeedLimit:         cfg.SpeedLimit,
		FlapRate:           cfg.FlapRate,
		PredatorRepulsion:  cfg.PredatorRepulsion,
		PredatorRadius:     cfg.PredatorRadius,
		HuntSpeed:          cfg.HuntSpeed,
		HuntSteering:       cfg.HuntSteering,
		CatchDistance:      cfg.CatchDistance,
	}
}

// Bytes packs the params into the 64-byte uniform layout.
func (p SimParams) Bytes() []byte {
	buf := make([]byte, SimParamsSize)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	putF32(0, p.Dt)
	putF32(4, p.TimeScale)
	binary.LittleEndian.PutUint32(buf[8:], p.ActiveCount)
	binary.LittleEndian.PutUint32(buf[12:], p.Flags)
	putF32(16, p.NeighborRadius)
	putF32(20, p.SeparationDistance)
	putF32(24, p.SpeedLimit)
	putF32(28, p.FlapRate)
	putF32(32, p.PredatorRepulsion)
	putF32(36, p.PredatorRadius)
	putF32(40, p.HuntSpeed)
	putF32(44, p.HuntSteering)
	putF32(48, p.CatchDistance)
	// 52..64 padding
	return buf
}

// packVec3s tightly packs vectors at 12 bytes apiece.
func packVec3s(vs []mgl32.Vec3) []byte {
	buf := make([]byte, len(vs)*AgentStride)
	for i, v := range vs {
		off := i * AgentStride
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v.X()))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v.Y()))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(v.Z()))
	}
	return buf
}

func packVec3(v mgl32.Vec3) []byte {
	return packVec3s([]mgl32.Vec3{v})
}

func packF32s(fs []float32) []byte {
	buf := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func packU32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// EncodeGuidingLine packs the two padded endpoints into the 32-byte wire
// format written by the hunt kernel.
func EncodeGuidingLine(predator, target mgl32.Vec3) []byte {
	buf := make([]byte, GuidingLineSize)
	put := func(off int, v mgl32.Vec3) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v.X()))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v.Y()))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(v.Z()))
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(1))
	}
	put(0, predator)
	put(16, target)
	return buf
}

// DecodeGuidingLine extracts the predator and target world positions
// from a readback of the guiding-line region.
func DecodeGuidingLine(data []byte) (predator, target mgl32.Vec3, ok bool) {
	if len(data) < GuidingLineSize {
		return predator, target, false
	}
	get := func(off int) mgl32.Vec3 {
		return mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
		}
	}
	return get(0), get(16), true
}

// packScene packs the 80-byte scene uniform: column-major view-proj
// matrix followed by the misc vector (x = low-performance flag).
func packScene(viewProj mgl32.Mat4, lowPerf bool) []byte {
	buf := make([]byte, SceneUniformSize)
	for i, v := range viewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	lp := float32(0)
	if lowPerf {
		lp = 1
	}
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(lp))
	return buf
}

// instanceFlags builds the per-agent flag array for a given active
// boundary: indices below it are visible boids, the rest hidden.
func instanceFlags(maxCount, active int) []uint32 {
	flags := make([]uint32, maxCount)
	for i := 0; i < maxCount; i++ {
		if i < active {
			flags[i] = flagBoid
		} else {
			flags[i] = flagHidden
		}
	}
	return flags
}

func packU32s(vs []uint32) []byte {
	buf := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}
