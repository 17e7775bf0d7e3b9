package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/flock3d/flock/sim"
)

// BoidBuffers owns every simulation buffer. Everything is allocated once
// at world capacity during pipeline initialization and destroyed exactly
// once at teardown; elasticity only rewrites the flag buffer and the
// per-frame uniforms, never the allocations.
//
// Positions and velocities are ping-pong pairs: each frame the flock
// kernel reads index p and overwrites index 1-p, so force accumulation
// always sees a consistent previous-frame snapshot.
type BoidBuffers struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	MaxCount int

	Positions  [2]*wgpu.Buffer
	Velocities [2]*wgpu.Buffer
	Phases     *wgpu.Buffer
	Flags      *wgpu.Buffer // per-instance u32: hidden/boid

	PredatorPos   *wgpu.Buffer
	PredatorVel   *wgpu.Buffer
	PredatorPhase *wgpu.Buffer // constant 0, feeds the shared vertex layout
	PredatorFlags *wgpu.Buffer // constant flagPredator

	TargetIndex *wgpu.Buffer // 4-byte uniform
	GuidingLine *wgpu.Buffer // 32 bytes: hunt kernel out, line draw + readback in
	FlockParams *wgpu.Buffer // 32-byte uniform
	SimParams   *wgpu.Buffer // 64-byte uniform

	destroyed bool
}

// NewBoidBuffers creates all buffers and uploads the world's initial
// state. Creation failures propagate; the pipeline handles the fallback.
func NewBoidBuffers(device *wgpu.Device, queue *wgpu.Queue, w *sim.World) (*BoidBuffers, error) {
	b := &BoidBuffers{
		device:   device,
		queue:    queue,
		MaxCount: w.Cfg.MaxCount,
	}

	simStorage := wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst

	var err error
	posBytes := packVec3s(w.Positions)
	velBytes := packVec3s(w.Velocities)
	for i := 0; i < 2; i++ {
		// Both halves of the ping-pong start from the same snapshot so
		// frame zero can read either side.
		if b.Positions[i], err = b.createInit(fmt.Sprintf("BoidPositions%d", i), posBytes, simStorage); err != nil {
			return nil, b.fail(err)
		}
		if b.Velocities[i], err = b.createInit(fmt.Sprintf("BoidVelocities%d", i), velBytes, simStorage); err != nil {
			return nil, b.fail(err)
		}
	}

	if b.Phases, err = b.createInit("BoidPhases", packF32s(w.Phases), simStorage); err != nil {
		return nil, b.fail(err)
	}
	if b.Flags, err = b.createInit("BoidFlags", packU32s(instanceFlags(w.Cfg.MaxCount, w.Active)), wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst); err != nil {
		return nil, b.fail(err)
	}

	if b.PredatorPos, err = b.createInit("PredatorPos", packVec3(w.PredatorPos), simStorage); err != nil {
		return nil, b.fail(err)
	}
	if b.PredatorVel, err = b.createInit("PredatorVel", packVec3(w.PredatorVel), simStorage); err != nil {
		return nil, b.fail(err)
	}
	if b.PredatorPhase, err = b.createInit("PredatorPhase", packF32s([]float32{0}), wgpu.BufferUsageVertex); err != nil {
		return nil, b.fail(err)
	}
	if b.PredatorFlags, err = b.createInit("PredatorFlags", packU32s([]uint32{flagPredator}), wgpu.BufferUsageVertex); err != nil {
		return nil, b.fail(err)
	}

	if b.TargetIndex, err = b.createInit("TargetIndex", packU32(w.TargetIndex), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return nil, b.fail(err)
	}
	if b.GuidingLine, err = b.createInit("GuidingLine",
		EncodeGuidingLine(w.PredatorPos, w.Positions[0]),
		wgpu.BufferUsageStorage|wgpu.BufferUsageVertex|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst); err != nil {
		return nil, b.fail(err)
	}
	if b.FlockParams, err = b.createInit("FlockParams", w.Params.Bytes(), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return nil, b.fail(err)
	}
	if b.SimParams, err = b.createInit("SimParams", NewSimParams(w.Cfg).Bytes(), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return nil, b.fail(err)
	}

	return b, nil
}

func (b *BoidBuffers) createInit(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, nil
}

// fail releases whatever was created so a failed constructor does not
// leak half the buffer set.
func (b *BoidBuffers) fail(err error) error {
	b.Destroy()
	return err
}

// WriteActiveFlags rewrites the per-agent flags for a new active
// boundary. This is the entirety of a capacity change on the GPU side:
// no buffer is recreated and no bind group goes stale.
func (b *BoidBuffers) WriteActiveFlags(active int) {
	if b.destroyed {
		return
	}
	b.queue.WriteBuffer(b.Flags, 0, packU32s(instanceFlags(b.MaxCount, active)))
}

// WriteTargetIndex updates the hunt kernel's pursuit target.
func (b *BoidBuffers) WriteTargetIndex(idx uint32) {
	if b.destroyed {
		return
	}
	b.queue.WriteBuffer(b.TargetIndex, 0, packU32(idx))
}

// WriteSimParams uploads the per-frame uniform.
func (b *BoidBuffers) WriteSimParams(p SimParams) {
	if b.destroyed {
		return
	}
	b.queue.WriteBuffer(b.SimParams, 0, p.Bytes())
}

// WriteFlockParams uploads new flocking weights.
func (b *BoidBuffers) WriteFlockParams(p sim.FlockingParams) {
	if b.destroyed {
		return
	}
	b.queue.WriteBuffer(b.FlockParams, 0, p.Bytes())
}

// Destroy releases every buffer exactly once.
func (b *BoidBuffers) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true

	release := func(buf *wgpu.Buffer) {
		if buf != nil {
			buf.Release()
		}
	}
	for i := 0; i < 2; i++ {
		release(b.Positions[i])
		release(b.Velocities[i])
	}
	release(b.Phases)
	release(b.Flags)
	release(b.PredatorPos)
	release(b.PredatorVel)
	release(b.PredatorPhase)
	release(b.PredatorFlags)
	release(b.TargetIndex)
	release(b.GuidingLine)
	release(b.FlockParams)
	release(b.SimParams)
}
