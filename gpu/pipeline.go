package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/flock3d/flock/core"
	"github.com/flock3d/flock/shaders"
	"github.com/flock3d/flock/sim"
)

// Pipeline owns every GPU object of the simulation: the agent buffers,
// the two compute kernels, the render graph and the guiding line
// readback. One Pipeline corresponds to one buffer generation; changing
// MaxCount means tearing it down and building a new one.
type Pipeline struct {
	Buffers  *BoidBuffers
	Compute  *ComputeStage
	Render   *RenderGraph
	Feedback *CameraFeedback

	// Degraded is set when the requested capacity could not be
	// allocated and the minimal fallback configuration is in use.
	Degraded bool

	generation uuid.UUID
	frame      uint64
	destroyed  bool
	log        core.Logger
}

// NewPipeline allocates all GPU resources for the given world. If the
// buffer allocation fails at the requested capacity, it retries once
// with the minimal configuration before giving up.
func NewPipeline(device *wgpu.Device, queue *wgpu.Queue, surfaceFormat, depthFormat wgpu.TextureFormat, src shaders.Set, world *sim.World, log core.Logger) (*Pipeline, error) {
	p := &Pipeline{generation: uuid.New(), log: log}

	bufs, err := NewBoidBuffers(device, queue, world)
	if err != nil {
		log.Errorf("buffer allocation failed at capacity %d, retrying minimal: %v", world.Cfg.MaxCount, err)
		minimal := sim.MinimalConfig()
		minimal.TargetFrameTime = world.Cfg.TargetFrameTime
		fallback := sim.NewWorld(minimal, 1)
		bufs, err = NewBoidBuffers(device, queue, fallback)
		if err != nil {
			return nil, fmt.Errorf("buffer allocation (minimal fallback): %w", err)
		}
		*world = *fallback
		p.Degraded = true
	}
	p.Buffers = bufs

	p.Compute, err = NewComputeStage(device, src, bufs)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("compute stage: %w", err)
	}

	p.Render, err = NewRenderGraph(device, queue, surfaceFormat, depthFormat, src)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("render graph: %w", err)
	}

	p.Feedback, err = NewCameraFeedback(device, p.generation)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("camera feedback: %w", err)
	}

	log.Debugf("pipeline %s ready, capacity %d", p.generation, bufs.MaxCount)
	return p, nil
}

// Parity selects which side of the ping-pong the next dispatch reads.
func (p *Pipeline) Parity() int {
	return int(p.frame % 2)
}

// EncodeFrame records one full frame: both compute dispatches, all draw
// passes and, when the staging buffer is free, the guiding line copy.
func (p *Pipeline) EncodeFrame(encoder *wgpu.CommandEncoder, colorView, depthView *wgpu.TextureView, activeCount uint32, width, height uint32) {
	parity := p.Parity()
	p.Compute.Encode(encoder, parity, activeCount)
	p.Render.Encode(encoder, colorView, depthView, p.Buffers, parity, activeCount, width, height)
	p.Feedback.EncodeCopy(encoder, p.Buffers.GuidingLine)
}

// AfterSubmit advances frame parity and polls the readback. Call once
// per frame, after the command buffer has been submitted.
func (p *Pipeline) AfterSubmit() {
	p.frame++
	p.Feedback.Poll(p.generation)
}

// ChasePose reports the latest predator and target positions read back
// from the GPU.
func (p *Pipeline) ChasePose() (predator, target mgl32.Vec3, ok bool) {
	return p.Feedback.Pose()
}

// Destroy tears the pipeline down exactly once. Safe to call on a
// partially constructed pipeline.
func (p *Pipeline) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true

	if p.Feedback != nil {
		p.Feedback.Close()
	}
	if p.Render != nil {
		p.Render.Destroy()
	}
	if p.Buffers != nil {
		p.Buffers.Destroy()
	}
}
