package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/flock3d/flock/shaders"
	"github.com/flock3d/flock/sim"
)

// ComputeStage owns the two kernels. The flock kernel runs one lane per
// active agent in workgroups of 64; the hunt kernel is a single guarded
// lane. Bind groups exist in both ping-pong orientations, selected by
// frame parity.
type ComputeStage struct {
	flockPipeline *wgpu.ComputePipeline
	huntPipeline  *wgpu.ComputePipeline

	flockBind [2]*wgpu.BindGroup
	huntBind  [2]*wgpu.BindGroup
}

// NewComputeStage compiles both kernels and wires the bind groups.
func NewComputeStage(device *wgpu.Device, src shaders.Set, bufs *BoidBuffers) (*ComputeStage, error) {
	c := &ComputeStage{}

	flockModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Flock CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Flock},
	})
	if err != nil {
		return nil, fmt.Errorf("flock shader: %w", err)
	}
	defer flockModule.Release()

	huntModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Hunt CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Hunt},
	})
	if err != nil {
		return nil, fmt.Errorf("hunt shader: %w", err)
	}
	defer huntModule.Release()

	c.flockPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Flock Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     flockModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("flock pipeline: %w", err)
	}

	c.huntPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Hunt Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     huntModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hunt pipeline: %w", err)
	}

	// Parity p reads positions[p] and writes positions[1-p]; the hunt
	// kernel then reads the freshly written side.
	for p := 0; p < 2; p++ {
		src, dst := p, 1-p

		c.flockBind[p], err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("FlockBind%d", p),
			Layout: c.flockPipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: bufs.SimParams, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: bufs.FlockParams, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: bufs.Positions[src], Size: wgpu.WholeSize},
				{Binding: 3, Buffer: bufs.Velocities[src], Size: wgpu.WholeSize},
				{Binding: 4, Buffer: bufs.Positions[dst], Size: wgpu.WholeSize},
				{Binding: 5, Buffer: bufs.Velocities[dst], Size: wgpu.WholeSize},
				{Binding: 6, Buffer: bufs.Phases, Size: wgpu.WholeSize},
				{Binding: 7, Buffer: bufs.PredatorPos, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("flock bind group %d: %w", p, err)
		}

		c.huntBind[p], err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("HuntBind%d", p),
			Layout: c.huntPipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: bufs.SimParams, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: bufs.TargetIndex, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: bufs.Positions[dst], Size: wgpu.WholeSize},
				{Binding: 3, Buffer: bufs.PredatorPos, Size: wgpu.WholeSize},
				{Binding: 4, Buffer: bufs.PredatorVel, Size: wgpu.WholeSize},
				{Binding: 5, Buffer: bufs.GuidingLine, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("hunt bind group %d: %w", p, err)
		}
	}

	return c, nil
}

// Encode records both kernels into the frame's command encoder. Encoder
// ordering guarantees the flock pass completes before the hunt pass and
// both before any render pass in the same submission.
func (c *ComputeStage) Encode(encoder *wgpu.CommandEncoder, parity int, activeCount uint32) {
	pass := encoder.BeginComputePass(nil)

	pass.SetPipeline(c.flockPipeline)
	pass.SetBindGroup(0, c.flockBind[parity], nil)
	groups := (activeCount + sim.WorkgroupSize - 1) / sim.WorkgroupSize
	if groups < 1 {
		groups = 1
	}
	pass.DispatchWorkgroups(groups, 1, 1)

	pass.SetPipeline(c.huntPipeline)
	pass.SetBindGroup(0, c.huntBind[parity], nil)
	pass.DispatchWorkgroups(1, 1, 1)

	pass.End()
}
