package gpu

import (
	"fmt"
	"image/color"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/flock3d/flock/core"
	"github.com/flock3d/flock/shaders"
)

// PIPFraction is the edge length of the picture-in-picture viewport
// relative to the frame, and PIPMargin its inset from the corner.
const (
	PIPFraction = 0.25
	PIPMargin   = 16
)

// RenderGraph issues the frame's draw passes in strict order: sky
// background (depth always-pass), instanced boids, predator, guiding
// line, then optionally a picture-in-picture re-draw of the boids from
// the chase camera into a corner viewport. The PIP pass loads the
// existing framebuffer, never clears it.
type RenderGraph struct {
	boidPipeline *wgpu.RenderPipeline
	linePipeline *wgpu.RenderPipeline
	bgPipeline   *wgpu.RenderPipeline

	sceneBuf    *wgpu.Buffer // primary camera
	pipSceneBuf *wgpu.Buffer // chase camera

	boidSceneBind    *wgpu.BindGroup
	pipSceneBind     *wgpu.BindGroup
	lineSceneBind    *wgpu.BindGroup
	backgroundBind   *wgpu.BindGroup
	skyTexture       *wgpu.Texture
	skyView          *wgpu.TextureView
	sampler          *wgpu.Sampler
	boidVB           *wgpu.Buffer
	predatorVB       *wgpu.Buffer
	boidVertexCount  uint32
	predVertexCount  uint32

	// PIPEnabled toggles the predator's-eye inset.
	PIPEnabled bool

	queue     *wgpu.Queue
	destroyed bool
}

// NewRenderGraph builds the three pipelines, the shared meshes and the
// sky texture.
func NewRenderGraph(device *wgpu.Device, queue *wgpu.Queue, surfaceFormat, depthFormat wgpu.TextureFormat, src shaders.Set) (*RenderGraph, error) {
	r := &RenderGraph{queue: queue, PIPEnabled: true}

	boidModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Boid Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Boid},
	})
	if err != nil {
		return nil, fmt.Errorf("boid shader: %w", err)
	}
	defer boidModule.Release()

	lineModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Line Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Line},
	})
	if err != nil {
		return nil, fmt.Errorf("line shader: %w", err)
	}
	defer lineModule.Release()

	bgModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Background Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Background},
	})
	if err != nil {
		return nil, fmt.Errorf("background shader: %w", err)
	}
	defer bgModule.Release()

	// Boid pipeline: mesh vertices plus four per-instance streams pulled
	// straight from the simulation buffers, tightly packed.
	boidLayouts := []wgpu.VertexBufferLayout{
		{
			ArrayStride: AgentStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: AgentStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 1},
			},
		},
		{
			ArrayStride: AgentStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 2},
			},
		},
		{
			ArrayStride: PhaseStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32, Offset: 0, ShaderLocation: 3},
			},
		},
		{
			ArrayStride: FlagStride,
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatUint32, Offset: 0, ShaderLocation: 4},
			},
		},
	}

	r.boidPipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Boid Pipeline",
		Vertex: wgpu.VertexState{
			Module:     boidModule,
			EntryPoint: "vs_main",
			Buffers:    boidLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     boidModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depthState(depthFormat, true, wgpu.CompareFunctionLess),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("boid pipeline: %w", err)
	}

	r.linePipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "GuidingLine Pipeline",
		Vertex: wgpu.VertexState{
			Module:     lineModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: 16, // vec4 endpoints, exactly as the hunt kernel writes them
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     lineModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyLineStrip,
		},
		DepthStencil: depthState(depthFormat, true, wgpu.CompareFunctionLess),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("line pipeline: %w", err)
	}

	// Background never writes or tests depth, so it can never occlude.
	r.bgPipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Background Pipeline",
		Vertex: wgpu.VertexState{
			Module:     bgModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     bgModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		DepthStencil: depthState(depthFormat, false, wgpu.CompareFunctionAlways),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("background pipeline: %w", err)
	}

	// Scene uniforms, one per camera.
	if r.sceneBuf, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SceneUB",
		Contents: packScene(mgl32.Ident4(), false),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return nil, fmt.Errorf("scene uniform: %w", err)
	}
	if r.pipSceneBuf, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "PIPSceneUB",
		Contents: packScene(mgl32.Ident4(), false),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return nil, fmt.Errorf("pip scene uniform: %w", err)
	}

	if r.boidSceneBind, err = sceneBindGroup(device, r.boidPipeline, r.sceneBuf, "BoidSceneBG"); err != nil {
		return nil, err
	}
	if r.pipSceneBind, err = sceneBindGroup(device, r.boidPipeline, r.pipSceneBuf, "PIPSceneBG"); err != nil {
		return nil, err
	}
	if r.lineSceneBind, err = sceneBindGroup(device, r.linePipeline, r.sceneBuf, "LineSceneBG"); err != nil {
		return nil, err
	}

	// Shared meshes.
	boidMesh := core.DartMesh(0.5)
	predMesh := core.DartMesh(2.0)
	r.boidVertexCount = uint32(len(boidMesh))
	r.predVertexCount = uint32(len(predMesh))
	if r.boidVB, err = meshBuffer(device, "BoidMesh", boidMesh); err != nil {
		return nil, err
	}
	if r.predatorVB, err = meshBuffer(device, "PredatorMesh", predMesh); err != nil {
		return nil, err
	}

	if err = r.createSky(device, queue); err != nil {
		return nil, err
	}

	return r, nil
}

func depthState(format wgpu.TextureFormat, write bool, compare wgpu.CompareFunction) *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: write,
		DepthCompare:      compare,
		StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilReadMask:   0xFFFFFFFF,
		StencilWriteMask:  0xFFFFFFFF,
	}
}

func sceneBindGroup(device *wgpu.Device, pipeline *wgpu.RenderPipeline, buf *wgpu.Buffer, label string) (*wgpu.BindGroup, error) {
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label,
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return bg, nil
}

func meshBuffer(device *wgpu.Device, label string, verts []core.MeshVertex) (*wgpu.Buffer, error) {
	size := len(verts) * int(unsafe.Sizeof(core.MeshVertex{}))
	buf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), size),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return buf, nil
}

func (r *RenderGraph) createSky(device *wgpu.Device, queue *wgpu.Queue) error {
	img := core.SkyGradient(256, 256,
		color.RGBA{R: 18, G: 32, B: 68, A: 255},
		color.RGBA{R: 168, G: 196, B: 228, A: 255})

	extent := wgpu.Extent3D{Width: 256, Height: 256, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "SkyTexture",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("sky texture: %w", err)
	}
	r.skyTexture = tex

	bounds := img.Bounds()
	if err := queue.WriteTexture(
		tex.AsImageCopy(),
		img.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: uint32(bounds.Dy()),
		},
		&extent,
	); err != nil {
		return fmt.Errorf("sky upload: %w", err)
	}

	if r.skyView, err = tex.CreateView(nil); err != nil {
		return fmt.Errorf("sky view: %w", err)
	}

	if r.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	}); err != nil {
		return fmt.Errorf("sky sampler: %w", err)
	}

	if r.backgroundBind, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "BackgroundBG",
		Layout: r.bgPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: r.skyView},
			{Binding: 1, Sampler: r.sampler},
		},
	}); err != nil {
		return fmt.Errorf("background bind group: %w", err)
	}

	return nil
}

// WriteScene uploads the primary camera transform for this frame.
func (r *RenderGraph) WriteScene(viewProj mgl32.Mat4, lowPerf bool) {
	r.queue.WriteBuffer(r.sceneBuf, 0, packScene(viewProj, lowPerf))
}

// WritePIPScene uploads the chase camera transform for the inset pass.
func (r *RenderGraph) WritePIPScene(viewProj mgl32.Mat4, lowPerf bool) {
	r.queue.WriteBuffer(r.pipSceneBuf, 0, packScene(viewProj, lowPerf))
}

// Encode records all draw passes. parity selects which side of the
// ping-pong holds this frame's freshly computed state.
func (r *RenderGraph) Encode(encoder *wgpu.CommandEncoder, colorView, depthView *wgpu.TextureView, bufs *BoidBuffers, parity int, activeCount uint32, width, height uint32) {
	dst := 1 - parity

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "MainPass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       colorView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.02, G: 0.03, B: 0.07, A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depthView,
			DepthClearValue: 1,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
		},
	})

	// (a) background
	pass.SetPipeline(r.bgPipeline)
	pass.SetBindGroup(0, r.backgroundBind, nil)
	pass.Draw(3, 1, 0, 0)

	// (b) instanced boids
	r.drawAgents(pass, r.boidSceneBind, bufs, dst, activeCount)

	// (c) predator
	pass.SetPipeline(r.boidPipeline)
	pass.SetBindGroup(0, r.boidSceneBind, nil)
	pass.SetVertexBuffer(0, r.predatorVB, 0, r.predatorVB.GetSize())
	pass.SetVertexBuffer(1, bufs.PredatorPos, 0, bufs.PredatorPos.GetSize())
	pass.SetVertexBuffer(2, bufs.PredatorVel, 0, bufs.PredatorVel.GetSize())
	pass.SetVertexBuffer(3, bufs.PredatorPhase, 0, bufs.PredatorPhase.GetSize())
	pass.SetVertexBuffer(4, bufs.PredatorFlags, 0, bufs.PredatorFlags.GetSize())
	pass.Draw(r.predVertexCount, 1, 0, 0)

	// (d) guiding line
	pass.SetPipeline(r.linePipeline)
	pass.SetBindGroup(0, r.lineSceneBind, nil)
	pass.SetVertexBuffer(0, bufs.GuidingLine, 0, bufs.GuidingLine.GetSize())
	pass.Draw(2, 1, 0, 0)

	pass.End()

	if !r.PIPEnabled || width == 0 || height == 0 {
		return
	}

	// (e) picture-in-picture: same boid pipeline, chase camera, corner
	// viewport. Loads the framebuffer instead of clearing it.
	pipW := float32(width) * PIPFraction
	pipH := float32(height) * PIPFraction
	pipX := float32(width) - pipW - PIPMargin
	pipY := float32(height) - pipH - PIPMargin
	if pipX < 0 || pipY < 0 {
		return
	}

	pip := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "PIPPass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    colorView,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:         depthView,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		},
	})
	pip.SetViewport(pipX, pipY, pipW, pipH, 0, 1)
	pip.SetScissorRect(uint32(pipX), uint32(pipY), uint32(pipW), uint32(pipH))
	r.drawAgents(pip, r.pipSceneBind, bufs, dst, activeCount)
	pip.End()
}

func (r *RenderGraph) drawAgents(pass *wgpu.RenderPassEncoder, sceneBind *wgpu.BindGroup, bufs *BoidBuffers, dst int, activeCount uint32) {
	if activeCount == 0 {
		return
	}
	pass.SetPipeline(r.boidPipeline)
	pass.SetBindGroup(0, sceneBind, nil)
	pass.SetVertexBuffer(0, r.boidVB, 0, r.boidVB.GetSize())
	pass.SetVertexBuffer(1, bufs.Positions[dst], 0, bufs.Positions[dst].GetSize())
	pass.SetVertexBuffer(2, bufs.Velocities[dst], 0, bufs.Velocities[dst].GetSize())
	pass.SetVertexBuffer(3, bufs.Phases, 0, bufs.Phases.GetSize())
	pass.SetVertexBuffer(4, bufs.Flags, 0, bufs.Flags.GetSize())
	pass.Draw(r.boidVertexCount, activeCount, 0, 0)
}

// Destroy releases the graph's GPU objects exactly once.
func (r *RenderGraph) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true

	for _, buf := range []*wgpu.Buffer{r.sceneBuf, r.pipSceneBuf, r.boidVB, r.predatorVB} {
		if buf != nil {
			buf.Release()
		}
	}
	if r.skyView != nil {
		r.skyView.Release()
	}
	if r.skyTexture != nil {
		r.skyTexture.Release()
	}
	if r.sampler != nil {
		r.sampler.Release()
	}
}
