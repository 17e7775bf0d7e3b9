package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/flock3d/flock/core"
	"github.com/flock3d/flock/gpu"
	"github.com/flock3d/flock/shaders"
	"github.com/flock3d/flock/sim"
)

const depthFormat = wgpu.TextureFormatDepth24Plus

// Options configures the application before Init.
type Options struct {
	Width     int
	Height    int
	Title     string
	Config    sim.Config
	Seed      int64
	Debug     bool
	ShaderDir string // optional on-disk WGSL overrides

	// OnReady fires once initialization completes. degraded reports
	// whether the minimal fallback configuration had to be used.
	OnReady func(degraded bool)
}

// App wires the window, the GPU pipeline and the simulation controllers
// into one frame loop.
type App struct {
	opts Options
	log  core.Logger

	window  *glfw.Window
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	config  *wgpu.SurfaceConfiguration

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	world     *sim.World
	pipeline  *gpu.Pipeline
	elastic   *sim.ElasticityController
	scheduler *sim.TargetScheduler
	pressure  *RuntimePressureSource
	simParams gpu.SimParams

	camera *core.CameraState
	chase  *core.ChaseCamera

	lastTime   float64
	lastCursor [2]float64
	dragging   bool

	// FPS title throttle
	fpsTime   float64
	fpsFrames int
}

// New prepares an App; nothing touches GLFW or the GPU until Init.
func New(opts Options, log core.Logger) *App {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	if opts.Title == "" {
		opts.Title = "flock"
	}
	return &App{
		opts:   opts,
		log:    log,
		camera: core.NewCameraState(),
		chase:  core.NewChaseCamera(),
	}
}

// Init opens the window, brings up the device and allocates the whole
// GPU pipeline. Callers must run on the main OS thread.
func (a *App) Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(a.opts.Width, a.opts.Height, a.opts.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	a.window = win

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	a.surface = instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))

	a.adapter, err = instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}

	a.device, err = a.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Flock Device",
	})
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.queue = a.device.GetQueue()

	caps := a.surface.GetCapabilities(a.adapter)
	w, h := win.GetFramebufferSize()
	a.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(w),
		Height:      uint32(h),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.surface.Configure(a.adapter, a.device, a.config)

	if err = a.createDepth(uint32(w), uint32(h)); err != nil {
		return err
	}

	src := shaders.Default()
	if a.opts.ShaderDir != "" {
		src = shaders.Load(a.opts.ShaderDir)
	}

	a.world = sim.NewWorld(a.opts.Config, a.opts.Seed)
	a.pipeline, err = gpu.NewPipeline(a.device, a.queue, a.config.Format, depthFormat, src, a.world, a.log)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if a.pipeline.Degraded {
		a.log.Warnf("running degraded at capacity %d", a.world.Cfg.MaxCount)
	}

	a.elastic = sim.NewElasticityController(a.world.Cfg, a.log)
	a.elastic.CountChanged = func(n int) {
		a.world.SetActive(n)
		a.pipeline.Buffers.WriteActiveFlags(n)
	}
	a.scheduler = sim.NewTargetScheduler(a.world.Cfg.TargetInterval, a.opts.Seed+1)
	a.pressure = NewRuntimePressureSource()
	a.simParams = gpu.NewSimParams(a.world.Cfg)

	a.pipeline.Buffers.WriteTargetIndex(a.scheduler.Target())

	win.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) { a.resize(w, h) })
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button == glfw.MouseButtonRight {
			a.dragging = action == glfw.Press
			a.lastCursor[0], a.lastCursor[1] = win.GetCursorPos()
		}
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if !a.dragging {
			return
		}
		dx := x - a.lastCursor[0]
		dy := y - a.lastCursor[1]
		a.lastCursor = [2]float64{x, y}
		a.camera.Yaw += float32(dx) * a.camera.Sensitivity
		a.camera.Pitch -= float32(dy) * a.camera.Sensitivity
		if a.camera.Pitch > 1.5 {
			a.camera.Pitch = 1.5
		}
		if a.camera.Pitch < -1.5 {
			a.camera.Pitch = -1.5
		}
	})
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
		if key == glfw.KeyP && action == glfw.Press {
			a.pipeline.Render.PIPEnabled = !a.pipeline.Render.PIPEnabled
		}
		if key == glfw.KeyLeftBracket && action == glfw.Press {
			a.world.Params.CohesionWeight *= 0.8
			a.pipeline.Buffers.WriteFlockParams(a.world.Params)
		}
		if key == glfw.KeyRightBracket && action == glfw.Press {
			a.world.Params.CohesionWeight *= 1.25
			a.pipeline.Buffers.WriteFlockParams(a.world.Params)
		}
	})

	a.lastTime = glfw.GetTime()
	if a.opts.OnReady != nil {
		a.opts.OnReady(a.pipeline.Degraded)
	}
	return nil
}

func (a *App) createDepth(w, h uint32) error {
	if w == 0 || h == 0 {
		return nil
	}
	if a.depthView != nil {
		a.depthView.Release()
	}
	if a.depthTexture != nil {
		a.depthTexture.Release()
	}

	var err error
	a.depthTexture, err = a.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth",
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture: %w", err)
	}
	a.depthView, err = a.depthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("depth view: %w", err)
	}
	return nil
}

func (a *App) resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.config.Width = uint32(w)
	a.config.Height = uint32(h)
	a.surface.Configure(a.adapter, a.device, a.config)
	if err := a.createDepth(uint32(w), uint32(h)); err != nil {
		a.log.Errorf("resize: %v", err)
	}
}

// Run drives the frame loop until the window closes.
func (a *App) Run() {
	for !a.window.ShouldClose() {
		glfw.PollEvents()
		a.Frame()
	}
}

// hostVisible reports whether the window can actually show frames.
func (a *App) hostVisible() bool {
	return a.window.GetAttrib(glfw.Iconified) == glfw.False &&
		a.window.GetAttrib(glfw.Visible) == glfw.True
}

// Frame advances the controllers, uploads the per-frame uniforms,
// records all GPU work and presents.
func (a *App) Frame() {
	now := glfw.GetTime()
	realDt := now - a.lastTime
	a.lastTime = now

	// Controllers run on unscaled wall-clock time.
	a.elastic.ObserveFrame(float32(realDt))
	percent, ev := a.pressure.Poll(now)
	a.elastic.ReportUsage(percent)
	if ev != nil {
		a.elastic.OnMemoryPressure(*ev, now)
	}
	a.elastic.Update(now)

	active := a.elastic.ActiveCount()
	if target, changed := a.scheduler.Tick(realDt, active); changed {
		a.pipeline.Buffers.WriteTargetIndex(target)
	}

	a.moveCamera(float32(realDt))

	dt := a.world.Cfg.ClampDelta(float32(realDt), a.hostVisible())
	a.simParams.Dt = dt
	a.simParams.TimeScale = a.elastic.TimeScale()
	a.simParams.ActiveCount = uint32(active)
	a.pipeline.Buffers.WriteSimParams(a.simParams)

	lowPerf := a.elastic.LowPerformance()
	viewProj := a.projection().Mul4(a.camera.GetViewMatrix())
	a.pipeline.Render.WriteScene(viewProj, lowPerf)

	if predator, target, ok := a.pipeline.ChasePose(); ok {
		a.chase.SetPose(predator, target)
	}
	a.pipeline.Render.WritePIPScene(a.projection().Mul4(a.chase.View()), lowPerf)

	nextTexture, err := a.surface.GetCurrentTexture()
	if err != nil {
		a.log.Errorf("acquire surface texture: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.log.Errorf("surface view: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		a.log.Errorf("command encoder: %v", err)
		return
	}

	a.pipeline.EncodeFrame(encoder, view, a.depthView, uint32(active), a.config.Width, a.config.Height)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.log.Errorf("encoder finish: %v", err)
		return
	}
	a.queue.Submit(cmd)
	a.surface.Present()

	a.pipeline.AfterSubmit()
	a.updateTitle(now, realDt, active)
}

// ChaseView exposes the secondary camera's current view transform for
// external picture-in-picture consumers.
func (a *App) ChaseView() mgl32.Mat4 { return a.chase.View() }

func (a *App) projection() mgl32.Mat4 {
	aspect := float32(a.config.Width) / float32(a.config.Height)
	if aspect == 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 2000)
}

func (a *App) moveCamera(dt float32) {
	move := a.camera.Speed * dt
	if a.window.GetKey(glfw.KeyW) == glfw.Press {
		a.camera.Position = a.camera.Position.Add(a.camera.GetForward().Mul(move))
	}
	if a.window.GetKey(glfw.KeyS) == glfw.Press {
		a.camera.Position = a.camera.Position.Sub(a.camera.GetForward().Mul(move))
	}
	if a.window.GetKey(glfw.KeyD) == glfw.Press {
		a.camera.Position = a.camera.Position.Add(a.camera.GetRight().Mul(move))
	}
	if a.window.GetKey(glfw.KeyA) == glfw.Press {
		a.camera.Position = a.camera.Position.Sub(a.camera.GetRight().Mul(move))
	}
	if a.window.GetKey(glfw.KeySpace) == glfw.Press {
		a.camera.Position = a.camera.Position.Add(mgl32.Vec3{0, move, 0})
	}
	if a.window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		a.camera.Position = a.camera.Position.Sub(mgl32.Vec3{0, move, 0})
	}
}

func (a *App) updateTitle(now, realDt float64, active int) {
	a.fpsFrames++
	a.fpsTime += realDt
	if a.fpsTime < 1 {
		return
	}
	fps := float64(a.fpsFrames) / a.fpsTime
	a.fpsFrames = 0
	a.fpsTime = 0

	status := ""
	if a.elastic.Throttled() {
		status = " [throttled]"
	} else if a.elastic.LowPerformance() {
		status = " [low perf]"
	}
	a.window.SetTitle(fmt.Sprintf("%s | %.0f fps | %d birds%s", a.opts.Title, fps, active, status))
}

// Destroy releases everything Init created, in reverse order.
func (a *App) Destroy() {
	if a.pipeline != nil {
		a.pipeline.Destroy()
		a.pipeline = nil
	}
	if a.depthView != nil {
		a.depthView.Release()
		a.depthView = nil
	}
	if a.depthTexture != nil {
		a.depthTexture.Release()
		a.depthTexture = nil
	}
	if a.queue != nil {
		a.queue.Release()
		a.queue = nil
	}
	if a.device != nil {
		a.device.Release()
		a.device = nil
	}
	if a.adapter != nil {
		a.adapter.Release()
		a.adapter = nil
	}
	if a.surface != nil {
		a.surface.Release()
		a.surface = nil
	}
	if a.window != nil {
		a.window.Destroy()
		a.window = nil
	}
	glfw.Terminate()
}
