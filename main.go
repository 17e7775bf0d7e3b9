package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/flock3d/flock/app"
	"github.com/flock3d/flock/core"
	"github.com/flock3d/flock/sim"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	var (
		birds     = flag.Int("birds", 0, "initial bird count (0 = default)")
		width     = flag.Int("width", 1280, "window width")
		height    = flag.Int("height", 720, "window height")
		seed      = flag.Int64("seed", 42, "simulation seed")
		debug     = flag.Bool("debug", false, "enable debug logging")
		shaderDir = flag.String("shaders", "", "directory with WGSL overrides")
		headless  = flag.Bool("headless", false, "run the CPU simulation without a window")
		ticks     = flag.Int("ticks", 600, "tick count in headless mode")
	)
	flag.Parse()

	log := core.NewDefaultLogger("flock", *debug)

	cfg := sim.DefaultConfig()
	if *birds > 0 {
		cfg.BirdCount = *birds
		if cfg.BirdCount > cfg.MaxCount {
			cfg.MaxCount = cfg.BirdCount
		}
	}
	cfg.Validate()

	if *headless {
		if err := runHeadless(cfg, *seed, *ticks, log); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	a := app.New(app.Options{
		Width:     *width,
		Height:    *height,
		Title:     "flock",
		Config:    cfg,
		Seed:      *seed,
		Debug:     *debug,
		ShaderDir: *shaderDir,
	}, log)

	if err := a.Init(); err != nil {
		log.Errorf("init: %v", err)
		a.Destroy()
		os.Exit(1)
	}
	defer a.Destroy()

	log.Infof("starting with %d birds (capacity %d)", cfg.BirdCount, cfg.MaxCount)
	a.Run()
}

// runHeadless steps the reference CPU kernels at a fixed tick and
// reports basic flock statistics. Useful for profiling the simulation
// and for sanity checks on machines without a GPU.
func runHeadless(cfg sim.Config, seed int64, ticks int, log core.Logger) error {
	world := sim.NewWorld(cfg, seed)
	dt := cfg.TargetFrameTime

	log.Infof("headless: %d birds, %d ticks, dt=%.4f", world.Active, ticks, dt)
	for i := 0; i < ticks; i++ {
		world.Step(dt, 1)
	}

	var speedSum float64
	var center [3]float64
	for i := 0; i < world.Active; i++ {
		p := world.Positions[i]
		v := world.Velocities[i]
		for k := 0; k < 3; k++ {
			if math.IsNaN(float64(p[k])) || math.IsInf(float64(p[k]), 0) {
				return fmt.Errorf("agent %d position diverged after %d ticks", i, ticks)
			}
			center[k] += float64(p[k]) / float64(world.Active)
		}
		speedSum += float64(v.Len())
	}

	log.Infof("headless done: mean speed %.2f (limit %.2f), flock center (%.1f, %.1f, %.1f)",
		speedSum/float64(world.Active), cfg.SpeedLimit, center[0], center[1], center[2])
	return nil
}
