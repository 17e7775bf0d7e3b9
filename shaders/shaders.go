package shaders

import (
	_ "embed"
	"os"
	"path/filepath"
)

//go:embed flock.wgsl
var FlockWGSL string

//go:embed hunt.wgsl
var HuntWGSL string

//go:embed boid.wgsl
var BoidWGSL string

//go:embed line.wgsl
var LineWGSL string

//go:embed background.wgsl
var BackgroundWGSL string

// Set bundles the shader sources the pipeline consumes.
type Set struct {
	Flock      string
	Hunt       string
	Boid       string
	Line       string
	Background string
}

// Default returns the embedded sources.
func Default() Set {
	return Set{
		Flock:      FlockWGSL,
		Hunt:       HuntWGSL,
		Boid:       BoidWGSL,
		Line:       LineWGSL,
		Background: BackgroundWGSL,
	}
}

// Load reads .wgsl overrides from dir (flock.wgsl, hunt.wgsl, ...).
// Any file that is missing or unreadable falls back to the embedded
// source, so a broken override directory degrades instead of failing.
func Load(dir string) Set {
	s := Default()
	if dir == "" {
		return s
	}
	s.Flock = overrideOr(dir, "flock.wgsl", s.Flock)
	s.Hunt = overrideOr(dir, "hunt.wgsl", s.Hunt)
	s.Boid = overrideOr(dir, "boid.wgsl", s.Boid)
	s.Line = overrideOr(dir, "line.wgsl", s.Line)
	s.Background = overrideOr(dir, "background.wgsl", s.Background)
	return s
}

func overrideOr(dir, name, fallback string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil || len(data) == 0 {
		return fallback
	}
	return string(data)
}
