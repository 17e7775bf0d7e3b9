package shaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultSourcesEmbedded(t *testing.T) {
	s := Default()
	for name, src := range map[string]string{
		"flock":      s.Flock,
		"hunt":       s.Hunt,
		"boid":       s.Boid,
		"line":       s.Line,
		"background": s.Background,
	} {
		if src == "" {
			t.Errorf("%s source is empty", name)
		}
	}

	// Entry point names the pipelines depend on.
	if !strings.Contains(s.Flock, "fn main") {
		t.Error("flock kernel entry point missing")
	}
	if !strings.Contains(s.Boid, "fn vs_main") || !strings.Contains(s.Boid, "fn fs_main") {
		t.Error("boid shader entry points missing")
	}
}

func TestLoadFallsBackWhenMissing(t *testing.T) {
	s := Load("/nonexistent/dir")
	if s != Default() {
		t.Error("missing override directory should yield the embedded set")
	}

	if s := Load(""); s != Default() {
		t.Error("empty directory should yield the embedded set")
	}
}

func TestLoadAppliesOverride(t *testing.T) {
	dir := t.TempDir()
	override := "// replaced\nfn vs_main() {}\n"
	if err := os.WriteFile(filepath.Join(dir, "boid.wgsl"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Load(dir)
	if s.Boid != override {
		t.Error("boid override not applied")
	}
	// Files not present in the directory keep the embedded source.
	if s.Flock != FlockWGSL {
		t.Error("flock source should stay embedded")
	}
}
