package core

import (
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestChaseCamera_HoldsLastPose(t *testing.T) {
	c := NewChaseCamera()

	if c.HasPose() {
		t.Fatal("fresh camera claims a pose")
	}
	if c.View() != mgl32.Ident4() {
		t.Fatal("fresh camera view is not identity")
	}

	c.SetPose(mgl32.Vec3{10, 5, 0}, mgl32.Vec3{0, 0, 0})
	if !c.HasPose() {
		t.Fatal("pose not recorded")
	}
	view := c.View()

	// A degenerate pose (eye on top of target) must be ignored; the
	// previous transform survives.
	c.SetPose(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1})
	if c.View() != view {
		t.Error("degenerate pose overwrote the last good transform")
	}
	if c.Eye() != (mgl32.Vec3{10, 5, 0}) {
		t.Errorf("eye moved to %v on a rejected pose", c.Eye())
	}

	// A valid update replaces it.
	c.SetPose(mgl32.Vec3{-3, 2, 8}, mgl32.Vec3{0, 0, 0})
	if c.View() == view {
		t.Error("valid pose did not update the transform")
	}
}

func TestCameraState_ForwardMatchesView(t *testing.T) {
	c := NewCameraState()
	c.Yaw = 0
	c.Pitch = 0

	fwd := c.GetForward()
	if fwd.X() != 0 || fwd.Y() != 0 || fwd.Z() >= 0 {
		t.Fatalf("zeroed camera should face -Z, got %v", fwd)
	}

	right := c.GetRight()
	if right.X() <= 0 || right.Y() != 0 {
		t.Fatalf("zeroed camera right should be +X, got %v", right)
	}

	// View matrix must agree with the forward vector: a point ahead of
	// the camera lands in front (negative Z in view space).
	ahead := c.Position.Add(fwd.Mul(10))
	viewSpace := c.GetViewMatrix().Mul4x1(ahead.Vec4(1))
	if viewSpace.Z() >= 0 {
		t.Errorf("point ahead of camera has view-space z %v", viewSpace.Z())
	}
}

func TestDartMesh(t *testing.T) {
	verts := DartMesh(1)
	if len(verts)%3 != 0 {
		t.Fatalf("vertex count %d is not a triangle list", len(verts))
	}

	// The nose must point down -Z so the shader's velocity basis flies it
	// forward.
	minZ := float32(0)
	for _, v := range verts {
		if v.Pos[2] < minZ {
			minZ = v.Pos[2]
		}
	}
	if minZ >= 0 {
		t.Error("mesh has no vertex ahead of the origin")
	}

	// Scale is linear.
	big := DartMesh(2)
	for i := range verts {
		for k := 0; k < 3; k++ {
			if big[i].Pos[k] != verts[i].Pos[k]*2 {
				t.Fatalf("vertex %d not scaled linearly", i)
			}
		}
	}
}

func TestSkyGradient(t *testing.T) {
	img := SkyGradient(64, 32,
		color.RGBA{R: 10, G: 20, B: 200, A: 255},
		color.RGBA{R: 200, G: 220, B: 240, A: 255})

	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("unexpected bounds %v", b)
	}

	// Zenith at the top, horizon at the bottom: the blue channel falls
	// while red rises toward the bottom row.
	top := img.RGBAAt(32, 0)
	bottom := img.RGBAAt(32, 31)
	if top.B <= top.R {
		t.Errorf("top row does not look like zenith: %+v", top)
	}
	if bottom.R <= top.R {
		t.Errorf("gradient did not blend toward the horizon: top %+v bottom %+v", top, bottom)
	}
}
