package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is the primary spectator camera: a position with yaw/pitch
// orientation, Y-up.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 20, 90},
		Yaw:         0,
		Pitch:       -0.15,
		Speed:       30.0,
		Sensitivity: 0.003,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	target := eye.Add(c.GetForward())
	return mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
}

// ChaseCamera is the secondary, predator's-eye camera that feeds the
// picture-in-picture pass. Its pose is updated from asynchronous GPU
// readback, so it is eventually consistent: until a readback resolves it
// holds the last known transform.
type ChaseCamera struct {
	eye     mgl32.Vec3
	target  mgl32.Vec3
	view    mgl32.Mat4
	hasPose bool
}

func NewChaseCamera() *ChaseCamera {
	return &ChaseCamera{view: mgl32.Ident4()}
}

// SetPose points the camera from the predator toward its target. A
// degenerate pose (coincident points) is ignored and the previous
// transform is kept.
func (c *ChaseCamera) SetPose(eye, target mgl32.Vec3) {
	if target.Sub(eye).LenSqr() < 1e-8 {
		return
	}
	c.eye = eye
	c.target = target
	c.view = mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	c.hasPose = true
}

// View returns the last known view matrix (identity before the first
// pose arrives).
func (c *ChaseCamera) View() mgl32.Mat4 { return c.view }

// Eye returns the last known camera position.
func (c *ChaseCamera) Eye() mgl32.Vec3 { return c.eye }

// HasPose reports whether at least one readback has landed.
func (c *ChaseCamera) HasPose() bool { return c.hasPose }
