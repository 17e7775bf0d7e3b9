package core

// MeshVertex matches the WGSL vertex input of the boid pipeline.
type MeshVertex struct {
	Pos [3]float32
}

// DartMesh builds the shared bird mesh: a flat dart pointing down -Z
// with two swept-back wings, as a triangle list. scale is the half
// length of the body. The predator reuses the same shape at a larger
// scale.
func DartMesh(scale float32) []MeshVertex {
	s := scale
	nose := [3]float32{0, 0, -s}
	tail := [3]float32{0, 0.15 * s, s * 0.6}
	keel := [3]float32{0, -0.2 * s, s * 0.4}
	leftTip := [3]float32{-s, 0, s * 0.5}
	rightTip := [3]float32{s, 0, s * 0.5}

	return []MeshVertex{
		// left wing
		{nose}, {leftTip}, {tail},
		// right wing
		{nose}, {tail}, {rightTip},
		// keel, both sides
		{nose}, {tail}, {keel},
		{nose}, {keel}, {tail},
	}
}
