package model

import "github.com/go-gl/mathgl/mgl32"

// CubemapGeometry is the unit cube the sky box is drawn with. Normals point away from the center and double as
// sampling directions.
func CubemapGeometry() *Mesh {
	corners := []mgl32.Vec3{
		{-0.5, -0.5, -0.5}, // [0]
		{0.5, -0.5, -0.5},  // [1]
		{0.5, 0.5, -0.5},   // [2]
		{-0.5, 0.5, -0.5},  // [3]
		{-0.5, -0.5, 0.5},  // [4]
		{0.5, -0.5, 0.5},   // [5]
		{0.5, 0.5, 0.5},    // [6]
		{-0.5, 0.5, 0.5},   // [7]
	}
	uvs := []mgl32.Vec2{{1, 1}, {0, 1}, {0, 0}, {1, 0}}

	v := make([]Vertex, len(corners))
	for i, c := range corners {
		v[i] = Vertex{Position: c, Normal: c.Normalize(), TexCoord: uvs[i%4]}
	}

	id := []uint32{
		2, 1, 0, 0, 3, 2, // front
		5, 1, 6, 1, 2, 6, // right
		4, 5, 6, 7, 4, 6, // back
		4, 7, 0, 0, 7, 3, // left
		0, 1, 5, 5, 4, 0, // top
		3, 7, 6, 2, 3, 6, // bottom
	}
	return NewMesh(v, id)
}
