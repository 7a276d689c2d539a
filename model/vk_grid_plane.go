package model

import "github.com/go-gl/mathgl/mgl32"

// GridPlane is the half extent of the editor grid quad.
const GridPlane = 100

// GridGeometry is one quad on the XZ plane; the grid lines are computed in the fragment shader.
func GridGeometry() *Mesh {
	up := mgl32.Vec3{0, 1, 0}
	v := []Vertex{
		{Position: mgl32.Vec3{-GridPlane, 0, -GridPlane}, Normal: up, TexCoord: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{-GridPlane, 0, GridPlane}, Normal: up, TexCoord: mgl32.Vec2{0, 1}},
		{Position: mgl32.Vec3{GridPlane, 0, GridPlane}, Normal: up, TexCoord: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{GridPlane, 0, -GridPlane}, Normal: up, TexCoord: mgl32.Vec2{1, 0}},
	}
	id := []uint32{
		0, 1, 2,
		2, 3, 0,
	}
	return NewMesh(v, id)
}
