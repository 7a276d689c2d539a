// Package model defines the vertex layout, the camera and the static geometry of the scene passes.
package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is read by the shaders from a storage buffer, so the layout is tightly packed (32 bytes).
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

const VertexSize = 32

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func NewMesh(v []Vertex, idx []uint32) *Mesh {
	return &Mesh{Vertices: v, Indices: idx}
}

// Transform returns a copy of the mesh with positions moved by m and normals rotated accordingly.
func (m *Mesh) Transform(t mgl32.Mat4) *Mesh {
	normal := t.Mat3().Inv().Transpose()
	out := &Mesh{Vertices: make([]Vertex, len(m.Vertices)), Indices: append([]uint32(nil), m.Indices...)}
	for i, v := range m.Vertices {
		out.Vertices[i] = Vertex{
			Position: mgl32.TransformCoordinate(v.Position, t),
			Normal:   normal.Mul3x1(v.Normal).Normalize(),
			TexCoord: v.TexCoord,
		}
	}
	return out
}
