// Package scene holds the flattened snapshot of a scene that the renderer consumes once per frame.
package scene

import (
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/model"

	"github.com/go-gl/mathgl/mgl32"
)

type NodeID uint32

// MeshRange locates the geometry of one node inside the shared vertex and index arrays.
type MeshRange struct {
	VertexOffset uint32
	IndexOffset  uint32
	VertexCount  uint32
	IndexCount   uint32
}

// Material is read by the final color pass from a storage buffer. Texture indexes are -1 when unset.
type Material struct {
	Albedo    [4]float32
	Roughness float32
	Metallic  float32
	AlbedoMap int32
	NormalMap int32
}

func DefaultMaterial() Material {
	return Material{Albedo: [4]float32{1, 1, 1, 1}, Roughness: 0.5, AlbedoMap: -1, NormalMap: -1}
}

type TextureCollection interface {
	Size() int
	Handles() []gfx.Handle
}

// Textures is a slice backed TextureCollection.
type Textures []gfx.Handle

func (t Textures) Size() int { return len(t) }

func (t Textures) Handles() []gfx.Handle { return t }

// SceneRawData is iterated in Nodes order. Every node has an entry in MeshRanges, Materials and Transforms.
type SceneRawData struct {
	Vertices   []model.Vertex
	Indices    []uint32
	Nodes      []NodeID
	MeshRanges map[NodeID]MeshRange
	Materials  map[NodeID]Material
	Transforms map[NodeID]mgl32.Mat4
	Textures   TextureCollection
}

// TextureCount treats a missing collection as empty.
func (d *SceneRawData) TextureCount() int {
	if d.Textures == nil {
		return 0
	}
	return d.Textures.Size()
}
