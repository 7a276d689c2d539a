package scene

import (
	"maps"
	"slices"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/model"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Builder appends meshes into shared vertex and index arrays. Indices stay local to their mesh; the vertex shader
// adds the mesh's vertex offset.
type Builder struct {
	data SceneRawData
	next NodeID
}

func NewBuilder() *Builder {
	return &Builder{data: SceneRawData{
		MeshRanges: map[NodeID]MeshRange{},
		Materials:  map[NodeID]Material{},
		Transforms: map[NodeID]mgl32.Mat4{},
	}}
}

// AddMesh adds a node and returns its id.
func (b *Builder) AddMesh(mesh *model.Mesh, material Material, transform mgl32.Mat4) NodeID {
	id := b.next
	b.next++

	b.data.MeshRanges[id] = MeshRange{
		VertexOffset: uint32(len(b.data.Vertices)),
		IndexOffset:  uint32(len(b.data.Indices)),
		VertexCount:  uint32(len(mesh.Vertices)),
		IndexCount:   uint32(len(mesh.Indices)),
	}
	b.data.Vertices = append(b.data.Vertices, mesh.Vertices...)
	b.data.Indices = append(b.data.Indices, mesh.Indices...)
	b.data.Nodes = append(b.data.Nodes, id)
	b.data.Materials[id] = material
	b.data.Transforms[id] = transform
	return id
}

func (b *Builder) SetTransform(id NodeID, transform mgl32.Mat4) error {
	if _, ok := b.data.MeshRanges[id]; !ok {
		return errors.Errorf("unknown scene node %d", id)
	}
	b.data.Transforms[id] = transform
	return nil
}

func (b *Builder) SetMaterial(id NodeID, material Material) error {
	if _, ok := b.data.MeshRanges[id]; !ok {
		return errors.Errorf("unknown scene node %d", id)
	}
	b.data.Materials[id] = material
	return nil
}

func (b *Builder) AddTexture(h gfx.Handle) int32 {
	t, _ := b.data.Textures.(Textures)
	b.data.Textures = append(t, h)
	return int32(len(t))
}

func (b *Builder) Len() int { return len(b.data.Nodes) }

// Build returns a snapshot that later builder calls do not affect.
func (b *Builder) Build() *SceneRawData {
	out := &SceneRawData{
		Vertices:   slices.Clone(b.data.Vertices),
		Indices:    slices.Clone(b.data.Indices),
		Nodes:      slices.Clone(b.data.Nodes),
		MeshRanges: maps.Clone(b.data.MeshRanges),
		Materials:  maps.Clone(b.data.Materials),
		Transforms: maps.Clone(b.data.Transforms),
	}
	if t, ok := b.data.Textures.(Textures); ok {
		out.Textures = slices.Clone(t)
	}
	return out
}
