package scene

import (
	"testing"

	"GPU_scene_renderer/model"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderComputesRanges(t *testing.T) {
	b := NewBuilder()
	cube := b.AddMesh(model.CubemapGeometry(), DefaultMaterial(), mgl32.Ident4())
	grid := b.AddMesh(model.GridGeometry(), DefaultMaterial(), mgl32.Translate3D(0, 1, 0))

	d := b.Build()
	assert.Equal(t, []NodeID{cube, grid}, d.Nodes)
	assert.Equal(t, MeshRange{VertexOffset: 0, IndexOffset: 0, VertexCount: 8, IndexCount: 36}, d.MeshRanges[cube])
	assert.Equal(t, MeshRange{VertexOffset: 8, IndexOffset: 36, VertexCount: 4, IndexCount: 6}, d.MeshRanges[grid])
	assert.Len(t, d.Vertices, 12)
	assert.Len(t, d.Indices, 42)
	assert.Equal(t, 0, d.TextureCount())
}

func TestBuildIsASnapshot(t *testing.T) {
	b := NewBuilder()
	id := b.AddMesh(model.GridGeometry(), DefaultMaterial(), mgl32.Ident4())
	b.AddTexture(4)
	d := b.Build()

	require.NoError(t, b.SetTransform(id, mgl32.Translate3D(1, 0, 0)))
	b.AddMesh(model.GridGeometry(), DefaultMaterial(), mgl32.Ident4())
	assert.Equal(t, int32(1), b.AddTexture(5))

	assert.Equal(t, mgl32.Ident4(), d.Transforms[id])
	assert.Len(t, d.Nodes, 1)
	assert.Equal(t, 1, d.TextureCount())
	assert.Equal(t, 2, b.Build().TextureCount())
}

func TestUnknownNode(t *testing.T) {
	b := NewBuilder()
	assert.Error(t, b.SetTransform(3, mgl32.Ident4()))
	assert.Error(t, b.SetMaterial(3, DefaultMaterial()))
}
