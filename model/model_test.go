package model

import (
	"testing"

	"GPU_scene_renderer/buffers"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayout(t *testing.T) {
	data, err := buffers.Encode([]Vertex{{}, {}})
	require.NoError(t, err)
	assert.Len(t, data, 2*VertexSize)
}

func TestCameraUniformSize(t *testing.T) {
	u := CameraUniform{View: mgl32.Ident4(), Projection: mgl32.Ident4(), Position: mgl32.Vec4{1, 2, 3, 1}}
	assert.Len(t, u.Bytes(), CameraUniformSize)
}

func TestStaticGeometry(t *testing.T) {
	cube := CubemapGeometry()
	assert.Len(t, cube.Vertices, 8)
	assert.Len(t, cube.Indices, 36)
	for _, i := range cube.Indices {
		assert.Less(t, int(i), len(cube.Vertices))
	}

	grid := GridGeometry()
	assert.Len(t, grid.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, grid.Indices)
}

func TestDirectionViewMovesCameraToOrigin(t *testing.T) {
	pos := mgl32.Vec3{1, 2, 3}
	view := NewDirectionView(pos, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0})
	got := mgl32.TransformCoordinate(pos, view)
	assert.InDelta(t, 0, got.Len(), 1e-5)

	ahead := mgl32.TransformCoordinate(pos.Add(mgl32.Vec3{0, 0, 5}), view)
	assert.InDelta(t, 5, ahead.Z(), 1e-5)
}

func TestTargetViewFallsBackOnDegenerateTarget(t *testing.T) {
	pos := mgl32.Vec3{0, 0, 0}
	assert.Equal(t, NewDirectionView(pos, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}), NewTargetView(pos, pos, mgl32.Vec3{0, -1, 0}))
}

func TestPerspectiveDepthRange(t *testing.T) {
	c := NewCamera(90, 0.1, 100)
	p := c.GetProjection()

	near := p.Mul4x1(mgl32.Vec4{0, 0, 0.1, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, 100, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)
}

func TestOrthographicMapsVolume(t *testing.T) {
	c := NewCamera(90, 1, 11)
	c.Projection = OrthographicProjection
	c.Aspect = 2
	p := c.GetProjection()

	corner := p.Mul4x1(mgl32.Vec4{2, -1, 11, 1})
	assert.InDelta(t, 1, corner.X(), 1e-5)
	assert.InDelta(t, -1, corner.Y(), 1e-5)
	assert.InDelta(t, 1, corner.Z(), 1e-5)
}

func TestCameraMoveAndTurn(t *testing.T) {
	c := NewCamera(60, 0.1, 10)
	c.Move(mgl32.Vec3{1, 0, 0})
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, c.Position())

	c.Turn(90, mgl32.Vec3{0, 1, 0})
	assert.InDelta(t, 1, c.LookDir.X(), 1e-5)
	assert.InDelta(t, 0, c.LookDir.Z(), 1e-5)

	c.SetTarget(mgl32.Vec3{1, 0, 5})
	assert.Equal(t, NewTargetView(c.Pos, mgl32.Vec3{1, 0, 5}, c.Up), c.GetView())
	c.ClearTarget()
	assert.Nil(t, c.LookTarget)
}

func TestMeshTransform(t *testing.T) {
	m := GridGeometry().Transform(mgl32.Translate3D(0, 2, 0))
	assert.InDelta(t, 2, m.Vertices[0].Position.Y(), 1e-5)
	assert.InDelta(t, 1, m.Vertices[0].Normal.Y(), 1e-5)
}

func TestTextures(t *testing.T) {
	assert.Len(t, SkyCubemap(4), 4*4*4*6)
	c := Checker(4, 2, [4]byte{255, 255, 255, 255}, [4]byte{0, 0, 0, 255})
	assert.Len(t, c, 64)
	assert.Equal(t, byte(0), c[2*4])
}
