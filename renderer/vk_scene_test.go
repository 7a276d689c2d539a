package renderer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"GPU_scene_renderer/buffers"
	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/gfx/gfxtest"
	"GPU_scene_renderer/model"
	"GPU_scene_renderer/renderpass"
	"GPU_scene_renderer/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	dev    *gfxtest.Device
	queue  *deletion.Queue
	camera *buffers.UniformBufferSet
	r      *SceneRenderer
}

func newHarness(t *testing.T, frames uint32) *harness {
	t.Helper()
	dev := gfxtest.NewDevice()
	q := deletion.New(dev, frames)
	h := &harness{
		dev:    dev,
		queue:  q,
		camera: buffers.NewUniformBufferSet(dev, q, frames, model.CameraUniformSize),
		r:      NewSceneRenderer(dev, q, frames, Options{Extent: gfx.Extent{Width: 320, Height: 240}, ShaderDir: "shaders"}),
	}
	require.NoError(t, h.r.Initialize(h.camera))
	return h
}

func mesh(vertices, indices int) *model.Mesh {
	return model.NewMesh(make([]model.Vertex, vertices), make([]uint32, indices))
}

func buildScene(meshes ...*model.Mesh) *scene.Builder {
	b := scene.NewBuilder()
	for i, m := range meshes {
		b.AddMesh(m, scene.DefaultMaterial(), mgl32.Translate3D(float32(i), 0, 0))
	}
	return b
}

func decode[T any](t *testing.T, dev *gfxtest.Device, h gfx.Handle, n int) []T {
	t.Helper()
	info, ok := dev.Buffer(h)
	require.True(t, ok)
	out := make([]T, n)
	require.NoError(t, binary.Read(bytes.NewReader(info.Data), binary.LittleEndian, out))
	return out
}

func TestInitializeCreatesTargetsAndPasses(t *testing.T) {
	h := newHarness(t, 2)

	cubemap, ok := h.dev.RenderTarget(h.r.targets[0])
	require.True(t, ok)
	assert.True(t, cubemap.ClearColor)
	assert.Equal(t, gfx.Extent{Width: 320, Height: 240}, cubemap.Extent)
	for _, target := range h.r.targets[1:] {
		spec, ok := h.dev.RenderTarget(target)
		require.True(t, ok)
		assert.Equal(t, h.r.targets[0], spec.Share)
		assert.False(t, spec.ClearColor)
	}
	final, _ := h.dev.RenderTarget(h.r.targets[2])
	assert.True(t, final.Sampled)

	env, ok := h.dev.Texture(h.r.environment)
	require.True(t, ok)
	assert.True(t, env.Cube)

	assert.Equal(t, 3, h.dev.Live(gfx.Pipeline))
	assert.Equal(t, renderpass.Cubemap, h.r.cubemap.pass.Kind())
	assert.Equal(t, renderpass.Grid, h.r.grid.pass.Kind())
	assert.Equal(t, "Standard-Pipeline", h.r.final.pass.Name())
	spec, _ := h.dev.Pipeline(h.r.final.pass.Pipeline())
	assert.Equal(t, "shaders/final_color.vert.spv", spec.VertexShader)
	assert.Equal(t, 2, h.r.PendingStaticUploads())
}

func TestInitializeRejectsMismatchedCamera(t *testing.T) {
	dev := gfxtest.NewDevice()
	q := deletion.New(dev, 1)
	r := NewSceneRenderer(dev, q, 3, Options{})
	assert.Error(t, r.Initialize(buffers.NewUniformBufferSet(dev, q, 2, model.CameraUniformSize)))
	assert.Error(t, r.Initialize(nil))
}

func TestStaticGeometryUploadedOncePerSlot(t *testing.T) {
	h := newHarness(t, 3)
	data := buildScene(mesh(3, 3)).Build()

	h.r.RenderScene(data, 0)
	h.r.RenderScene(data, 0)
	assert.Equal(t, 1, h.r.cubemap.vertices.At(0).Uploads())
	assert.Equal(t, 1, h.r.grid.indirect.At(0).Uploads())
	assert.Equal(t, 0, h.r.cubemap.vertices.At(1).Uploads())
	assert.Equal(t, 2, h.r.PendingStaticUploads())

	h.r.RenderScene(data, 1)
	h.r.RenderScene(data, 2)
	assert.Equal(t, 0, h.r.PendingStaticUploads())

	h.r.InvalidateStaticGeometry()
	assert.Equal(t, 3, h.r.PendingStaticUploads())
	h.r.RenderScene(data, 0)
	assert.Equal(t, 2, h.r.cubemap.vertices.At(0).Uploads())
	assert.Equal(t, 2, h.r.PendingStaticUploads())

	commands := decode[buffers.DrawIndirectCommand](t, h.dev, h.r.cubemap.indirect.At(0).Handle(), 1)
	assert.Equal(t, buffers.DrawIndirectCommand{VertexCount: 36, InstanceCount: 1}, commands[0])
}

func TestRenderSceneIsIdempotentForUnchangedCounts(t *testing.T) {
	h := newHarness(t, 1)
	data := buildScene(mesh(4, 6), mesh(8, 36)).Build()

	h.r.RenderScene(data, 0)
	h.r.RenderScene(data, 0)

	assert.Equal(t, 1, h.r.final.vertices.At(0).Uploads())
	assert.Equal(t, 1, h.r.final.indices.At(0).Uploads())
	assert.Equal(t, 1, h.r.final.drawData.At(0).Uploads())
	assert.Equal(t, 1, h.r.materials.At(0).Uploads())
	assert.Equal(t, 1, h.r.final.indirect.At(0).Uploads())
	assert.Equal(t, 2, h.r.transforms.At(0).Uploads())
}

func TestSkipWhenEitherCountMatches(t *testing.T) {
	h := newHarness(t, 1)
	h.r.RenderScene(buildScene(mesh(4, 6)).Build(), 0)

	// same vertex count, different index count
	h.r.RenderScene(buildScene(mesh(4, 12)).Build(), 0)
	assert.Equal(t, 1, h.r.final.indices.At(0).Uploads())

	h.r.RenderScene(buildScene(mesh(5, 12)).Build(), 0)
	assert.Equal(t, 2, h.r.final.indices.At(0).Uploads())
}

func TestIndirectCommandsFollowDrawData(t *testing.T) {
	h := newHarness(t, 1)
	h.r.RenderScene(buildScene(mesh(10, 30), mesh(20, 60), mesh(5, 15)).Build(), 0)

	indirect := h.r.final.indirect.At(0)
	require.Equal(t, uint32(3), indirect.CommandCount())
	commands := decode[buffers.DrawIndirectCommand](t, h.dev, indirect.Handle(), 3)
	assert.Equal(t, []buffers.DrawIndirectCommand{
		{VertexCount: 30, InstanceCount: 1, FirstVertex: 0, FirstInstance: 0},
		{VertexCount: 60, InstanceCount: 1, FirstVertex: 0, FirstInstance: 1},
		{VertexCount: 15, InstanceCount: 1, FirstVertex: 0, FirstInstance: 2},
	}, commands)

	drawData := decode[DrawData](t, h.dev, h.r.final.drawData.At(0).Handle(), 3)
	assert.Equal(t, DrawData{Index: 1, TransformIndex: 1, VertexOffset: 10, IndexOffset: 30, VertexCount: 20, IndexCount: 60, MaterialIndex: 1}, drawData[1])

	transforms := decode[mgl32.Mat4](t, h.dev, h.r.transforms.At(0).Handle(), 3)
	assert.Equal(t, mgl32.Translate3D(2, 0, 0), transforms[2])
}

func TestTextureCountChangeMarksFinalPassDirtyOnce(t *testing.T) {
	h := newHarness(t, 1)
	b := buildScene(mesh(4, 6))
	b.AddTexture(101)
	b.AddTexture(102)
	cmd := h.dev.CommandBuffer(0)

	h.r.RenderScene(b.Build(), 0)
	assert.True(t, h.r.final.pass.IsDirty())
	h.r.EndScene(cmd, 0)
	assert.False(t, h.r.final.pass.IsDirty())

	h.r.RenderScene(b.Build(), 0)
	assert.False(t, h.r.final.pass.IsDirty())

	b.AddTexture(103)
	h.r.RenderScene(b.Build(), 0)
	assert.True(t, h.r.final.pass.IsDirty())
	h.r.EndScene(cmd, 0)

	bindings := h.dev.Bindings(h.r.final.pass.Pipeline(), 0)
	last := bindings[len(bindings)-1]
	assert.Equal(t, gfx.BindTextureArray, last.Kind)
	assert.Equal(t, []gfx.Handle{101, 102, 103}, last.Handles)
}

func TestEmptiedTextureArrayIsRebound(t *testing.T) {
	h := newHarness(t, 1)
	b := buildScene(mesh(4, 6))
	b.AddTexture(101)
	b.AddTexture(102)
	cmd := h.dev.CommandBuffer(0)

	h.r.RenderScene(b.Build(), 0)
	h.r.EndScene(cmd, 0)
	updates := h.dev.BindingUpdates(h.r.final.pass.Pipeline())

	data := b.Build()
	data.Textures = scene.Textures{}
	h.r.RenderScene(data, 0)
	require.True(t, h.r.final.pass.IsDirty())
	h.r.EndScene(cmd, 0)

	assert.Equal(t, updates+1, h.dev.BindingUpdates(h.r.final.pass.Pipeline()))
	bindings := h.dev.Bindings(h.r.final.pass.Pipeline(), 0)
	last := bindings[len(bindings)-1]
	assert.Equal(t, gfx.BindTextureArray, last.Kind)
	assert.Empty(t, last.Handles)
}

func TestEndSceneRecordsPassesInOrder(t *testing.T) {
	h := newHarness(t, 2)
	h.r.RenderScene(buildScene(mesh(4, 6), mesh(3, 3)).Build(), 1)

	cmd := h.dev.Commands(1)
	h.r.BeginCommands(cmd)
	h.r.EndScene(cmd, 1)

	var want []gfxtest.Op
	for i, g := range []*geometryPass{&h.r.cubemap, &h.r.grid, &h.r.final} {
		indirect := g.indirect.At(1)
		want = append(want,
			gfxtest.Op(fmt.Sprintf("begin target=%d pipeline=%d", h.r.targets[i], g.pass.Pipeline())),
			gfxtest.Op(fmt.Sprintf("bind pipeline=%d frame=1", g.pass.Pipeline())),
			gfxtest.Op(fmt.Sprintf("draw buffer=%d count=%d stride=16", indirect.Handle(), indirect.CommandCount())),
			"end-pass",
		)
	}
	assert.Equal(t, want, cmd.Ops())
	assert.True(t, cmd.Ended())
	assert.Equal(t, uint32(2), h.r.final.indirect.At(1).CommandCount())
}

func TestCameraUploadedPerFrame(t *testing.T) {
	h := newHarness(t, 2)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, -2}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	h.r.StartSceneVec3(mgl32.Vec3{0, 0, -2}, view, mgl32.Ident4())
	h.r.RenderScene(buildScene().Build(), 1)

	u := model.CameraUniform{View: view, Projection: mgl32.Ident4(), Position: mgl32.Vec4{0, 0, -2, 1}}
	info, ok := h.dev.Buffer(h.camera.At(1).Handle())
	require.True(t, ok)
	assert.Equal(t, u.Bytes(), info.Data)
	assert.Equal(t, 0, h.camera.At(0).Uploads())
}

func TestSetViewportSizeResizesEveryTarget(t *testing.T) {
	h := newHarness(t, 1)
	h.r.SetViewportSize(800, 600)
	for _, target := range h.r.targets {
		assert.Equal(t, 1, h.dev.Resizes(target))
	}
	spec, _ := h.dev.RenderTarget(h.r.targets[0])
	assert.Equal(t, gfx.Extent{Width: 800, Height: 600}, spec.Extent)
	assert.NotEqual(t, gfx.NullHandle, h.r.OutputImage())
}

func TestSetFrameCountRebuildsSlots(t *testing.T) {
	h := newHarness(t, 2)
	data := buildScene(mesh(4, 6)).Build()
	h.r.RenderScene(data, 1)
	assert.Panics(t, func() { h.r.RenderScene(data, 2) })

	camera := buffers.NewUniformBufferSet(h.dev, h.queue, 3, model.CameraUniformSize)
	require.NoError(t, h.r.SetFrameCount(camera))
	h.queue.Flush()
	assert.Equal(t, uint32(3), h.r.Frames())
	assert.Equal(t, 3, h.r.PendingStaticUploads())
	assert.Equal(t, 3, h.dev.Live(gfx.Pipeline))

	h.r.RenderScene(data, 2)
	cmd := h.dev.CommandBuffer(2)
	h.r.EndScene(cmd, 2)
	assert.Equal(t, uint32(1), h.r.final.indirect.At(2).CommandCount())

	assert.Error(t, h.r.SetFrameCount(nil))
}

func TestDeinitializeReleasesResources(t *testing.T) {
	h := newHarness(t, 2)
	h.r.RenderScene(buildScene(mesh(4, 6)).Build(), 0)

	h.r.Deinitialize()
	h.queue.Flush()

	assert.Equal(t, 0, h.dev.Live(gfx.Pipeline))
	assert.Equal(t, 3, h.dev.Destroyed(gfx.RenderTarget))
	assert.Equal(t, 1, h.dev.Destroyed(gfx.Texture))
	// only the caller owned camera buffers remain
	assert.Equal(t, 2, h.dev.Live(gfx.Buffer))
	assert.Panics(t, func() { h.r.RenderScene(buildScene().Build(), 0) })
}
