package renderpass

import (
	"testing"

	"GPU_scene_renderer/buffers"
	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/gfx/gfxtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev    *gfxtest.Device
	queue  *deletion.Queue
	camera *buffers.UniformBufferSet
	sets   map[Slot]*buffers.StorageBufferSet
	target gfx.Handle
}

func newFixture() *fixture {
	dev := gfxtest.NewDevice()
	q := deletion.New(dev, 1)
	f := &fixture{dev: dev, queue: q, camera: buffers.NewUniformBufferSet(dev, q, 2, 64), sets: map[Slot]*buffers.StorageBufferSet{}}
	for _, s := range []Slot{VertexSB, IndexSB, DrawDataSB, TransformSB, MatSB} {
		f.sets[s] = buffers.NewStorageBufferSet(dev, q, 2)
	}
	f.target, _ = dev.CreateRenderTarget(gfx.RenderTargetSpec{Name: "scene"})
	return f
}

func (f *fixture) pass(kind Kind) *RenderPass {
	return New(f.dev, f.queue, Spec{Name: kind.String(), Kind: kind, Target: f.target, Frames: 2})
}

func (f *fixture) bindGeometry(p *RenderPass) {
	p.SetSlot(UBCamera, f.camera)
	for _, s := range []Slot{VertexSB, IndexSB, DrawDataSB} {
		p.SetSlot(s, f.sets[s])
	}
}

type textures []gfx.Handle

func (t textures) Handles() []gfx.Handle { return t }

func TestSlotNames(t *testing.T) {
	for _, s := range FinalColor.Slots() {
		parsed, ok := ParseSlot(s.String())
		require.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	_, ok := ParseSlot("NormalSB")
	assert.False(t, ok)
}

func TestVerifyListsMissingInputs(t *testing.T) {
	f := newFixture()
	p := f.pass(Cubemap)
	p.SetSlot(UBCamera, f.camera)

	err := p.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VertexSB, IndexSB, DrawDataSB, CubemapTexture")
	assert.Error(t, p.Bake())

	p.SetSlot(VertexSB, f.sets[VertexSB])
	p.SetSlot(IndexSB, f.sets[IndexSB])
	p.SetSlot(DrawDataSB, f.sets[DrawDataSB])
	require.NoError(t, p.SetInput("CubemapTexture", Texture(7)))
	assert.NoError(t, p.Verify())
	assert.NoError(t, p.Bake())
}

func TestTextureArrayIsOptional(t *testing.T) {
	f := newFixture()
	p := f.pass(FinalColor)
	f.bindGeometry(p)
	p.SetSlot(TransformSB, f.sets[TransformSB])
	p.SetSlot(MatSB, f.sets[MatSB])
	assert.NoError(t, p.Verify())
}

func TestSetInputRejectsUnknownOrForeignSlots(t *testing.T) {
	f := newFixture()
	p := f.pass(Grid)

	assert.Error(t, p.SetInput("Normals", f.sets[VertexSB]))
	assert.Error(t, p.SetInput("TextureArray", Textures{Source: textures{1}}))
	assert.Panics(t, func() { p.SetSlot(MatSB, f.sets[MatSB]) })
	assert.NoError(t, p.SetInput("VertexSB", f.sets[VertexSB]))
}

func TestBakeDeclaresLayout(t *testing.T) {
	f := newFixture()
	p := f.pass(Grid)
	f.bindGeometry(p)
	require.NoError(t, p.Verify())
	require.NoError(t, p.Bake())

	spec, ok := f.dev.Pipeline(p.Pipeline())
	require.True(t, ok)
	assert.Equal(t, f.target, spec.Target)
	assert.Equal(t, "grid", spec.Name)
	assert.Equal(t, []gfx.BindingLayout{
		{Binding: 0, Kind: gfx.BindUniform, Count: 1},
		{Binding: 1, Kind: gfx.BindStorage, Count: 1},
		{Binding: 2, Kind: gfx.BindStorage, Count: 1},
		{Binding: 3, Kind: gfx.BindStorage, Count: 1},
	}, spec.Layout)
	assert.True(t, p.IsDirty())
}

func TestBindingsRefreshOnDirtyOrVersionChange(t *testing.T) {
	f := newFixture()
	p := f.pass(Grid)
	f.bindGeometry(p)
	require.NoError(t, p.Verify())
	require.NoError(t, p.Bake())

	cmd := f.dev.CommandBuffer(0)
	p.BindDescriptorSets(cmd, 0)
	assert.Equal(t, 1, f.dev.BindingUpdates(p.Pipeline()))
	assert.True(t, p.IsDirty(), "frame 1 is still pending")

	p.BindDescriptorSets(cmd, 0)
	assert.Equal(t, 1, f.dev.BindingUpdates(p.Pipeline()))

	p.BindDescriptorSets(cmd, 1)
	assert.False(t, p.IsDirty())
	assert.Equal(t, 2, f.dev.BindingUpdates(p.Pipeline()))

	buffers.Upload(f.sets[VertexSB].At(0), make([]float32, 64))
	p.BindDescriptorSets(cmd, 0)
	assert.Equal(t, 3, f.dev.BindingUpdates(p.Pipeline()))
	bindings := f.dev.Bindings(p.Pipeline(), 0)
	require.Len(t, bindings, 4)
	assert.Equal(t, f.sets[VertexSB].Binding(0), bindings[1].Handles)

	p.MarkDirty()
	assert.True(t, p.IsDirty())
}

func TestRecordingRequiresBake(t *testing.T) {
	f := newFixture()
	p := f.pass(Grid)
	cmd := f.dev.CommandBuffer(0)
	assert.Panics(t, func() { p.Begin(cmd, 0) })
	assert.Panics(t, func() { p.BindDescriptorSets(cmd, 0) })
}

func TestTextureArrayBinding(t *testing.T) {
	f := newFixture()
	p := f.pass(FinalColor)
	f.bindGeometry(p)
	p.SetSlot(TransformSB, f.sets[TransformSB])
	p.SetSlot(MatSB, f.sets[MatSB])
	require.NoError(t, p.SetInput("TextureArray", Textures{Source: textures{5, 6}}))
	require.NoError(t, p.Verify())
	require.NoError(t, p.Bake())

	p.BindDescriptorSets(f.dev.CommandBuffer(0), 0)
	bindings := f.dev.Bindings(p.Pipeline(), 0)
	require.Len(t, bindings, 7)
	assert.Equal(t, gfx.BindTextureArray, bindings[6].Kind)
	assert.Equal(t, []gfx.Handle{5, 6}, bindings[6].Handles)
}

func TestEmptyTextureArrayStillBound(t *testing.T) {
	f := newFixture()
	p := f.pass(FinalColor)
	f.bindGeometry(p)
	p.SetSlot(TransformSB, f.sets[TransformSB])
	p.SetSlot(MatSB, f.sets[MatSB])
	require.NoError(t, p.SetInput("TextureArray", Textures{Source: textures{5, 6}}))
	require.NoError(t, p.Verify())
	require.NoError(t, p.Bake())
	p.BindDescriptorSets(f.dev.CommandBuffer(0), 0)

	require.NoError(t, p.SetInput("TextureArray", Textures{Source: textures{}}))
	p.MarkDirty()
	p.BindDescriptorSets(f.dev.CommandBuffer(0), 0)

	bindings := f.dev.Bindings(p.Pipeline(), 0)
	require.Len(t, bindings, 7)
	assert.Equal(t, gfx.BindTextureArray, bindings[6].Kind)
	assert.Empty(t, bindings[6].Handles)
}

func TestResizeAndDispose(t *testing.T) {
	f := newFixture()
	p := f.pass(Grid)
	f.bindGeometry(p)
	require.NoError(t, p.Verify())
	require.NoError(t, p.Bake())

	p.ResizeRenderTarget(640, 480)
	assert.Equal(t, 1, f.dev.Resizes(f.target))
	assert.Equal(t, p.OutputColor(), p.OutputColor())

	p.Dispose()
	assert.False(t, p.Baked())
	f.queue.Flush()
	assert.Equal(t, 1, f.dev.Destroyed(gfx.Pipeline))
}
