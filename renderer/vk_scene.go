// Package renderer turns scene snapshots into per-frame GPU buffers and indirect draws for the cubemap, grid and
// final color passes.
package renderer

import (
	"path/filepath"

	"GPU_scene_renderer/buffers"
	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"
	"GPU_scene_renderer/model"
	"GPU_scene_renderer/renderpass"
	"GPU_scene_renderer/scene"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Device is the part of gfx.Device the scene renderer creates resources with.
type Device interface {
	gfx.BufferDevice
	gfx.PipelineDevice
	gfx.ResourceDevice
}

type Options struct {
	Extent     gfx.Extent
	ClearColor [4]float32
	ShaderDir  string
	// EnvironmentSize is the edge length of the generated sky cubemap faces.
	EnvironmentSize uint32
}

// DrawData is read by the vertex shader through gl_InstanceIndex, which the indirect command sets to the record's
// index.
type DrawData struct {
	Index          uint32
	TransformIndex uint32
	VertexOffset   uint32
	IndexOffset    uint32
	VertexCount    uint32
	IndexCount     uint32
	MaterialIndex  uint32
}

type geometryPass struct {
	pass     *renderpass.RenderPass
	vertices *buffers.StorageBufferSet
	indices  *buffers.StorageBufferSet
	drawData *buffers.StorageBufferSet
	indirect *buffers.IndirectBufferSet
}

func (g *geometryPass) dispose() {
	g.pass.Dispose()
	g.vertices.Dispose()
	g.indices.Dispose()
	g.drawData.Dispose()
	g.indirect.Dispose()
}

// staticGeometry is uploaded once per frame slot.
type staticGeometry struct {
	mesh     *model.Mesh
	drawData []DrawData
	commands []buffers.DrawIndirectCommand
}

func newStaticGeometry(mesh *model.Mesh) staticGeometry {
	count := uint32(len(mesh.Indices))
	return staticGeometry{
		mesh:     mesh,
		drawData: []DrawData{{VertexCount: uint32(len(mesh.Vertices)), IndexCount: count}},
		commands: []buffers.DrawIndirectCommand{{VertexCount: count, InstanceCount: 1}},
	}
}

type SceneRenderer struct {
	dev    Device
	queue  *deletion.Queue
	frames uint32
	opts   Options

	camera  *buffers.UniformBufferSet
	uniform model.CameraUniform

	targets     [3]gfx.Handle
	environment gfx.Handle

	cubemap geometryPass
	grid    geometryPass
	final   geometryPass

	transforms *buffers.StorageBufferSet
	materials  *buffers.StorageBufferSet

	cubemapStatic staticGeometry
	gridStatic    staticGeometry
	pendingStatic []bool
	// pendingUploads counts the slots in pendingStatic that are still set.
	pendingUploads int

	lastVertices     []int
	lastIndices      []int
	lastTextureCount int

	initialized bool
}

func NewSceneRenderer(dev Device, queue *deletion.Queue, frames uint32, opts Options) *SceneRenderer {
	gfx.Assert(frames > 0, "scene renderer needs at least one frame")
	if opts.EnvironmentSize == 0 {
		opts.EnvironmentSize = 64
	}
	return &SceneRenderer{dev: dev, queue: queue, frames: frames, opts: opts}
}

// Initialize creates the render targets, buffers and passes. Every pass reads the camera from camera.
func (r *SceneRenderer) Initialize(camera *buffers.UniformBufferSet) error {
	if camera == nil || camera.Frames() != r.frames {
		return errors.Errorf("camera uniform set must have %d frames", r.frames)
	}
	r.camera = camera
	r.lastVertices = make([]int, r.frames)
	r.lastIndices = make([]int, r.frames)
	r.lastTextureCount = 0

	if err := r.createTargets(); err != nil {
		return err
	}

	var err error
	r.environment, err = r.dev.CreateTexture(gfx.TextureSpec{
		Name:   "environment",
		Width:  r.opts.EnvironmentSize,
		Height: r.opts.EnvironmentSize,
		Cube:   true,
		Pixels: model.SkyCubemap(int(r.opts.EnvironmentSize)),
	})
	if err != nil {
		return errors.Wrap(err, "create environment map")
	}

	/*
	 * Cubemap
	 */
	r.cubemap = r.newGeometryPass(renderpass.Spec{
		Name: "Cubemap-Pipeline",
		Kind: renderpass.Cubemap,
		Pipeline: gfx.PipelineSpec{
			VertexShader:   r.shader("cubemap.vert.spv"),
			FragmentShader: r.shader("cubemap.frag.spv"),
		},
		Target: r.targets[0],
	})
	r.cubemap.pass.SetSlot(renderpass.CubemapTexture, renderpass.Texture(r.environment))

	/*
	 * Infinite grid
	 */
	r.grid = r.newGeometryPass(renderpass.Spec{
		Name: "Infinite-Grid-Pipeline",
		Kind: renderpass.Grid,
		Pipeline: gfx.PipelineSpec{
			VertexShader:   r.shader("infinite_grid.vert.spv"),
			FragmentShader: r.shader("infinite_grid.frag.spv"),
			DepthTest:      true,
			Blend:          true,
		},
		Target: r.targets[1],
	})

	/*
	 * Final color
	 */
	r.final = r.newGeometryPass(renderpass.Spec{
		Name: "Standard-Pipeline",
		Kind: renderpass.FinalColor,
		Pipeline: gfx.PipelineSpec{
			VertexShader:   r.shader("final_color.vert.spv"),
			FragmentShader: r.shader("final_color.frag.spv"),
			DepthTest:      true,
			DepthWrite:     true,
			CullBack:       true,
		},
		Target: r.targets[2],
	})
	r.transforms = buffers.NewStorageBufferSet(r.dev, r.queue, r.frames)
	r.materials = buffers.NewStorageBufferSet(r.dev, r.queue, r.frames)
	r.final.pass.SetSlot(renderpass.TransformSB, r.transforms)
	r.final.pass.SetSlot(renderpass.MatSB, r.materials)

	for _, g := range []*geometryPass{&r.cubemap, &r.grid, &r.final} {
		if err := g.pass.Verify(); err != nil {
			return err
		}
		if err := g.pass.Bake(); err != nil {
			return err
		}
		logging.Logger().Debug("Baked render pass", "name", g.pass.Name(), "kind", g.pass.Kind())
	}

	r.cubemapStatic = newStaticGeometry(model.CubemapGeometry())
	r.gridStatic = newStaticGeometry(model.GridGeometry())
	r.InvalidateStaticGeometry()
	r.initialized = true

	logging.Logger().Info("Scene renderer initialized", "frames", r.frames,
		"width", r.opts.Extent.Width, "height", r.opts.Extent.Height)
	return nil
}

// createTargets sets up one color + depth image pair: the cubemap pass clears it, the later passes load and draw on
// top, the final pass leaves it ready for sampling.
func (r *SceneRenderer) createTargets() error {
	specs := []gfx.RenderTargetSpec{
		{Name: "cubemap", ClearColor: true, ClearDepth: true, Clear: r.opts.ClearColor},
		{Name: "infinite-grid"},
		{Name: "final-color", Sampled: true},
	}
	for i, spec := range specs {
		spec.Extent = r.opts.Extent
		if i > 0 {
			spec.Share = r.targets[0]
		}
		h, err := r.dev.CreateRenderTarget(spec)
		if err != nil {
			return errors.Wrapf(err, "create render target %q", spec.Name)
		}
		r.targets[i] = h
	}
	return nil
}

func (r *SceneRenderer) newGeometryPass(spec renderpass.Spec) geometryPass {
	spec.Frames = r.frames
	g := geometryPass{
		pass:     renderpass.New(r.dev, r.queue, spec),
		vertices: buffers.NewStorageBufferSet(r.dev, r.queue, r.frames),
		indices:  buffers.NewStorageBufferSet(r.dev, r.queue, r.frames),
		drawData: buffers.NewStorageBufferSet(r.dev, r.queue, r.frames),
		indirect: buffers.NewIndirectBufferSet(r.dev, r.queue, r.frames),
	}
	g.pass.SetSlot(renderpass.UBCamera, r.camera)
	g.pass.SetSlot(renderpass.VertexSB, g.vertices)
	g.pass.SetSlot(renderpass.IndexSB, g.indices)
	g.pass.SetSlot(renderpass.DrawDataSB, g.drawData)
	return g
}

func (r *SceneRenderer) shader(name string) string {
	return filepath.Join(r.opts.ShaderDir, name)
}

// StartScene captures the camera for the next RenderScene.
func (r *SceneRenderer) StartScene(position mgl32.Vec4, view mgl32.Mat4, projection mgl32.Mat4) {
	r.uniform = model.CameraUniform{View: view, Projection: projection, Position: position}
}

func (r *SceneRenderer) StartSceneVec3(position mgl32.Vec3, view mgl32.Mat4, projection mgl32.Mat4) {
	r.StartScene(position.Vec4(1), view, projection)
}

func (r *SceneRenderer) BeginCommands(cmd gfx.CommandBuffer) {
	cmd.Begin()
}

// RenderScene uploads what frame needs to draw data. Geometry is only re-uploaded when the vertex and index counts
// both differ from what the slot last drew.
func (r *SceneRenderer) RenderScene(data *scene.SceneRawData, frame uint32) {
	gfx.Assert(r.initialized, "scene renderer used before initialization")
	gfx.Assert(frame < r.frames, "frame index %d out of range for %d frames", frame, r.frames)

	r.camera.SetData(frame, r.uniform.Bytes())

	if r.pendingStatic[frame] {
		r.uploadStatic(&r.cubemap, r.cubemapStatic, frame)
		r.uploadStatic(&r.grid, r.gridStatic, frame)
		r.cubemap.pass.MarkDirty()
		r.grid.pass.MarkDirty()
		r.pendingStatic[frame] = false
		r.pendingUploads--
	}

	/*
	 * Transforms
	 */
	transforms := make([]mgl32.Mat4, 0, len(data.Nodes))
	for _, id := range data.Nodes {
		transforms = append(transforms, data.Transforms[id])
	}
	buffers.Upload(r.transforms.At(frame), transforms)

	/*
	 * Textures
	 */
	if count := data.TextureCount(); count != r.lastTextureCount {
		var source scene.TextureCollection = scene.Textures(nil)
		if data.Textures != nil {
			source = data.Textures
		}
		gfx.Check(r.final.pass.SetInput(renderpass.TextureArray.String(), renderpass.Textures{Source: source}),
			"Failed to bind scene textures")
		r.lastTextureCount = count
		r.final.pass.MarkDirty()
	}

	if r.lastVertices[frame] == len(data.Vertices) || r.lastIndices[frame] == len(data.Indices) {
		return
	}

	/*
	 * Draw data and materials
	 */
	drawData := make([]DrawData, 0, len(data.Nodes))
	materials := make([]scene.Material, 0, len(data.Nodes))
	for i, id := range data.Nodes {
		mr := data.MeshRanges[id]
		materials = append(materials, data.Materials[id])
		drawData = append(drawData, DrawData{
			Index:          uint32(i),
			TransformIndex: uint32(i),
			VertexOffset:   mr.VertexOffset,
			IndexOffset:    mr.IndexOffset,
			VertexCount:    mr.VertexCount,
			IndexCount:     mr.IndexCount,
			MaterialIndex:  uint32(len(materials) - 1),
		})
	}

	buffers.Upload(r.final.vertices.At(frame), data.Vertices)
	buffers.Upload(r.final.indices.At(frame), data.Indices)
	buffers.Upload(r.final.drawData.At(frame), drawData)
	buffers.Upload(r.materials.At(frame), materials)
	r.final.indirect.At(frame).SetCommands(indirectCommands(drawData))

	r.lastVertices[frame] = len(data.Vertices)
	r.lastIndices[frame] = len(data.Indices)
	r.final.pass.MarkDirty()
}

// indirectCommands emits one instanced draw per record. The vertex count is the index count because the shaders pull
// vertices through the index buffer.
func indirectCommands(drawData []DrawData) []buffers.DrawIndirectCommand {
	commands := make([]buffers.DrawIndirectCommand, len(drawData))
	for i, d := range drawData {
		commands[i] = buffers.DrawIndirectCommand{
			VertexCount:   d.IndexCount,
			InstanceCount: 1,
			FirstVertex:   0,
			FirstInstance: uint32(i),
		}
	}
	return commands
}

func (r *SceneRenderer) uploadStatic(g *geometryPass, s staticGeometry, frame uint32) {
	buffers.Upload(g.vertices.At(frame), s.mesh.Vertices)
	buffers.Upload(g.indices.At(frame), s.mesh.Indices)
	buffers.Upload(g.drawData.At(frame), s.drawData)
	g.indirect.At(frame).SetCommands(s.commands)
}

// EndScene records the three passes in order and closes the command buffer.
func (r *SceneRenderer) EndScene(cmd gfx.CommandBuffer, frame uint32) {
	gfx.Assert(r.initialized, "scene renderer used before initialization")
	for _, g := range []*geometryPass{&r.cubemap, &r.grid, &r.final} {
		indirect := g.indirect.At(frame)
		g.pass.Begin(cmd, frame)
		g.pass.BindDescriptorSets(cmd, frame)
		cmd.DrawIndirect(indirect.Handle(), indirect.CommandCount(), gfx.DrawIndirectStride)
		cmd.EndRenderPass()
	}
	cmd.End()
}

func (r *SceneRenderer) SetViewportSize(width, height uint32) {
	r.opts.Extent = gfx.Extent{Width: width, Height: height}
	r.cubemap.pass.ResizeRenderTarget(width, height)
	r.grid.pass.ResizeRenderTarget(width, height)
	r.final.pass.ResizeRenderTarget(width, height)
}

// InvalidateStaticGeometry uploads the cubemap and grid again on the next RenderScene of every slot.
func (r *SceneRenderer) InvalidateStaticGeometry() {
	r.pendingStatic = make([]bool, r.frames)
	for i := range r.pendingStatic {
		r.pendingStatic[i] = true
	}
	r.pendingUploads = int(r.frames)
}

// PendingStaticUploads counts the frame slots still waiting for the static geometry.
func (r *SceneRenderer) PendingStaticUploads() int { return r.pendingUploads }

// OutputImage is the sampled color output of the final pass.
func (r *SceneRenderer) OutputImage() gfx.Handle {
	return r.final.pass.OutputColor()
}

// Frames is the number of frame slots the renderer keeps buffers and descriptor sets for.
func (r *SceneRenderer) Frames() uint32 { return r.frames }

// SetFrameCount rebuilds every per-slot resource for camera.Frames() slots, e.g. after the swapchain came back with
// a different image count. The caller must have waited for the device to be idle.
func (r *SceneRenderer) SetFrameCount(camera *buffers.UniformBufferSet) error {
	if camera == nil || camera.Frames() == 0 {
		return errors.New("camera uniform set has no frames")
	}
	previous := r.frames
	r.Deinitialize()
	r.frames = camera.Frames()
	if err := r.Initialize(camera); err != nil {
		return errors.Wrapf(err, "rebuild scene renderer for %d frames", r.frames)
	}
	logging.Logger().Info("Scene renderer frame count changed", "from", previous, "to", r.frames)
	return nil
}

func (r *SceneRenderer) Deinitialize() {
	if !r.initialized {
		return
	}
	r.cubemap.dispose()
	r.grid.dispose()
	r.final.dispose()
	r.transforms.Dispose()
	r.materials.Dispose()

	r.queue.Enqueue(gfx.Texture, r.environment)
	for i := len(r.targets) - 1; i >= 0; i-- {
		r.queue.Enqueue(gfx.RenderTarget, r.targets[i])
		r.targets[i] = gfx.NullHandle
	}
	r.environment = gfx.NullHandle

	r.lastVertices = nil
	r.lastIndices = nil
	r.lastTextureCount = 0
	r.pendingStatic = nil
	r.pendingUploads = 0
	r.initialized = false
}
