// Package gfxtest provides a recording gfx.Device that runs without a GPU. Fences signal as soon as the work they
// guard is presented, so tests observe the CPU side ordering of the frame loop only.
package gfxtest

import (
	"fmt"
	"sync"

	"GPU_scene_renderer/gfx"
)

// Call is one entry of the device call log.
type Call struct {
	Op     string
	Handle gfx.Handle
}

type BufferInfo struct {
	Usage  gfx.BufferUsage
	Size   uint64
	Writes int
	Data   []byte
}

type swapchain struct {
	images []gfx.Handle
	next   uint32
}

type Device struct {
	// Capabilities and Formats are returned by the surface queries.
	Capabilities gfx.SurfaceCapabilities
	Formats      []gfx.SurfaceFormat
	// AcquireResults scripts the result of the n-th acquisition (1-based), unlisted acquisitions succeed.
	AcquireResults map[int]gfx.Result
	// PresentResults scripts the result of the n-th presentation (1-based), unlisted presentations succeed.
	PresentResults map[int]gfx.Result
	// FailSwapchain makes CreateSwapchain fail.
	FailSwapchain error

	mu         sync.Mutex
	next       gfx.Handle
	calls      []Call
	live       map[gfx.Handle]gfx.ResourceKind
	destroyed  map[gfx.ResourceKind]int
	fences     map[gfx.Handle]bool
	fenceWaits map[gfx.Handle]int
	buffers    map[gfx.Handle]*BufferInfo
	pipelines  map[gfx.Handle]gfx.PipelineSpec
	bindings   map[gfx.Handle]map[uint32][]gfx.Binding
	updates    map[gfx.Handle]int
	targets    map[gfx.Handle]gfx.RenderTargetSpec
	outputs    map[gfx.Handle]gfx.Handle
	resizes    map[gfx.Handle]int
	textures   map[gfx.Handle]gfx.TextureSpec
	swapchains map[gfx.Handle]*swapchain
	commands   map[uint32]*CommandBuffer
	pending    []*CommandBuffer

	acquires            int
	presents            int
	submitted           int
	waitIdles           int
	transitions         int
	swapchainsDestroyed int
}

// NewDevice returns a device reporting a 800x600 surface that needs at least two images.
func NewDevice() *Device {
	return &Device{
		Capabilities: gfx.SurfaceCapabilities{
			MinImageCount:       2,
			MaxImageCount:       8,
			CurrentExtent:       gfx.Extent{Width: 800, Height: 600},
			MinImageExtent:      gfx.Extent{Width: 1, Height: 1},
			MaxImageExtent:      gfx.Extent{Width: 4096, Height: 4096},
			MaxImageArrayLayers: 1,
		},
		Formats: []gfx.SurfaceFormat{
			{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
			gfx.PreferredSurfaceFormat,
		},
		AcquireResults: map[int]gfx.Result{},
		PresentResults: map[int]gfx.Result{},
		live:           map[gfx.Handle]gfx.ResourceKind{},
		destroyed:      map[gfx.ResourceKind]int{},
		fences:         map[gfx.Handle]bool{},
		fenceWaits:     map[gfx.Handle]int{},
		buffers:        map[gfx.Handle]*BufferInfo{},
		pipelines:      map[gfx.Handle]gfx.PipelineSpec{},
		bindings:       map[gfx.Handle]map[uint32][]gfx.Binding{},
		updates:        map[gfx.Handle]int{},
		targets:        map[gfx.Handle]gfx.RenderTargetSpec{},
		outputs:        map[gfx.Handle]gfx.Handle{},
		resizes:        map[gfx.Handle]int{},
		textures:       map[gfx.Handle]gfx.TextureSpec{},
		swapchains:     map[gfx.Handle]*swapchain{},
		commands:       map[uint32]*CommandBuffer{},
	}
}

func (d *Device) alloc(kind gfx.ResourceKind) gfx.Handle {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Device) record(op string, h gfx.Handle) {
	d.calls = append(d.calls, Call{Op: op, Handle: h})
}

func (d *Device) Destroy(kind gfx.ResourceKind, h gfx.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy-"+kind.String(), h)
	d.destroyed[kind]++
	delete(d.live, h)
	delete(d.fences, h)
	delete(d.buffers, h)
}

func (d *Device) CreateSemaphore() (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(gfx.Semaphore), nil
}

func (d *Device) CreateFence(signaled bool) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc(gfx.Fence)
	d.fences[h] = signaled
	return h, nil
}

func (d *Device) WaitFence(fence gfx.Handle, timeout uint64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	signaled, ok := d.fences[fence]
	if !ok {
		return false, fmt.Errorf("unknown fence %d", fence)
	}
	d.record("wait-fence", fence)
	d.fenceWaits[fence]++
	return signaled, nil
}

func (d *Device) ResetFence(fence gfx.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[fence]; !ok {
		return fmt.Errorf("unknown fence %d", fence)
	}
	d.record("reset-fence", fence)
	d.fences[fence] = false
	return nil
}

func (d *Device) SurfaceCapabilities() (gfx.SurfaceCapabilities, error) {
	return d.Capabilities, nil
}

func (d *Device) SurfaceFormats() ([]gfx.SurfaceFormat, error) {
	return d.Formats, nil
}

func (d *Device) CreateSwapchain(info gfx.SwapchainInfo) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailSwapchain != nil {
		return gfx.NullHandle, d.FailSwapchain
	}
	d.next++
	h := d.next
	sc := &swapchain{images: make([]gfx.Handle, info.MinImageCount)}
	for i := range sc.images {
		d.next++
		sc.images[i] = d.next
	}
	d.swapchains[h] = sc
	d.record("create-swapchain", h)
	return h, nil
}

func (d *Device) SwapchainImages(sc gfx.Handle) ([]gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.swapchains[sc]
	if !ok {
		return nil, fmt.Errorf("unknown swapchain %d", sc)
	}
	return append([]gfx.Handle(nil), s.images...), nil
}

func (d *Device) DestroySwapchain(sc gfx.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("destroy-swapchain", sc)
	delete(d.swapchains, sc)
	d.swapchainsDestroyed++
}

func (d *Device) TransitionToPresent(images []gfx.Handle, format gfx.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transitions += len(images)
	return nil
}

func (d *Device) CreateImageView(image gfx.Handle, format gfx.Format) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(gfx.ImageView), nil
}

func (d *Device) CreatePresentPass(format gfx.Format) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(gfx.RenderPass), nil
}

func (d *Device) CreateFramebuffer(pass gfx.Handle, views []gfx.Handle, extent gfx.Extent) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(gfx.Framebuffer), nil
}

func (d *Device) AcquireNextImage(sc gfx.Handle, semaphore gfx.Handle) (uint32, gfx.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquires++
	d.record("acquire", semaphore)
	s, ok := d.swapchains[sc]
	if !ok {
		return 0, gfx.Failure
	}
	result, scripted := d.AcquireResults[d.acquires]
	if !scripted {
		result = gfx.Success
	}
	if result != gfx.Success && result != gfx.Suboptimal {
		return 0, result
	}
	image := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return image, result
}

func (d *Device) Present(sc gfx.Handle, image uint32, wait gfx.Handle, signal gfx.Handle, fence gfx.Handle) gfx.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents++
	d.record("present", fence)
	d.submitted += len(d.pending)
	d.pending = nil
	if _, ok := d.fences[fence]; ok {
		d.fences[fence] = true
	}
	result, scripted := d.PresentResults[d.presents]
	if !scripted {
		result = gfx.Success
	}
	return result
}

func (d *Device) CreateBuffer(usage gfx.BufferUsage, size uint64) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc(gfx.Buffer)
	d.buffers[h] = &BufferInfo{Usage: usage, Size: size}
	return h, nil
}

func (d *Device) WriteBuffer(buffer gfx.Handle, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buffer]
	if !ok {
		return fmt.Errorf("unknown buffer %d", buffer)
	}
	if uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes exceeds buffer %d of %d bytes", len(data), buffer, b.Size)
	}
	b.Writes++
	b.Data = append(b.Data[:0], data...)
	return nil
}

func (d *Device) CreatePipeline(spec gfx.PipelineSpec, frames uint32) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc(gfx.Pipeline)
	d.pipelines[h] = spec
	d.bindings[h] = map[uint32][]gfx.Binding{}
	return h, nil
}

func (d *Device) UpdateBindings(pipeline gfx.Handle, frame uint32, bindings []gfx.Binding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sets, ok := d.bindings[pipeline]
	if !ok {
		return fmt.Errorf("unknown pipeline %d", pipeline)
	}
	sets[frame] = append([]gfx.Binding(nil), bindings...)
	d.updates[pipeline]++
	return nil
}

func (d *Device) CreateRenderTarget(spec gfx.RenderTargetSpec) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc(gfx.RenderTarget)
	d.targets[h] = spec
	return h, nil
}

func (d *Device) ResizeRenderTarget(target gfx.Handle, extent gfx.Extent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.targets[target]
	if !ok {
		return fmt.Errorf("unknown render target %d", target)
	}
	spec.Extent = extent
	d.targets[target] = spec
	d.resizes[target]++
	return nil
}

func (d *Device) RenderTargetOutput(target gfx.Handle) gfx.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if out, ok := d.outputs[target]; ok {
		return out
	}
	out := d.alloc(gfx.Texture)
	d.outputs[target] = out
	return out
}

func (d *Device) CreateTexture(spec gfx.TextureSpec) (gfx.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc(gfx.Texture)
	d.textures[h] = spec
	return h, nil
}

func (d *Device) CommandBuffer(frame uint32) gfx.CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.commands[frame]
	if !ok {
		cb = &CommandBuffer{Frame: frame, device: d}
		d.commands[frame] = cb
	}
	return cb
}

func (d *Device) WaitIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("wait-idle", gfx.NullHandle)
	d.waitIdles++
}

func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

func (d *Device) FenceWaits(fence gfx.Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fenceWaits[fence]
}

func (d *Device) FenceSignaled(fence gfx.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[fence]
}

// SignalFence completes the GPU work guarded by fence.
func (d *Device) SignalFence(fence gfx.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[fence] = true
}

func (d *Device) Destroyed(kind gfx.ResourceKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed[kind]
}

// Live counts the objects of kind that have been created and not yet destroyed.
func (d *Device) Live(kind gfx.ResourceKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *Device) Buffer(h gfx.Handle) (BufferInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[h]
	if !ok {
		return BufferInfo{}, false
	}
	return *b, true
}

func (d *Device) Pipeline(h gfx.Handle) (gfx.PipelineSpec, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.pipelines[h]
	return spec, ok
}

func (d *Device) Bindings(pipeline gfx.Handle, frame uint32) []gfx.Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bindings[pipeline][frame]
}

func (d *Device) BindingUpdates(pipeline gfx.Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates[pipeline]
}

func (d *Device) RenderTarget(h gfx.Handle) (gfx.RenderTargetSpec, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.targets[h]
	return spec, ok
}

func (d *Device) Resizes(target gfx.Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resizes[target]
}

func (d *Device) Texture(h gfx.Handle) (gfx.TextureSpec, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.textures[h]
	return spec, ok
}

func (d *Device) Acquires() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquires
}

func (d *Device) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

// Submitted counts the command buffers handed over by a Present.
func (d *Device) Submitted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted
}

func (d *Device) WaitIdles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitIdles
}

func (d *Device) Transitions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transitions
}

func (d *Device) SwapchainsDestroyed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swapchainsDestroyed
}
