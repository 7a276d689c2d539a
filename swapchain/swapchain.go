// Package swapchain owns the presentation images of a window surface together with the per-frame synchronization
// objects that pace the CPU against the GPU.
package swapchain

import (
	"math"
	"math/rand/v2"
	"sync"

	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"
	"GPU_scene_renderer/primitives"

	"github.com/pkg/errors"
)

// Device is the part of gfx.Device the swapchain drives.
type Device interface {
	gfx.SurfaceDevice
	gfx.SyncDevice
	WaitIdle()
}

type Options struct {
	// MinImageCount raises the requested image count above the surface minimum + 1.
	MinImageCount uint32
}

type Swapchain struct {
	dev    Device
	window gfx.Window
	queue  *deletion.Queue
	opts   Options
	id     uint64

	presentPass gfx.Handle

	mu            sync.Mutex
	handle        gfx.Handle
	format        gfx.SurfaceFormat
	capabilities  gfx.SurfaceCapabilities
	extent        gfx.Extent
	minImageCount uint32
	images        []gfx.Handle
	views         []gfx.Handle
	framebuffers  []gfx.Handle
	acquired      []*primitives.Semaphore
	rendered      []*primitives.Semaphore
	fences        []*primitives.Fence
	frame         uint32
	generation    uint64
}

// New creates the presentation attachment and the first generation of swapchain images.
func New(dev Device, window gfx.Window, queue *deletion.Queue, opts Options) *Swapchain {
	s := &Swapchain{
		dev:    dev,
		window: window,
		queue:  queue,
		opts:   opts,
		id:     rand.Uint64(),
	}

	formats, err := dev.SurfaceFormats()
	gfx.Check(err, "Failed to read surface formats")
	s.format = selectSurfaceFormat(formats)
	s.presentPass, err = dev.CreatePresentPass(s.format.Format)
	gfx.Check(err, "Failed to create present render pass")

	s.Create()
	return s
}

// Create builds the swapchain images, views, framebuffers and sync objects. It must only be called on a disposed
// swapchain.
func (s *Swapchain) Create() {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps, err := s.dev.SurfaceCapabilities()
	gfx.Check(err, "Failed to read surface capabilities")
	formats, err := s.dev.SurfaceFormats()
	gfx.Check(err, "Failed to read surface formats")

	s.capabilities = caps
	s.format = selectSurfaceFormat(formats)
	s.extent = selectExtent(caps, s.window)
	s.minImageCount = selectImageCount(caps, s.opts.MinImageCount)

	s.handle, err = s.dev.CreateSwapchain(gfx.SwapchainInfo{
		Format:        s.format,
		Extent:        s.extent,
		MinImageCount: s.minImageCount,
	})
	gfx.Check(err, "Failed to create swap chain")

	s.images, err = s.dev.SwapchainImages(s.handle)
	gfx.Check(err, "Failed to read swap chain images")
	gfx.Check(s.dev.TransitionToPresent(s.images, s.format.Format), "Failed to transition swap chain images")

	count := len(s.images)
	s.views = make([]gfx.Handle, count)
	s.framebuffers = make([]gfx.Handle, count)
	s.acquired = make([]*primitives.Semaphore, count)
	s.rendered = make([]*primitives.Semaphore, count)
	s.fences = make([]*primitives.Fence, count)
	for i, image := range s.images {
		s.views[i], err = s.dev.CreateImageView(image, s.format.Format)
		gfx.Check(err, "Failed to create swap chain image view")
		s.framebuffers[i], err = s.dev.CreateFramebuffer(s.presentPass, []gfx.Handle{s.views[i]}, s.extent)
		gfx.Check(err, "Failed to create swap chain frame buffer")
		s.acquired[i] = primitives.NewSemaphore(s.dev, s.queue)
		s.rendered[i] = primitives.NewSemaphore(s.dev, s.queue)
		s.fences[i] = primitives.NewFence(s.dev, s.queue, true)
	}
	s.queue.EnsureLag(uint32(count))

	s.frame = 0
	s.generation++
	logging.Logger().Info("Successfully created swap chain",
		"id", s.id, "images", count, "format", s.format.Format, "width", s.extent.Width, "height", s.extent.Height,
		"generation", s.generation)
}

// Dispose hands every per-image object to the deletion queue and destroys the swapchain handle. The window and the
// presentation attachment are left alone.
func (s *Swapchain) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.views {
		s.queue.Enqueue(gfx.Framebuffer, s.framebuffers[i])
		s.queue.Enqueue(gfx.ImageView, s.views[i])
		s.acquired[i].Dispose()
		s.rendered[i].Dispose()
		s.fences[i].Dispose()
	}
	s.images = nil
	s.views = nil
	s.framebuffers = nil
	s.acquired = nil
	s.rendered = nil
	s.fences = nil

	if s.handle != gfx.NullHandle {
		s.dev.DestroySwapchain(s.handle)
		s.handle = gfx.NullHandle
	}
}

// Resize recreates the swapchain for the current surface state.
func (s *Swapchain) Resize() {
	s.dev.WaitIdle()
	s.Dispose()
	s.Create()
}

// Close disposes the swapchain and its presentation attachment.
func (s *Swapchain) Close() {
	s.Dispose()
	s.queue.Enqueue(gfx.RenderPass, s.presentPass)
	s.presentPass = gfx.NullHandle
}

// WaitForFrame blocks until the GPU work last submitted from the current frame slot completed, so the slot's buffers
// can be rewritten.
func (s *Swapchain) WaitForFrame() {
	s.mu.Lock()
	fence := s.fences[s.frame]
	s.mu.Unlock()
	fence.Wait(math.MaxUint64)
}

// Present submits the work recorded for the current frame slot and queues the acquired image. It reports false when
// the frame was dropped because the swapchain had to be recreated.
func (s *Swapchain) Present() bool {
	s.mu.Lock()
	frame := s.frame
	handle := s.handle
	fence := s.fences[frame]
	acquired := s.acquired[frame]
	rendered := s.rendered[frame]
	s.mu.Unlock()

	fence.Wait(math.MaxUint64)
	fence.Reset()

	gfx.Assert(acquired.State() != primitives.Submitted, "acquire semaphore of frame %d is still pending", frame)
	image, result := s.dev.AcquireNextImage(handle, acquired.Handle())
	acquired.SetState(primitives.Submitted)

	if result.NeedsResize() {
		logging.Logger().Debug("Swap chain needs to be recreated", "result", result, "frame", frame)
		s.Resize()
		return false
	}
	if result != gfx.Success {
		gfx.Check(errors.Errorf("acquire returned %s", result), "Failed to acquire swap chain image")
	}

	if result = s.dev.Present(handle, image, acquired.Handle(), rendered.Handle(), fence.Handle()); result != gfx.Success {
		logging.Logger().Debug("Presentation failed, recreating swap chain", "result", result, "frame", frame)
		s.Resize()
		return false
	}
	acquired.Consume()
	s.queue.Checkpoint()

	s.mu.Lock()
	s.frame = (s.frame + 1) % uint32(len(s.images))
	s.mu.Unlock()
	return true
}

func (s *Swapchain) CurrentFrameIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gfx.Assert(s.frame < uint32(len(s.images)), "frame index %d out of range", s.frame)
	return s.frame
}

func (s *Swapchain) CurrentFramebuffer() gfx.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	gfx.Assert(s.frame < uint32(len(s.framebuffers)), "frame index %d out of range", s.frame)
	return s.framebuffers[s.frame]
}

func (s *Swapchain) ImageCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.images))
}

func (s *Swapchain) MinImageCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minImageCount
}

func (s *Swapchain) Extent() gfx.Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extent
}

func (s *Swapchain) Format() gfx.SurfaceFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *Swapchain) RenderPass() gfx.Handle { return s.presentPass }

func (s *Swapchain) ID() uint64 { return s.id }

func (s *Swapchain) Handle() gfx.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Generation counts the calls to Create.
func (s *Swapchain) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Counts returns the lengths of the per-image collections: images, views, framebuffers, acquire semaphores,
// render-complete semaphores and fences.
func (s *Swapchain) Counts() [6]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return [6]int{len(s.images), len(s.views), len(s.framebuffers), len(s.acquired), len(s.rendered), len(s.fences)}
}

// Fence returns the in-flight fence of a frame slot.
func (s *Swapchain) Fence(frame uint32) gfx.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	gfx.Assert(frame < uint32(len(s.fences)), "frame index %d out of range", frame)
	return s.fences[frame].Handle()
}
