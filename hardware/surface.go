package hardware

import (
	"math"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

type swapchain struct {
	handle   vk.Swapchain
	format   vk.Format
	extent   vk.Extent2D
	vkImages []vk.Image
	images   []gfx.Handle
}

func (d *Device) SurfaceCapabilities() (gfx.SurfaceCapabilities, error) {
	caps, err := readSurfaceCapabilities(d.pd, d.window.Surf)
	if err != nil {
		return gfx.SurfaceCapabilities{}, errors.Wrap(err, "read surface capabilities")
	}
	return gfx.SurfaceCapabilities{
		MinImageCount:       caps.MinImageCount,
		MaxImageCount:       caps.MaxImageCount,
		CurrentExtent:       gfx.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent:      gfx.Extent{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent:      gfx.Extent{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		MaxImageArrayLayers: caps.MaxImageArrayLayers,
	}, nil
}

func (d *Device) SurfaceFormats() ([]gfx.SurfaceFormat, error) {
	formats, err := readSurfaceFormats(d.pd, d.window.Surf)
	if err != nil {
		return nil, errors.Wrap(err, "read surface formats")
	}
	out := make([]gfx.SurfaceFormat, len(formats))
	for i, f := range formats {
		out[i] = gfx.SurfaceFormat{Format: gfx.Format(f.Format), ColorSpace: gfx.ColorSpace(f.ColorSpace)}
	}
	return out, nil
}

// selectPresentMode prefers mailbox and falls back to FIFO, which every device supports.
func selectPresentMode(available []vk.PresentMode) vk.PresentMode {
	for _, pm := range available {
		if pm == vk.PresentModeMailbox {
			return pm
		}
	}
	return vk.PresentModeFifo
}

func (d *Device) CreateSwapchain(info gfx.SwapchainInfo) (gfx.Handle, error) {
	caps, err := readSurfaceCapabilities(d.pd, d.window.Surf)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "read surface capabilities")
	}
	presentMode := selectPresentMode(readSurfacePresentModes(d.pd, d.window.Surf))
	extent := vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height}

	// Graphics and presentation on different families need the images shared between both.
	sharingMode := vk.SharingModeExclusive
	var familyIndices []uint32
	if !d.families.shared() {
		sharingMode = vk.SharingModeConcurrent
		familyIndices = d.families.unique()
	}

	createInfo := &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               d.window.Surf,
		MinImageCount:         info.MinImageCount,
		ImageFormat:           vk.Format(info.Format.Format),
		ImageColorSpace:       vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode:      sharingMode,
		QueueFamilyIndexCount: uint32(len(familyIndices)),
		PQueueFamilyIndices:   familyIndices,
		PreTransform:          caps.CurrentTransform,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           presentMode,
		Clipped:               vk.True,
	}
	handle, err := vkCreateSwapchain(d.D, createInfo)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create swapchain")
	}

	// Work recorded for a frame dropped by the resize is never submitted.
	d.mu.Lock()
	dropped := len(d.pending)
	d.pending = nil
	d.mu.Unlock()
	if dropped > 0 {
		logging.Logger().Debug("Dropped unsubmitted command buffers", "count", dropped)
	}

	sc := &swapchain{
		handle:   handle,
		format:   vk.Format(info.Format.Format),
		extent:   extent,
		vkImages: readSwapchainImages(d.D, handle),
	}
	for _, img := range sc.vkImages {
		sc.images = append(sc.images, d.register(img))
	}
	logging.Logger().Debug("Created swapchain", "images", len(sc.images), "presentMode", presentMode)
	return d.register(sc), nil
}

func (d *Device) SwapchainImages(h gfx.Handle) ([]gfx.Handle, error) {
	sc, err := lookup[*swapchain](d, h)
	if err != nil {
		return nil, err
	}
	return append([]gfx.Handle(nil), sc.images...), nil
}

func (d *Device) DestroySwapchain(h gfx.Handle) {
	obj, ok := d.forget(h)
	if !ok {
		return
	}
	sc := obj.(*swapchain)
	for _, img := range sc.images {
		d.forget(img)
	}
	vk.DestroySwapchain(d.D, sc.handle, nil)
}

func (d *Device) TransitionToPresent(images []gfx.Handle, format gfx.Format) error {
	cmd, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}
	t := transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc)
	for _, h := range images {
		img, err := lookup[vk.Image](d, h)
		if err != nil {
			vk.FreeCommandBuffers(d.D, d.pool, 1, []vk.CommandBuffer{cmd})
			return err
		}
		cmdTransition(cmd, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, t)
	}
	return d.endSingleTimeCommands(cmd)
}

func (d *Device) CreateImageView(image gfx.Handle, format gfx.Format) (gfx.Handle, error) {
	img, err := lookup[vk.Image](d, image)
	if err != nil {
		return gfx.NullHandle, err
	}
	view, err := d.createView(img, vk.Format(format), vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageViewType2d, 1)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create image view")
	}
	return d.register(view), nil
}

// CreatePresentPass creates the color-only render pass that leaves swapchain images ready to present.
func (d *Device) CreatePresentPass(format gfx.Format) (gfx.Handle, error) {
	colorAttachment := vk.AttachmentDescription{
		Format:         vk.Format(format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	rp, err := vkCreateRenderPass(d.D, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	})
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create present render pass")
	}
	return d.register(rp), nil
}

func (d *Device) CreateFramebuffer(pass gfx.Handle, views []gfx.Handle, extent gfx.Extent) (gfx.Handle, error) {
	rp, err := lookup[vk.RenderPass](d, pass)
	if err != nil {
		return gfx.NullHandle, err
	}
	attachments := make([]vk.ImageView, len(views))
	for i, v := range views {
		if attachments[i], err = lookup[vk.ImageView](d, v); err != nil {
			return gfx.NullHandle, err
		}
	}
	fb, err := vkCreateFramebuffer(d.D, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	})
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create frame buffer")
	}
	return d.register(fb), nil
}

func (d *Device) AcquireNextImage(sc gfx.Handle, semaphore gfx.Handle) (uint32, gfx.Result) {
	s, err := lookup[*swapchain](d, sc)
	if err != nil {
		logging.Logger().Error("Failed to acquire image", "err", err)
		return 0, gfx.Failure
	}
	sem, err := lookup[vk.Semaphore](d, semaphore)
	if err != nil {
		logging.Logger().Error("Failed to acquire image", "err", err)
		return 0, gfx.Failure
	}
	var idx uint32
	r := vk.AcquireNextImage(d.D, s.handle, math.MaxUint64, sem, vk.NullFence, &idx)
	return idx, toResult(r)
}

// Present submits the pending frame work together with the copy of the present source into the acquired image and
// queues that image on the present queue.
func (d *Device) Present(sc gfx.Handle, image uint32, wait gfx.Handle, signal gfx.Handle, fenceHandle gfx.Handle) gfx.Result {
	s, err := lookup[*swapchain](d, sc)
	if err != nil {
		logging.Logger().Error("Failed to present", "err", err)
		return gfx.Failure
	}
	waitSem, err := lookup[vk.Semaphore](d, wait)
	if err != nil {
		logging.Logger().Error("Failed to present", "err", err)
		return gfx.Failure
	}
	signalSem, err := lookup[vk.Semaphore](d, signal)
	if err != nil {
		logging.Logger().Error("Failed to present", "err", err)
		return gfx.Failure
	}
	f, err := lookup[*fence](d, fenceHandle)
	if err != nil {
		logging.Logger().Error("Failed to present", "err", err)
		return gfx.Failure
	}
	if err := d.recordBlit(f, s, image); err != nil {
		logging.Logger().Error("Failed to record present copy", "err", err)
		return gfx.Failure
	}

	d.mu.Lock()
	buffers := append(d.pending, f.blit)
	d.pending = nil
	d.mu.Unlock()

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{waitSem},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageTransferBit)},
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signalSem},
	}
	if err := vk.Error(vk.QueueSubmit(d.graphicsQ, 1, []vk.SubmitInfo{submitInfo}, f.handle)); err != nil {
		logging.Logger().Error("Failed to submit command buffers", "err", err)
		return gfx.Failure
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{signalSem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{image},
	}
	return toResult(vk.QueuePresent(d.presentQ, &presentInfo))
}

// recordBlit rewrites the fence's copy buffer for image. Without a present source the image is only moved into the
// present layout.
func (d *Device) recordBlit(f *fence, s *swapchain, image uint32) error {
	if int(image) >= len(s.vkImages) {
		return errors.Errorf("image index %d out of range for %d images", image, len(s.vkImages))
	}
	if f.blit == nil {
		buffers, err := vkAllocateCommandBuffersPrimary(d.D, d.pool, 1)
		if err != nil {
			return err
		}
		f.blit = buffers[0]
	}
	vk.ResetCommandBuffer(f.blit, 0)
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if err := vk.Error(vk.BeginCommandBuffer(f.blit, &beginInfo)); err != nil {
		return err
	}

	dst := s.vkImages[image]
	color := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	d.mu.Lock()
	source := d.presentSource
	d.mu.Unlock()
	src, err := lookup[*renderTarget](d, source)
	if source == gfx.NullHandle || err != nil {
		cmdTransition(f.blit, dst, color, 1, transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc))
		return vk.Error(vk.EndCommandBuffer(f.blit))
	}

	images := src.images
	cmdTransition(f.blit, dst, color, 1, transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal))
	layers := vk.ImageSubresourceLayers{AspectMask: color, LayerCount: 1}
	region := vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(images.extent.Width), Y: int32(images.extent.Height), Z: 1}},
		DstSubresource: layers,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(s.extent.Width), Y: int32(s.extent.Height), Z: 1}},
	}
	vk.CmdBlitImage(f.blit, images.color, vk.ImageLayoutTransferSrcOptimal, dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region}, vk.FilterLinear)
	cmdTransition(f.blit, dst, color, 1, transitionFor(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc))
	return vk.Error(vk.EndCommandBuffer(f.blit))
}
