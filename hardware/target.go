package hardware

import (
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const targetColorFormat = vk.FormatR8g8b8a8Unorm

// targetImages is the color + depth pair shared by a target and every target created with Share pointing at it.
type targetImages struct {
	extent    gfx.Extent
	color     vk.Image
	colorMem  vk.DeviceMemory
	colorView vk.ImageView
	depth     vk.Image
	depthMem  vk.DeviceMemory
	depthView vk.ImageView
	users     []*renderTarget
}

type renderTarget struct {
	spec        gfx.RenderTargetSpec
	extent      gfx.Extent
	images      *targetImages
	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer
	output      gfx.Handle
}

// targetOutput names the color image of a target outside the device.
type targetOutput struct {
	target *renderTarget
}

func hasStencil(format vk.Format) bool {
	return format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint
}

func (d *Device) depthAspect() vk.ImageAspectFlags {
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if hasStencil(d.depthFormat) {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

func (d *Device) CreateRenderTarget(spec gfx.RenderTargetSpec) (gfx.Handle, error) {
	rt := &renderTarget{spec: spec, extent: spec.Extent}
	if spec.Share != gfx.NullHandle {
		shared, err := lookup[*renderTarget](d, spec.Share)
		if err != nil {
			return gfx.NullHandle, errors.Wrapf(err, "render target %q shares", spec.Name)
		}
		rt.images = shared.images
		rt.extent = shared.images.extent
	} else {
		images, err := d.createTargetImages(spec.Extent)
		if err != nil {
			return gfx.NullHandle, errors.Wrapf(err, "render target %q", spec.Name)
		}
		rt.images = images
	}

	var err error
	if rt.renderPass, err = d.createTargetPass(spec); err != nil {
		d.releaseTargetImages(rt)
		return gfx.NullHandle, errors.Wrapf(err, "render target %q", spec.Name)
	}
	if rt.framebuffer, err = d.createTargetFramebuffer(rt); err != nil {
		vk.DestroyRenderPass(d.D, rt.renderPass, nil)
		d.releaseTargetImages(rt)
		return gfx.NullHandle, errors.Wrapf(err, "render target %q", spec.Name)
	}
	rt.images.users = append(rt.images.users, rt)

	h := d.register(rt)
	if spec.Sampled {
		d.mu.Lock()
		d.presentSource = h
		d.mu.Unlock()
	}
	logging.Logger().Debug("Created render target", "name", spec.Name, "handle", h,
		"width", rt.extent.Width, "height", rt.extent.Height, "shared", spec.Share != gfx.NullHandle)
	return h, nil
}

// ResizeRenderTarget recreates the images of the target's share group and the framebuffers of every target in it.
// Resizing a second member of the group to the same extent does nothing.
func (d *Device) ResizeRenderTarget(target gfx.Handle, extent gfx.Extent) error {
	rt, err := lookup[*renderTarget](d, target)
	if err != nil {
		return err
	}
	images := rt.images
	if images.extent == extent {
		return nil
	}
	d.WaitIdle()

	users := images.users
	for _, u := range users {
		vk.DestroyFramebuffer(d.D, u.framebuffer, nil)
	}
	d.destroyTargetImages(images)
	fresh, err := d.createTargetImages(extent)
	if err != nil {
		return errors.Wrapf(err, "resize render target %q", rt.spec.Name)
	}
	*images = *fresh
	images.users = users
	for _, u := range users {
		u.extent = extent
		if u.framebuffer, err = d.createTargetFramebuffer(u); err != nil {
			return errors.Wrapf(err, "resize render target %q", u.spec.Name)
		}
	}
	logging.Logger().Debug("Resized render target", "name", rt.spec.Name, "width", extent.Width,
		"height", extent.Height, "targets", len(users))
	return nil
}

// RenderTargetOutput returns the handle of the target's color image, the null handle for unknown targets.
func (d *Device) RenderTargetOutput(target gfx.Handle) gfx.Handle {
	rt, err := lookup[*renderTarget](d, target)
	if err != nil {
		logging.Logger().Warn("Output of unknown render target", "handle", target, "err", err)
		return gfx.NullHandle
	}
	if rt.output == gfx.NullHandle {
		rt.output = d.register(&targetOutput{target: rt})
	}
	return rt.output
}

func (d *Device) createTargetImages(extent gfx.Extent) (*targetImages, error) {
	images := &targetImages{extent: extent}
	var err error
	images.color, images.colorMem, err = d.allocImage(imageInfo{
		width:  extent.Width,
		height: extent.Height,
		format: targetColorFormat,
		usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit |
			vk.ImageUsageTransferSrcBit),
	})
	if err != nil {
		return nil, errors.Wrap(err, "color image")
	}
	images.depth, images.depthMem, err = d.allocImage(imageInfo{
		width:  extent.Width,
		height: extent.Height,
		format: d.depthFormat,
		usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	})
	if err != nil {
		d.destroyTargetImages(images)
		return nil, errors.Wrap(err, "depth image")
	}
	if images.colorView, err = d.createView(images.color, targetColorFormat,
		vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageViewType2d, 1); err != nil {
		d.destroyTargetImages(images)
		return nil, errors.Wrap(err, "color view")
	}
	if images.depthView, err = d.createView(images.depth, d.depthFormat, d.depthAspect(), vk.ImageViewType2d, 1); err != nil {
		d.destroyTargetImages(images)
		return nil, errors.Wrap(err, "depth view")
	}

	// Passes that load instead of clear expect the attachment layouts from the start.
	cmd, err := d.beginSingleTimeCommands()
	if err != nil {
		d.destroyTargetImages(images)
		return nil, err
	}
	cmdTransition(cmd, images.color, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1,
		transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal))
	cmdTransition(cmd, images.depth, d.depthAspect(), 1,
		transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal))
	if err := d.endSingleTimeCommands(cmd); err != nil {
		d.destroyTargetImages(images)
		return nil, err
	}
	return images, nil
}

func (d *Device) destroyTargetImages(images *targetImages) {
	if images.colorView != vk.NullImageView {
		vk.DestroyImageView(d.D, images.colorView, nil)
	}
	if images.depthView != vk.NullImageView {
		vk.DestroyImageView(d.D, images.depthView, nil)
	}
	if images.color != vk.NullImage {
		vk.DestroyImage(d.D, images.color, nil)
		vk.FreeMemory(d.D, images.colorMem, nil)
	}
	if images.depth != vk.NullImage {
		vk.DestroyImage(d.D, images.depth, nil)
		vk.FreeMemory(d.D, images.depthMem, nil)
	}
}

// releaseTargetImages drops rt from its share group and frees the images once nobody renders into them.
func (d *Device) releaseTargetImages(rt *renderTarget) {
	images := rt.images
	for i, u := range images.users {
		if u == rt {
			images.users = append(images.users[:i], images.users[i+1:]...)
			break
		}
	}
	if len(images.users) == 0 {
		d.destroyTargetImages(images)
	}
}

// createTargetPass builds the pass of one target. Clearing passes start from an undefined layout, loading passes
// from the layout the previous pass left. The sampled pass hands the color image over to the present copy.
func (d *Device) createTargetPass(spec gfx.RenderTargetSpec) (vk.RenderPass, error) {
	color := vk.AttachmentDescription{
		Format:         targetColorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}
	if spec.ClearColor {
		color.LoadOp = vk.AttachmentLoadOpClear
		color.InitialLayout = vk.ImageLayoutUndefined
	}
	if spec.Sampled {
		color.FinalLayout = vk.ImageLayoutTransferSrcOptimal
	}
	depth := vk.AttachmentDescription{
		Format:         d.depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	if spec.ClearDepth {
		depth.LoadOp = vk.AttachmentLoadOpClear
		depth.InitialLayout = vk.ImageLayoutUndefined
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
		PDepthStencilAttachment: &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
		vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	attachmentWrites := vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit)
	dependencies := []vk.SubpassDependency{{
		// earlier passes and the previous present copy
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  attachmentStages | vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStageMask:  attachmentStages,
		SrcAccessMask: attachmentWrites,
		DstAccessMask: attachmentWrites | vk.AccessFlags(vk.AccessColorAttachmentReadBit|
			vk.AccessDepthStencilAttachmentReadBit),
	}}
	if spec.Sampled {
		dependencies = append(dependencies, vk.SubpassDependency{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessTransferReadBit),
		})
	}

	return vkCreateRenderPass(d.D, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{color, depth},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	})
}

func (d *Device) createTargetFramebuffer(rt *renderTarget) (vk.Framebuffer, error) {
	return vkCreateFramebuffer(d.D, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rt.renderPass,
		AttachmentCount: 2,
		PAttachments:    []vk.ImageView{rt.images.colorView, rt.images.depthView},
		Width:           rt.images.extent.Width,
		Height:          rt.images.extent.Height,
		Layers:          1,
	})
}

func (d *Device) destroyRenderTarget(h gfx.Handle, rt *renderTarget) {
	d.mu.Lock()
	if d.presentSource == h {
		d.presentSource = gfx.NullHandle
	}
	d.mu.Unlock()
	if rt.output != gfx.NullHandle {
		d.forget(rt.output)
	}
	vk.DestroyFramebuffer(d.D, rt.framebuffer, nil)
	vk.DestroyRenderPass(d.D, rt.renderPass, nil)
	d.releaseTargetImages(rt)
}
