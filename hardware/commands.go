package hardware

import (
	"slices"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// commandBuffer records one frame slot. Failures while recording are fatal, the validation layers report the cause.
type commandBuffer struct {
	device *Device
	frame  uint32
	cb     vk.CommandBuffer
}

var _ gfx.CommandBuffer = (*commandBuffer)(nil)

func (d *Device) CommandBuffer(frame uint32) gfx.CommandBuffer {
	d.mu.Lock()
	cmd, ok := d.commands[frame]
	d.mu.Unlock()
	if ok {
		return cmd
	}
	buffers, err := vkAllocateCommandBuffersPrimary(d.D, d.pool, 1)
	gfx.Check(err, "Failed to allocate command buffer")
	cmd = &commandBuffer{device: d, frame: frame, cb: buffers[0]}
	d.mu.Lock()
	d.commands[frame] = cmd
	d.mu.Unlock()
	logging.Logger().Debug("Allocated command buffer", "frame", frame)
	return cmd
}

func (c *commandBuffer) Begin() {
	vk.ResetCommandBuffer(c.cb, 0)
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	gfx.Check(vk.Error(vk.BeginCommandBuffer(c.cb, &beginInfo)), "Failed to begin recording command buffer")
}

func (c *commandBuffer) BeginRenderPass(target gfx.Handle, pipe gfx.Handle) {
	rt, err := lookup[*renderTarget](c.device, target)
	gfx.Check(err, "Failed to begin render pass")
	p, err := lookup[*pipeline](c.device, pipe)
	gfx.Check(err, "Failed to begin render pass")

	extent := vk.Extent2D{Width: rt.extent.Width, Height: rt.extent.Height}
	clearValues := []vk.ClearValue{
		vk.NewClearValue(rt.spec.Clear[:]),
		vk.NewClearDepthStencil(1, 0),
	}
	renderPassInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rt.renderPass,
		Framebuffer:     rt.framebuffer,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.cb, &renderPassInfo, vk.SubpassContentsInline)
	vk.CmdBindPipeline(c.cb, vk.PipelineBindPointGraphics, p.handle)
	vk.CmdSetViewport(c.cb, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(c.cb, 0, 1, []vk.Rect2D{{Extent: extent}})
}

func (c *commandBuffer) BindDescriptorSet(pipe gfx.Handle, frame uint32) {
	p, err := lookup[*pipeline](c.device, pipe)
	gfx.Check(err, "Failed to bind descriptor set")
	gfx.Assert(frame < uint32(len(p.sets)), "frame %d has no descriptor set", frame)
	vk.CmdBindDescriptorSets(c.cb, vk.PipelineBindPointGraphics, p.layout, 0, 1,
		[]vk.DescriptorSet{p.sets[frame]}, 0, nil)
}

func (c *commandBuffer) DrawIndirect(buf gfx.Handle, drawCount uint32, stride uint32) {
	if drawCount == 0 {
		return
	}
	b, err := lookup[*buffer](c.device, buf)
	gfx.Check(err, "Failed to record indirect draw")
	vk.CmdDrawIndirect(c.cb, b.handle, 0, drawCount, stride)
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.cb)
}

// End closes the recording and queues the buffer for the next Present.
func (c *commandBuffer) End() {
	gfx.Check(vk.Error(vk.EndCommandBuffer(c.cb)), "Failed to record command buffer")
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	if !slices.Contains(c.device.pending, c.cb) {
		c.device.pending = append(c.device.pending, c.cb)
	}
}

func (d *Device) beginSingleTimeCommands() (vk.CommandBuffer, error) {
	buffers, err := vkAllocateCommandBuffersPrimary(d.D, d.pool, 1)
	if err != nil {
		return nil, errors.Wrap(err, "allocate single time command buffer")
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(buffers[0], &beginInfo)); err != nil {
		vk.FreeCommandBuffers(d.D, d.pool, 1, buffers)
		return nil, errors.Wrap(err, "begin single time command buffer")
	}
	return buffers[0], nil
}

// endSingleTimeCommands submits cmd and blocks until the graphics queue is idle.
func (d *Device) endSingleTimeCommands(cmd vk.CommandBuffer) error {
	defer vk.FreeCommandBuffers(d.D, d.pool, 1, []vk.CommandBuffer{cmd})
	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return errors.Wrap(err, "end single time command buffer")
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if err := vk.Error(vk.QueueSubmit(d.graphicsQ, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
		return errors.Wrap(err, "submit single time command buffer")
	}
	return errors.Wrap(vk.Error(vk.QueueWaitIdle(d.graphicsQ)), "wait for single time command buffer")
}

type layoutTransition struct {
	from, to             vk.ImageLayout
	srcAccess, dstAccess vk.AccessFlags
	srcStage, dstStage   vk.PipelineStageFlags
}

// transitionFor covers the layout changes the device needs. Anything else is a programming error.
func transitionFor(from, to vk.ImageLayout) layoutTransition {
	t := layoutTransition{from: from, to: to}
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		t.dstAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		t.srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		t.dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		t.srcAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		t.dstAccess = vk.AccessFlags(vk.AccessShaderReadBit)
		t.srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		t.dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutColorAttachmentOptimal:
		t.dstAccess = vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
		t.srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		t.dstStage = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutDepthStencilAttachmentOptimal:
		t.dstAccess = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
		t.srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		t.dstStage = vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutPresentSrc:
		t.srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		t.dstStage = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutPresentSrc:
		t.srcAccess = vk.AccessFlags(vk.AccessTransferWriteBit)
		t.srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		t.dstStage = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		gfx.Assert(false, "unsupported image layout transition %d -> %d", from, to)
	}
	return t
}

func cmdTransition(cmd vk.CommandBuffer, img vk.Image, aspect vk.ImageAspectFlags, layers uint32, t layoutTransition) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       t.srcAccess,
		DstAccessMask:       t.dstAccess,
		OldLayout:           t.from,
		NewLayout:           t.to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: max(layers, 1),
		},
	}
	vk.CmdPipelineBarrier(cmd, t.srcStage, t.dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
