package gfxtest

import (
	"fmt"

	"GPU_scene_renderer/gfx"
)

// Op is one recorded command, formatted for easy comparison in tests.
type Op string

type CommandBuffer struct {
	Frame  uint32
	device *Device
	ops    []Op
	ended  bool
}

func (c *CommandBuffer) Begin() {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	c.ops = c.ops[:0]
	c.ended = false
}

func (c *CommandBuffer) BeginRenderPass(target gfx.Handle, pipeline gfx.Handle) {
	c.append(Op(fmt.Sprintf("begin target=%d pipeline=%d", target, pipeline)))
}

func (c *CommandBuffer) BindDescriptorSet(pipeline gfx.Handle, frame uint32) {
	c.append(Op(fmt.Sprintf("bind pipeline=%d frame=%d", pipeline, frame)))
}

func (c *CommandBuffer) DrawIndirect(buffer gfx.Handle, drawCount uint32, stride uint32) {
	c.append(Op(fmt.Sprintf("draw buffer=%d count=%d stride=%d", buffer, drawCount, stride)))
}

func (c *CommandBuffer) EndRenderPass() {
	c.append("end-pass")
}

func (c *CommandBuffer) End() {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	c.ended = true
	c.device.pending = append(c.device.pending, c)
}

func (c *CommandBuffer) append(op Op) {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	c.ops = append(c.ops, op)
}

// Ops returns the commands recorded since the last Begin.
func (c *CommandBuffer) Ops() []Op {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	return append([]Op(nil), c.ops...)
}

func (c *CommandBuffer) Ended() bool {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	return c.ended
}

// Commands returns the fake command buffer of a frame slot.
func (d *Device) Commands(frame uint32) *CommandBuffer {
	return d.CommandBuffer(frame).(*CommandBuffer)
}

// Window is a fixed size gfx.Window.
type Window struct {
	Width  uint32
	Height uint32
}

func (w *Window) DrawableSize() (uint32, uint32) {
	return w.Width, w.Height
}
