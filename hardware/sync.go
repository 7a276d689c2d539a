package hardware

import (
	"GPU_scene_renderer/gfx"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// fence also owns the command buffer that copies the frame into the swapchain image. The buffer is only rewritten
// after the fence was waited for, so it is never re-recorded while in flight.
type fence struct {
	handle vk.Fence
	blit   vk.CommandBuffer
}

func (d *Device) CreateSemaphore() (gfx.Handle, error) {
	s, err := vkCreateSemaphore(d.D)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create semaphore")
	}
	return d.register(s), nil
}

func (d *Device) CreateFence(signaled bool) (gfx.Handle, error) {
	f, err := vkCreateFence(d.D, signaled)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create fence")
	}
	return d.register(&fence{handle: f}), nil
}

func (d *Device) WaitFence(h gfx.Handle, timeout uint64) (bool, error) {
	f, err := lookup[*fence](d, h)
	if err != nil {
		return false, err
	}
	switch r := vk.WaitForFences(d.D, 1, []vk.Fence{f.handle}, vk.True, timeout); r {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	default:
		return false, errors.Wrapf(vk.Error(r), "wait for fence %d", h)
	}
}

func (d *Device) ResetFence(h gfx.Handle) error {
	f, err := lookup[*fence](d, h)
	if err != nil {
		return err
	}
	return errors.Wrapf(vk.Error(vk.ResetFences(d.D, 1, []vk.Fence{f.handle})), "reset fence %d", h)
}

func (d *Device) destroyFence(f *fence) {
	if f.blit != nil {
		vk.FreeCommandBuffers(d.D, d.pool, 1, []vk.CommandBuffer{f.blit})
	}
	vk.DestroyFence(d.D, f.handle, nil)
}
