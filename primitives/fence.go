package primitives

import (
	"sync/atomic"

	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
)

// Fence is a CPU waitable signal raised by the GPU when the work of a frame completes.
type Fence struct {
	dev    gfx.SyncDevice
	handle gfx.Handle
	queue  *deletion.Queue
	waits  atomic.Uint64
}

func NewFence(dev gfx.SyncDevice, q *deletion.Queue, signaled bool) *Fence {
	h, err := dev.CreateFence(signaled)
	gfx.Check(err, "Failed to create fence")
	return &Fence{dev: dev, handle: h, queue: q}
}

func (f *Fence) Handle() gfx.Handle { return f.handle }

// Wait blocks up to timeout nanoseconds and reports whether the fence was signaled.
func (f *Fence) Wait(timeout uint64) bool {
	f.waits.Add(1)
	signaled, err := f.dev.WaitFence(f.handle, timeout)
	gfx.Check(err, "Failed to wait for fence")
	return signaled
}

func (f *Fence) Reset() {
	gfx.Check(f.dev.ResetFence(f.handle), "Failed to reset fence")
}

// IsSignaled polls the fence without blocking.
func (f *Fence) IsSignaled() bool {
	signaled, err := f.dev.WaitFence(f.handle, 0)
	gfx.Check(err, "Failed to query fence")
	return signaled
}

// Waits counts the blocking waits issued on this fence.
func (f *Fence) Waits() uint64 { return f.waits.Load() }

func (f *Fence) Dispose() {
	f.queue.Enqueue(gfx.Fence, f.handle)
	f.handle = gfx.NullHandle
}
