package buffers

import (
	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
)

// UniformBufferSet keeps one fixed-size uniform buffer per frame slot.
type UniformBufferSet struct {
	size    uint64
	buffers []*StorageBuffer
}

func NewUniformBufferSet(dev gfx.BufferDevice, q *deletion.Queue, frames uint32, size uint64) *UniformBufferSet {
	s := &UniformBufferSet{size: size, buffers: make([]*StorageBuffer, frames)}
	for i := range s.buffers {
		s.buffers[i] = newBuffer(dev, q, gfx.UniformBuffer, max(size, MinBufferSize))
	}
	return s
}

func (s *UniformBufferSet) SetData(frame uint32, payload []byte) {
	gfx.Assert(uint64(len(payload)) <= s.size, "uniform payload of %d bytes exceeds %d", len(payload), s.size)
	s.At(frame).SetData(payload)
}

func (s *UniformBufferSet) At(frame uint32) *StorageBuffer {
	gfx.Assert(frame < uint32(len(s.buffers)), "frame index %d out of range for %d uniform buffers", frame, len(s.buffers))
	return s.buffers[frame]
}

func (s *UniformBufferSet) Frames() uint32 { return uint32(len(s.buffers)) }

func (s *UniformBufferSet) Binding(frame uint32) []gfx.Handle {
	return []gfx.Handle{s.At(frame).Handle()}
}

func (s *UniformBufferSet) Version(frame uint32) uint64 {
	return s.At(frame).Version()
}

func (s *UniformBufferSet) Dispose() {
	for _, b := range s.buffers {
		b.Dispose()
	}
	s.buffers = nil
}
