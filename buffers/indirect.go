package buffers

import (
	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
)

// DrawIndirectCommand mirrors VkDrawIndirectCommand.
type DrawIndirectCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

type IndirectBuffer struct {
	*StorageBuffer
	count uint32
}

func NewIndirectBuffer(dev gfx.BufferDevice, q *deletion.Queue) *IndirectBuffer {
	return &IndirectBuffer{StorageBuffer: newBuffer(dev, q, gfx.IndirectBuffer, MinBufferSize)}
}

func (b *IndirectBuffer) SetCommands(commands []DrawIndirectCommand) {
	Upload(b.StorageBuffer, commands)
	b.count = uint32(len(commands))
}

func (b *IndirectBuffer) CommandCount() uint32 { return b.count }

// IndirectBufferSet keeps one IndirectBuffer per frame slot.
type IndirectBufferSet struct {
	buffers []*IndirectBuffer
}

func NewIndirectBufferSet(dev gfx.BufferDevice, q *deletion.Queue, frames uint32) *IndirectBufferSet {
	s := &IndirectBufferSet{buffers: make([]*IndirectBuffer, frames)}
	for i := range s.buffers {
		s.buffers[i] = NewIndirectBuffer(dev, q)
	}
	return s
}

func (s *IndirectBufferSet) At(frame uint32) *IndirectBuffer {
	gfx.Assert(frame < uint32(len(s.buffers)), "frame index %d out of range for %d indirect buffers", frame, len(s.buffers))
	return s.buffers[frame]
}

func (s *IndirectBufferSet) Frames() uint32 { return uint32(len(s.buffers)) }

func (s *IndirectBufferSet) Dispose() {
	for _, b := range s.buffers {
		b.Dispose()
	}
	s.buffers = nil
}
