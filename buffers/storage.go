// Package buffers holds the per-frame GPU buffers the scene renderer streams its data through.
package buffers

import (
	"math/bits"

	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
)

// MinBufferSize keeps empty buffers bindable.
const MinBufferSize = 16

// Writer accepts a full replacement of a buffer's content.
type Writer interface {
	SetData(payload []byte)
}

// StorageBuffer is a host visible GPU buffer that is replaced wholesale on every SetData. Growing past the current
// capacity reallocates the buffer and bumps Version so bound descriptors get rewritten.
type StorageBuffer struct {
	dev      gfx.BufferDevice
	queue    *deletion.Queue
	usage    gfx.BufferUsage
	handle   gfx.Handle
	capacity uint64
	size     uint64
	version  uint64
	uploads  int
}

func NewStorageBuffer(dev gfx.BufferDevice, q *deletion.Queue) *StorageBuffer {
	return newBuffer(dev, q, gfx.StorageBuffer, MinBufferSize)
}

func newBuffer(dev gfx.BufferDevice, q *deletion.Queue, usage gfx.BufferUsage, capacity uint64) *StorageBuffer {
	b := &StorageBuffer{dev: dev, queue: q, usage: usage}
	b.allocate(capacity)
	return b
}

func (b *StorageBuffer) allocate(capacity uint64) {
	h, err := b.dev.CreateBuffer(b.usage, capacity)
	gfx.Check(err, "Failed to create buffer")
	b.handle = h
	b.capacity = capacity
	b.version++
}

func (b *StorageBuffer) SetData(payload []byte) {
	size := uint64(len(payload))
	if size > b.capacity {
		b.queue.Enqueue(gfx.Buffer, b.handle)
		b.allocate(capacityFor(size))
	}
	b.size = size
	b.uploads++
	if size == 0 {
		return
	}
	gfx.Check(b.dev.WriteBuffer(b.handle, payload), "Failed to write buffer")
}

func (b *StorageBuffer) Handle() gfx.Handle { return b.handle }

// Size is the byte length of the last payload.
func (b *StorageBuffer) Size() uint64 { return b.size }

func (b *StorageBuffer) Capacity() uint64 { return b.capacity }

// Version changes whenever the underlying GPU buffer is replaced.
func (b *StorageBuffer) Version() uint64 { return b.version }

// Uploads counts the SetData calls.
func (b *StorageBuffer) Uploads() int { return b.uploads }

func (b *StorageBuffer) Dispose() {
	b.queue.Enqueue(gfx.Buffer, b.handle)
	b.handle = gfx.NullHandle
	b.capacity = 0
	b.size = 0
}

func capacityFor(size uint64) uint64 {
	if size <= MinBufferSize {
		return MinBufferSize
	}
	return 1 << bits.Len64(size-1)
}

// StorageBufferSet keeps one StorageBuffer per frame slot.
type StorageBufferSet struct {
	buffers []*StorageBuffer
}

func NewStorageBufferSet(dev gfx.BufferDevice, q *deletion.Queue, frames uint32) *StorageBufferSet {
	s := &StorageBufferSet{buffers: make([]*StorageBuffer, frames)}
	for i := range s.buffers {
		s.buffers[i] = NewStorageBuffer(dev, q)
	}
	return s
}

func (s *StorageBufferSet) At(frame uint32) *StorageBuffer {
	gfx.Assert(frame < uint32(len(s.buffers)), "frame index %d out of range for %d buffers", frame, len(s.buffers))
	return s.buffers[frame]
}

func (s *StorageBufferSet) Frames() uint32 { return uint32(len(s.buffers)) }

func (s *StorageBufferSet) Binding(frame uint32) []gfx.Handle {
	return []gfx.Handle{s.At(frame).Handle()}
}

func (s *StorageBufferSet) Version(frame uint32) uint64 {
	return s.At(frame).Version()
}

func (s *StorageBufferSet) Dispose() {
	for _, b := range s.buffers {
		b.Dispose()
	}
	s.buffers = nil
}
