// Package primitives wraps the GPU synchronization objects used by the frame loop.
package primitives

import (
	"sync"

	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
)

type SemaphoreState int

const (
	Unsignaled SemaphoreState = iota
	// Submitted means a signal operation is pending on the GPU.
	Submitted
)

func (s SemaphoreState) String() string {
	if s == Submitted {
		return "submitted"
	}
	return "unsignaled"
}

type Semaphore struct {
	mu     sync.Mutex
	handle gfx.Handle
	state  SemaphoreState
	queue  *deletion.Queue
}

func NewSemaphore(dev gfx.SyncDevice, q *deletion.Queue) *Semaphore {
	h, err := dev.CreateSemaphore()
	gfx.Check(err, "Failed to create semaphore")
	return &Semaphore{handle: h, queue: q}
}

func (s *Semaphore) Handle() gfx.Handle { return s.handle }

func (s *Semaphore) State() SemaphoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Semaphore) SetState(state SemaphoreState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Consume records the GPU wait that returns the semaphore to Unsignaled.
func (s *Semaphore) Consume() {
	s.SetState(Unsignaled)
}

func (s *Semaphore) Dispose() {
	s.queue.Enqueue(gfx.Semaphore, s.handle)
	s.handle = gfx.NullHandle
}
