// Package deletion defers the destruction of GPU objects until the frames that may still reference them have
// retired. Every entry is stamped with the epoch it was enqueued in; Checkpoint advances the epoch once per presented
// frame and destroys the entries that are at least lag epochs old.
package deletion

import (
	"sync"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"
)

type entry struct {
	kind   gfx.ResourceKind
	handle gfx.Handle
	epoch  uint64
}

type Queue struct {
	mu      sync.Mutex
	dev     gfx.Destroyer
	lag     uint64
	epoch   uint64
	entries []entry
}

// New returns a queue that keeps objects alive for lag checkpoints. A lag below 1 is raised to 1.
func New(dev gfx.Destroyer, lag uint32) *Queue {
	if lag < 1 {
		lag = 1
	}
	return &Queue{dev: dev, lag: uint64(lag)}
}

// Enqueue schedules h for destruction. Null handles are ignored.
func (q *Queue) Enqueue(kind gfx.ResourceKind, h gfx.Handle) {
	if h == gfx.NullHandle {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry{kind: kind, handle: h, epoch: q.epoch})
}

// Checkpoint marks a frame boundary and releases the entries that are old enough.
func (q *Queue) Checkpoint() {
	q.mu.Lock()
	q.epoch++
	var due []entry
	kept := q.entries[:0]
	for _, e := range q.entries {
		if q.epoch-e.epoch >= q.lag {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	q.mu.Unlock()

	q.destroy(due)
}

// Flush destroys every pending entry. The caller must have waited for the device to be idle.
func (q *Queue) Flush() {
	q.mu.Lock()
	due := q.entries
	q.entries = nil
	q.mu.Unlock()

	q.destroy(due)
	if len(due) > 0 {
		logging.Logger().Debug("Flushed deletion queue", "objects", len(due))
	}
}

// EnsureLag raises the lag to at least n checkpoints, typically the swapchain image count.
func (q *Queue) EnsureLag(n uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if uint64(n) > q.lag {
		q.lag = uint64(n)
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Epoch() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epoch
}

func (q *Queue) destroy(entries []entry) {
	for _, e := range entries {
		q.dev.Destroy(e.kind, e.handle)
	}
}
