// Package profiler reports frame rate, frame time spread and memory statistics at a fixed interval.
package profiler

import (
	"runtime"
	"time"

	"GPU_scene_renderer/logging"

	"github.com/loov/hrtime"
)

type Stats struct {
	FPS          float64
	MinFrameTime time.Duration
	MaxFrameTime time.Duration
	HeapMB       float64
	GCCount      uint32
}

type Profiler struct {
	now            func() time.Duration
	updateInterval time.Duration

	frameCount int
	lastReport time.Duration
	lastFrame  time.Duration
	minFrame   time.Duration
	maxFrame   time.Duration
	last       Stats
	memStats   runtime.MemStats
}

// New returns a profiler that reports once per interval; zero means one second.
func New(interval time.Duration) *Profiler {
	return newWithClock(interval, hrtime.Now)
}

func newWithClock(interval time.Duration, now func() time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	t := now()
	return &Profiler{now: now, updateInterval: interval, lastReport: t, lastFrame: t}
}

// Tick is called once per presented frame. It reports true when it logged a new set of statistics.
func (p *Profiler) Tick() bool {
	t := p.now()
	frame := t - p.lastFrame
	p.lastFrame = t
	p.frameCount++
	if p.frameCount == 1 || frame < p.minFrame {
		p.minFrame = frame
	}
	if frame > p.maxFrame {
		p.maxFrame = frame
	}

	elapsed := t - p.lastReport
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	p.last = Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		MinFrameTime: p.minFrame,
		MaxFrameTime: p.maxFrame,
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		GCCount:      p.memStats.NumGC,
	}
	logging.Logger().Info("Profiler",
		"fps", p.last.FPS, "min", p.last.MinFrameTime, "max", p.last.MaxFrameTime,
		"heapMB", p.last.HeapMB, "gc", p.last.GCCount)

	p.frameCount = 0
	p.minFrame = 0
	p.maxFrame = 0
	p.lastReport = t
	return true
}

// Last returns the statistics of the last report.
func (p *Profiler) Last() Stats { return p.last }
