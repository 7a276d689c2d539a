package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Duration }

func (c *clock) now() time.Duration { return c.t }

func TestTickReportsPerInterval(t *testing.T) {
	c := &clock{}
	p := newWithClock(time.Second, c.now)

	for _, step := range []time.Duration{10, 30, 20} {
		c.t += step * time.Millisecond
		assert.False(t, p.Tick())
	}

	c.t = time.Second
	assert.True(t, p.Tick())
	stats := p.Last()
	assert.InDelta(t, 4, stats.FPS, 1e-9)
	assert.Equal(t, 10*time.Millisecond, stats.MinFrameTime)
	assert.Equal(t, 940*time.Millisecond, stats.MaxFrameTime)

	c.t += 5 * time.Millisecond
	assert.False(t, p.Tick())
}

func TestDefaultInterval(t *testing.T) {
	p := New(0)
	assert.Equal(t, time.Second, p.updateInterval)
}
