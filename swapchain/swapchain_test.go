package swapchain

import (
	"testing"

	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/gfx/gfxtest"
	"GPU_scene_renderer/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwapchain(t *testing.T, dev *gfxtest.Device) (*Swapchain, *deletion.Queue) {
	t.Helper()
	q := deletion.New(dev, 1)
	s := New(dev, &gfxtest.Window{Width: 800, Height: 600}, q, Options{})
	require.Equal(t, uint32(3), s.ImageCount())
	return s, q
}

func TestPresentCyclesFrameSlots(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, _ := newSwapchain(t, dev)

	fences := []gfx.Handle{s.Fence(0), s.Fence(1), s.Fence(2)}
	for i := 0; i < 7; i++ {
		assert.True(t, s.Present())
	}
	assert.Equal(t, uint32(1), s.CurrentFrameIndex())
	assert.Equal(t, 7, dev.Presents())

	for _, f := range fences {
		assert.GreaterOrEqual(t, dev.FenceWaits(f), 2)
	}
	assert.Equal(t, 3, dev.FenceWaits(fences[0]))
}

func TestSlotNeverReusedWithoutFenceWait(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, _ := newSwapchain(t, dev)

	for i := 0; i < 10; i++ {
		s.Present()
	}

	waited := map[gfx.Handle]bool{}
	for _, c := range dev.Calls() {
		switch c.Op {
		case "wait-fence":
			waited[c.Handle] = true
		case "present":
			assert.True(t, waited[c.Handle], "fence %d presented without a wait", c.Handle)
			waited[c.Handle] = false
		}
	}
}

func TestOutOfDateAcquireResizesOnce(t *testing.T) {
	dev := gfxtest.NewDevice()
	dev.AcquireResults[4] = gfx.OutOfDate
	s, _ := newSwapchain(t, dev)

	var results []bool
	for i := 0; i < 7; i++ {
		results = append(results, s.Present())
		if i == 3 {
			assert.Equal(t, uint32(0), s.CurrentFrameIndex())
			assert.Zero(t, dev.Destroyed(gfx.ImageView), "views of the old swapchain may still be in flight")
			assert.Zero(t, dev.Destroyed(gfx.Framebuffer))
		}
	}

	assert.Equal(t, []bool{true, true, true, false, true, true, true}, results)
	assert.Equal(t, uint64(2), s.Generation())
	assert.Equal(t, 1, dev.WaitIdles())
	assert.Equal(t, 1, dev.SwapchainsDestroyed())
	assert.Equal(t, uint32(0), s.CurrentFrameIndex())
	assert.Equal(t, 3, dev.Destroyed(gfx.ImageView))
	assert.Equal(t, 3, dev.Destroyed(gfx.Framebuffer))
}

func TestResizeDefersDisposalAndTransitionsImages(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, q := newSwapchain(t, dev)
	assert.Equal(t, 3, dev.Transitions())

	s.Resize()
	assert.Equal(t, 6, dev.Transitions())
	assert.Zero(t, dev.Destroyed(gfx.ImageView))
	assert.Zero(t, dev.Destroyed(gfx.Framebuffer))
	assert.Zero(t, dev.Destroyed(gfx.Semaphore))
	retiredAt := q.Epoch()

	for i := 0; i < 2; i++ {
		require.True(t, s.Present())
		assert.Zero(t, dev.Destroyed(gfx.ImageView), "present %d", i)
	}
	require.True(t, s.Present())
	assert.Equal(t, retiredAt+3, q.Epoch())
	assert.Equal(t, 3, dev.Destroyed(gfx.ImageView))
	assert.Equal(t, 3, dev.Destroyed(gfx.Framebuffer))
	assert.Equal(t, 6, dev.Destroyed(gfx.Semaphore))
	assert.Equal(t, 3, dev.Destroyed(gfx.Fence))
}

func TestPresentFailureResizes(t *testing.T) {
	dev := gfxtest.NewDevice()
	dev.PresentResults[2] = gfx.Suboptimal
	s, _ := newSwapchain(t, dev)

	assert.True(t, s.Present())
	assert.False(t, s.Present())
	assert.Equal(t, uint64(2), s.Generation())
	assert.Equal(t, uint32(0), s.CurrentFrameIndex())
	assert.True(t, s.Present())
}

func TestCollectionsStayAligned(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, _ := newSwapchain(t, dev)

	check := func() {
		n := int(s.ImageCount())
		assert.Equal(t, [6]int{n, n, n, n, n, n}, s.Counts())
		assert.Less(t, s.CurrentFrameIndex(), s.ImageCount())
	}
	check()

	dev.Capabilities.MinImageCount = 4
	s.Resize()
	assert.Equal(t, uint32(5), s.ImageCount())
	check()

	dev.Capabilities.CurrentExtent = gfx.Extent{Width: 1024, Height: 768}
	s.Resize()
	assert.Equal(t, gfx.Extent{Width: 1024, Height: 768}, s.Extent())
	check()

	s.Dispose()
	assert.Equal(t, [6]int{}, s.Counts())
	assert.Equal(t, gfx.NullHandle, s.Handle())
}

func TestSubmittedAcquireSemaphoreAsserts(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, _ := newSwapchain(t, dev)

	s.acquired[0].SetState(primitives.Submitted)
	assert.Panics(t, func() { s.Present() })
}

func TestCloseReleasesEverything(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, q := newSwapchain(t, dev)
	s.Present()

	dev.WaitIdle()
	s.Close()
	q.Flush()

	assert.Equal(t, gfx.NullHandle, s.RenderPass())
	assert.Equal(t, 1, dev.SwapchainsDestroyed())
	assert.Equal(t, 1, dev.Destroyed(gfx.RenderPass))
	for _, kind := range []gfx.ResourceKind{gfx.ImageView, gfx.Framebuffer, gfx.Semaphore, gfx.Fence, gfx.RenderPass} {
		assert.Equal(t, 0, dev.Live(kind), kind.String())
	}
}

func TestWaitForFrameDoesNotReset(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, _ := newSwapchain(t, dev)

	s.WaitForFrame()
	assert.True(t, dev.FenceSignaled(s.Fence(0)))
	assert.Equal(t, 1, dev.FenceWaits(s.Fence(0)))
	assert.True(t, s.Present())
}

func TestIDIsStable(t *testing.T) {
	dev := gfxtest.NewDevice()
	s, _ := newSwapchain(t, dev)
	id := s.ID()
	s.Resize()
	assert.Equal(t, id, s.ID())
}

func TestSelectSurfaceFormat(t *testing.T) {
	other := gfx.SurfaceFormat{Format: gfx.FormatR8G8B8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}

	assert.Equal(t, gfx.PreferredSurfaceFormat, selectSurfaceFormat([]gfx.SurfaceFormat{other, gfx.PreferredSurfaceFormat}))
	assert.Equal(t, other, selectSurfaceFormat([]gfx.SurfaceFormat{other}))
	assert.Panics(t, func() { selectSurfaceFormat(nil) })
}

func TestFormatFallbackOnCreate(t *testing.T) {
	dev := gfxtest.NewDevice()
	dev.Formats = []gfx.SurfaceFormat{{Format: gfx.FormatR8G8B8A8Unorm}}
	s, _ := newSwapchain(t, dev)
	assert.Equal(t, gfx.FormatR8G8B8A8Unorm, s.Format().Format)
}

func TestSelectImageCount(t *testing.T) {
	tests := []struct {
		name      string
		min, max  uint32
		requested uint32
		want      uint32
	}{
		{"min plus one", 2, 8, 0, 3},
		{"clamped to max", 2, 2, 0, 2},
		{"unbounded max", 2, 0, 6, 6},
		{"requested below min", 3, 8, 1, 4},
		{"requested above max", 2, 4, 9, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := gfx.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			assert.Equal(t, tt.want, selectImageCount(caps, tt.requested))
		})
	}
}

func TestSelectExtent(t *testing.T) {
	caps := gfx.SurfaceCapabilities{
		CurrentExtent:  gfx.Extent{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
		MinImageExtent: gfx.Extent{Width: 16, Height: 16},
		MaxImageExtent: gfx.Extent{Width: 4096, Height: 2048},
	}

	assert.Equal(t, gfx.Extent{Width: 4096, Height: 16}, selectExtent(caps, &gfxtest.Window{Width: 10000, Height: 0}))
	assert.Equal(t, gfx.Extent{Width: 640, Height: 480}, selectExtent(caps, &gfxtest.Window{Width: 640, Height: 480}))

	caps.CurrentExtent = gfx.Extent{Width: 300, Height: 200}
	assert.Equal(t, caps.CurrentExtent, selectExtent(caps, &gfxtest.Window{Width: 640, Height: 480}))
}
