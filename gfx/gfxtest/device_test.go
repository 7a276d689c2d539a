package gfxtest

import (
	"testing"

	"GPU_scene_renderer/gfx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ gfx.Device = (*Device)(nil)

func TestAcquireScript(t *testing.T) {
	d := NewDevice()
	d.AcquireResults[2] = gfx.OutOfDate

	sc, err := d.CreateSwapchain(gfx.SwapchainInfo{MinImageCount: 3})
	require.NoError(t, err)

	idx, res := d.AcquireNextImage(sc, 1)
	assert.Equal(t, gfx.Success, res)
	assert.Equal(t, uint32(0), idx)

	_, res = d.AcquireNextImage(sc, 1)
	assert.Equal(t, gfx.OutOfDate, res)

	idx, res = d.AcquireNextImage(sc, 1)
	assert.Equal(t, gfx.Success, res)
	assert.Equal(t, uint32(1), idx)
}

func TestPresentSignalsFenceAndSubmits(t *testing.T) {
	d := NewDevice()
	sc, err := d.CreateSwapchain(gfx.SwapchainInfo{MinImageCount: 2})
	require.NoError(t, err)
	fence, err := d.CreateFence(false)
	require.NoError(t, err)

	cb := d.Commands(0)
	cb.Begin()
	cb.DrawIndirect(7, 3, gfx.DrawIndirectStride)
	cb.End()

	assert.Equal(t, gfx.Success, d.Present(sc, 0, 1, 2, fence))
	assert.True(t, d.FenceSignaled(fence))
	assert.Equal(t, 1, d.Submitted())
	assert.Equal(t, []Op{"draw buffer=7 count=3 stride=16"}, cb.Ops())
}

func TestWriteBufferBounds(t *testing.T) {
	d := NewDevice()
	b, err := d.CreateBuffer(gfx.StorageBuffer, 4)
	require.NoError(t, err)

	assert.NoError(t, d.WriteBuffer(b, []byte{1, 2, 3, 4}))
	assert.Error(t, d.WriteBuffer(b, []byte{1, 2, 3, 4, 5}))

	info, ok := d.Buffer(b)
	require.True(t, ok)
	assert.Equal(t, 1, info.Writes)

	d.Destroy(gfx.Buffer, b)
	assert.Equal(t, 0, d.Live(gfx.Buffer))
	assert.Equal(t, 1, d.Destroyed(gfx.Buffer))
}
