package hardware

import (
	"testing"

	"GPU_scene_renderer/gfx"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllOfAInB(t *testing.T) {
	available := []string{"VK_KHR_surface", "VK_KHR_swapchain", "VK_EXT_debug_utils"}
	assert.True(t, allOfAInB([]string{"VK_KHR_swapchain"}, available))
	assert.True(t, allOfAInB(nil, available))
	assert.False(t, allOfAInB([]string{"VK_KHR_swapchain", "VK_KHR_ray_query"}, available))
	assert.False(t, allOfAInB([]string{"VK_KHR_surface"}, nil))
}

func TestTerminatedStrs(t *testing.T) {
	in := []string{"VK_LAYER_KHRONOS_validation", "VK_KHR_swapchain\x00"}
	out := terminatedStrs(in)
	assert.Equal(t, []string{"VK_LAYER_KHRONOS_validation\x00", "VK_KHR_swapchain\x00"}, out)
	assert.Equal(t, "VK_LAYER_KHRONOS_validation", in[0], "input must stay untouched")
}

func TestAsUint32Arr(t *testing.T) {
	words := asUint32Arr([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00, 0xff})
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0], "SPIR-V magic number")
	assert.Equal(t, uint32(0x00010000), words[1])
	assert.Nil(t, asUint32Arr([]byte{1, 2}))
}

func TestToResult(t *testing.T) {
	assert.Equal(t, gfx.Success, toResult(vk.Success))
	assert.Equal(t, gfx.Suboptimal, toResult(vk.Suboptimal))
	assert.Equal(t, gfx.OutOfDate, toResult(vk.ErrorOutOfDate))
	assert.Equal(t, gfx.Failure, toResult(vk.ErrorDeviceLost))
	assert.Equal(t, gfx.Failure, toResult(vk.Timeout))
}

func TestVendorAndDriverNames(t *testing.T) {
	assert.Equal(t, "NVIDIA", asVendorName(0x10DE))
	assert.Equal(t, "AMD", asVendorName(0x1002))
	assert.Equal(t, "unknown", asVendorName(0x1234))
	raw := uint32(535<<22 | 98<<14 | 1<<6 | 2)
	assert.Equal(t, "535.98.1.2", asDriverVersion(0x10DE, raw))
	assert.Equal(t, "discrete gpu", toStringDeviceType(vk.PhysicalDeviceTypeDiscreteGpu))
}

func TestBufferUsageFlags(t *testing.T) {
	indirect := bufferUsageFlags(gfx.IndirectBuffer)
	assert.NotZero(t, indirect&vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit))
	assert.NotZero(t, indirect&vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit))
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), bufferUsageFlags(gfx.UniformBuffer))
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), bufferUsageFlags(gfx.StorageBuffer))
}

func TestTransitionFor(t *testing.T) {
	upload := transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	assert.Zero(t, upload.srcAccess)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), upload.dstAccess)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), upload.dstStage)

	sample := transitionFor(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), sample.dstAccess)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), sample.dstStage)

	present := transitionFor(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc)
	assert.Equal(t, vk.ImageLayoutPresentSrc, present.to)

	assert.Panics(t, func() {
		transitionFor(vk.ImageLayoutPresentSrc, vk.ImageLayoutTransferDstOptimal)
	})
}

func TestSelectPresentMode(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, selectPresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}))
	assert.Equal(t, vk.PresentModeFifo, selectPresentMode([]vk.PresentMode{vk.PresentModeImmediate}))
}

func TestQueueFamilyIndices(t *testing.T) {
	zero, one := uint32(0), uint32(1)
	same := queueFamilyIndices{graphics: &zero, present: &zero}
	assert.True(t, same.shared())
	assert.Equal(t, []uint32{0}, same.unique())
	assert.Len(t, same.toQueueCreateInfos(), 1)

	split := queueFamilyIndices{graphics: &zero, present: &one}
	assert.False(t, split.shared())
	assert.Equal(t, []uint32{0, 1}, split.unique())
	assert.False(t, queueFamilyIndices{graphics: &zero}.complete())
}

func TestTextureLayout(t *testing.T) {
	flat := gfx.TextureSpec{Width: 4, Height: 2}
	cube := gfx.TextureSpec{Width: 4, Height: 4, Cube: true}
	assert.Equal(t, uint32(1), textureLayers(flat))
	assert.Equal(t, 32, textureSize(flat))
	assert.Equal(t, uint32(6), textureLayers(cube))
	assert.Equal(t, 4*4*4*6, textureSize(cube))
}

func TestDescriptorType(t *testing.T) {
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, descriptorType(gfx.BindUniform))
	assert.Equal(t, vk.DescriptorTypeStorageBuffer, descriptorType(gfx.BindStorage))
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, descriptorType(gfx.BindTextureArray))
	assert.True(t, isTextureBinding(gfx.BindTexture))
	assert.False(t, isTextureBinding(gfx.BindStorage))
}

func TestHandleTable(t *testing.T) {
	d := &Device{objects: map[gfx.Handle]any{}}
	h := d.register(&fence{})
	_, err := lookup[*fence](d, h)
	require.NoError(t, err)
	_, err = lookup[*buffer](d, h)
	assert.Error(t, err)

	obj, ok := d.forget(h)
	assert.True(t, ok)
	assert.IsType(t, &fence{}, obj)
	_, err = lookup[*fence](d, h)
	assert.Error(t, err)
}
