package hardware

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// Thin wrappers around the raw bindings that turn out-parameters into return values. They should not hide or alter
// behavior.

func vkCreateInstance(pCreateInfo *vk.InstanceCreateInfo) (vk.Instance, error) {
	var in vk.Instance
	if err := vk.Error(vk.CreateInstance(pCreateInfo, nil, &in)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(in); err != nil {
		return nil, err
	}
	return in, nil
}

func sdlCreateVkSurface(win *sdl.Window, instance vk.Instance) (vk.Surface, error) {
	surfPtr, err := win.VulkanCreateSurface(instance)
	if err != nil {
		return nil, err
	}
	return vk.SurfaceFromPointer(uintptr(surfPtr)), nil
}

func vkCreateDevice(pd vk.PhysicalDevice, pCreateInfo *vk.DeviceCreateInfo) (vk.Device, error) {
	var d vk.Device
	if err := vk.Error(vk.CreateDevice(pd, pCreateInfo, nil, &d)); err != nil {
		return nil, err
	}
	return d, nil
}

func vkGetDeviceQueue(device vk.Device, queueFamilyIndex *uint32) (vk.Queue, error) {
	var q vk.Queue
	if queueFamilyIndex == nil {
		return nil, errors.New("queue family index was nil")
	}
	vk.GetDeviceQueue(device, *queueFamilyIndex, 0, &q)
	return q, nil
}

func vkCreateSwapchain(device vk.Device, pCreateInfo *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var sc vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(device, pCreateInfo, nil, &sc)); err != nil {
		return nil, err
	}
	return sc, nil
}

func vkCreateImageView(device vk.Device, pCreateInfo *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var iv vk.ImageView
	if err := vk.Error(vk.CreateImageView(device, pCreateInfo, nil, &iv)); err != nil {
		return nil, err
	}
	return iv, nil
}

func vkCreateRenderPass(device vk.Device, pCreateInfo *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var rp vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(device, pCreateInfo, nil, &rp)); err != nil {
		return nil, err
	}
	return rp, nil
}

func vkCreateFramebuffer(device vk.Device, pCreateInfo *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(device, pCreateInfo, nil, &fb)); err != nil {
		return nil, err
	}
	return fb, nil
}

func vkCreatePipelineLayout(device vk.Device, pCreateInfo *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var pl vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(device, pCreateInfo, nil, &pl)); err != nil {
		return nil, err
	}
	return pl, nil
}

func vkCreateGraphicsPipeline(device vk.Device, pCreateInfo vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	gp := make([]vk.Pipeline, 1)
	err := vk.Error(vk.CreateGraphicsPipelines(device, nil, 1, []vk.GraphicsPipelineCreateInfo{pCreateInfo}, nil, gp))
	if err != nil {
		return nil, err
	}
	return gp[0], nil
}

func vkCreateDescriptorSetLayout(device vk.Device, pCreateInfo *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var dsl vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(device, pCreateInfo, nil, &dsl)); err != nil {
		return nil, err
	}
	return dsl, nil
}

func vkCreateDescriptorPool(device vk.Device, pCreateInfo *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var dp vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(device, pCreateInfo, nil, &dp)); err != nil {
		return nil, err
	}
	return dp, nil
}

func vkCreateShaderModule(device vk.Device, pCreateInfo *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	var sm vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(device, pCreateInfo, nil, &sm)); err != nil {
		return nil, err
	}
	return sm, nil
}

func vkCreateCommandPool(device vk.Device, flags vk.CommandPoolCreateFlags, queueFamilyIndex uint32) (vk.CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            flags,
		QueueFamilyIndex: queueFamilyIndex,
	}
	var cp vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(device, &poolInfo, nil, &cp)); err != nil {
		return nil, err
	}
	return cp, nil
}

// vkAllocateCommandBuffersPrimary assumes every requested buffer is a primary one.
func vkAllocateCommandBuffersPrimary(device vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	buffers := make([]vk.CommandBuffer, count)
	if err := vk.Error(vk.AllocateCommandBuffers(device, &allocInfo, buffers)); err != nil {
		return nil, err
	}
	return buffers, nil
}

func vkCreateBuffer(device vk.Device, pCreateInfo *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buf vk.Buffer
	if err := vk.Error(vk.CreateBuffer(device, pCreateInfo, nil, &buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func vkAllocateMemory(device vk.Device, pAllocateInfo *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var dm vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(device, pAllocateInfo, nil, &dm)); err != nil {
		return nil, err
	}
	return dm, nil
}

func vkMapMemory(device vk.Device, memory vk.DeviceMemory, size vk.DeviceSize) (unsafe.Pointer, error) {
	var pData unsafe.Pointer
	if err := vk.Error(vk.MapMemory(device, memory, 0, size, 0, &pData)); err != nil {
		return nil, err
	}
	return pData, nil
}

func vkCreateImage(device vk.Device, pCreateInfo *vk.ImageCreateInfo) (vk.Image, error) {
	var img vk.Image
	if err := vk.Error(vk.CreateImage(device, pCreateInfo, nil, &img)); err != nil {
		return nil, err
	}
	return img, nil
}

func vkCreateSampler(device vk.Device, pCreateInfo *vk.SamplerCreateInfo) (vk.Sampler, error) {
	var s vk.Sampler
	if err := vk.Error(vk.CreateSampler(device, pCreateInfo, nil, &s)); err != nil {
		return nil, err
	}
	return s, nil
}

func vkCreateSemaphore(device vk.Device) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var s vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(device, &info, nil, &s)); err != nil {
		return nil, err
	}
	return s, nil
}

func vkCreateFence(device vk.Device, signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if err := vk.Error(vk.CreateFence(device, &info, nil, &f)); err != nil {
		return nil, err
	}
	return f, nil
}
