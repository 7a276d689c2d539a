package gfx

// The contracts below split the device by concern so each package only asks for what it uses. The Vulkan
// implementation lives in package hardware, a recording fake for tests in gfx/gfxtest.

// Window is the native window the surface was created from. The renderer never owns it.
type Window interface {
	DrawableSize() (width uint32, height uint32)
}

// Destroyer releases GPU objects. It is called by the deletion queue once an object is known to be unused.
type Destroyer interface {
	Destroy(kind ResourceKind, h Handle)
}

type SyncDevice interface {
	CreateSemaphore() (Handle, error)
	CreateFence(signaled bool) (Handle, error)
	// WaitFence blocks up to timeout nanoseconds and reports whether the fence got signaled.
	WaitFence(fence Handle, timeout uint64) (bool, error)
	ResetFence(fence Handle) error
}

type SurfaceDevice interface {
	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	CreateSwapchain(info SwapchainInfo) (Handle, error)
	SwapchainImages(swapchain Handle) ([]Handle, error)
	DestroySwapchain(swapchain Handle)
	// TransitionToPresent moves freshly created images into the present layout using a one-shot command buffer.
	TransitionToPresent(images []Handle, format Format) error
	CreateImageView(image Handle, format Format) (Handle, error)
	CreatePresentPass(format Format) (Handle, error)
	CreateFramebuffer(pass Handle, views []Handle, extent Extent) (Handle, error)
	AcquireNextImage(swapchain Handle, semaphore Handle) (uint32, Result)
	// Present submits every command buffer ended since the last present, waiting on wait and signaling signal and
	// fence, then queues the image for presentation.
	Present(swapchain Handle, image uint32, wait Handle, signal Handle, fence Handle) Result
}

type BufferDevice interface {
	CreateBuffer(usage BufferUsage, size uint64) (Handle, error)
	WriteBuffer(buffer Handle, data []byte) error
}

type PipelineDevice interface {
	CreatePipeline(spec PipelineSpec, frames uint32) (Handle, error)
	UpdateBindings(pipeline Handle, frame uint32, bindings []Binding) error
	ResizeRenderTarget(target Handle, extent Extent) error
	RenderTargetOutput(target Handle) Handle
}

type ResourceDevice interface {
	CreateRenderTarget(spec RenderTargetSpec) (Handle, error)
	CreateTexture(spec TextureSpec) (Handle, error)
}

// CommandBuffer records the draw work of one frame slot. End hands the buffer to the device for the next Present.
type CommandBuffer interface {
	Begin()
	BeginRenderPass(target Handle, pipeline Handle)
	BindDescriptorSet(pipeline Handle, frame uint32)
	DrawIndirect(buffer Handle, drawCount uint32, stride uint32)
	EndRenderPass()
	End()
}

type Device interface {
	Destroyer
	SyncDevice
	SurfaceDevice
	BufferDevice
	PipelineDevice
	ResourceDevice
	CommandBuffer(frame uint32) CommandBuffer
	WaitIdle()
}
