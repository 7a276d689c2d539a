// Package hardware is the Vulkan implementation of the gfx contracts. It talks to the driver through the goki/vulkan
// bindings and gets its window and surface from SDL.
package hardware

import (
	"sync"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

var deviceExtensions = []string{
	"VK_KHR_swapchain",
}

// Device implements gfx.Device. Every object handed out is registered in a handle table, the handle is the only
// thing the backend-neutral packages see.
type Device struct {
	window   *Window
	pd       vk.PhysicalDevice
	props    vk.PhysicalDeviceProperties
	memProps vk.PhysicalDeviceMemoryProperties
	families queueFamilyIndices

	D         vk.Device
	graphicsQ vk.Queue
	presentQ  vk.Queue
	pool      vk.CommandPool

	depthFormat vk.Format

	mu      sync.Mutex
	next    gfx.Handle
	objects map[gfx.Handle]any

	commands map[uint32]*commandBuffer
	pending  []vk.CommandBuffer
	// presentSource is the sampled render target copied into the swapchain image on Present.
	presentSource gfx.Handle
	fallback      *texture
}

var _ gfx.Device = (*Device)(nil)

// NewDevice selects a physical device that can present to the window's surface and creates the logical device,
// its queues and the command pool.
func NewDevice(w *Window) (*Device, error) {
	d := &Device{
		window:   w,
		objects:  map[gfx.Handle]any{},
		commands: map[uint32]*commandBuffer{},
	}
	if err := d.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		return nil, err
	}
	pool, err := vkCreateCommandPool(d.D, vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		*d.families.graphics)
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	d.pool = pool

	d.depthFormat, err = d.findSupportedFormat(
		[]vk.Format{vk.FormatD32Sfloat, vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint},
		vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
	)
	if err != nil {
		return nil, err
	}

	// Texture descriptors nobody bound yet point here, the texture array is never partially written.
	d.fallback, err = d.newTexture(gfx.TextureSpec{Name: "fallback", Width: 1, Height: 1,
		Pixels: []byte{255, 255, 255, 255}})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) selectPhysicalDevice() error {
	available, err := readPhysicalDevices(d.window.Inst)
	if err != nil {
		return err
	}
	var fallback vk.PhysicalDevice
	for _, pd := range available {
		if !d.isDeviceSuitable(pd) {
			continue
		}
		if readPhysicalDeviceProperties(pd).DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			d.pd = pd
			break
		}
		if fallback == nil {
			fallback = pd
		}
	}
	if d.pd == nil {
		d.pd = fallback
	}
	if d.pd == nil {
		return errors.New("no suitable physical device (GPU) found")
	}

	d.families, err = findQueueFamilies(d.pd, d.window.Surf)
	if err != nil {
		return errors.Wrap(err, "read queue families of selected device")
	}
	d.props = readPhysicalDeviceProperties(d.pd)
	d.memProps = readDeviceMemoryProperties(d.pd)
	logging.Logger().Info("Selected physical device", describeDevice(d.props)...)
	return nil
}

func (d *Device) isDeviceSuitable(pd vk.PhysicalDevice) bool {
	props := readPhysicalDeviceProperties(pd)
	features := readPhysicalDeviceFeatures(pd)
	logging.Logger().Debug("Checking physical device", describeDevice(props)...)

	if _, err := findQueueFamilies(pd, d.window.Surf); err != nil {
		logging.Logger().Debug("Missing queue families", "err", err)
		return false
	}
	if features.SamplerAnisotropy != vk.True || features.MultiDrawIndirect != vk.True {
		return false
	}
	extensions, err := readDeviceExtensionNames(pd)
	if err != nil || !allOfAInB(deviceExtensions, extensions) {
		return false
	}
	formats, err := readSurfaceFormats(pd, d.window.Surf)
	if err != nil {
		return false
	}
	return len(formats) > 0 && len(readSurfacePresentModes(pd, d.window.Surf)) > 0
}

func (d *Device) createLogicalDevice() error {
	queueInfos := d.families.toQueueCreateInfos()
	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
		MultiDrawIndirect: vk.True,
	}
	createInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: terminatedStrs(deviceExtensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}
	if len(d.window.layers) > 0 {
		createInfo.EnabledLayerCount = uint32(len(d.window.layers))
		createInfo.PpEnabledLayerNames = terminatedStrs(d.window.layers)
	}

	var err error
	if d.D, err = vkCreateDevice(d.pd, createInfo); err != nil {
		return errors.Wrap(err, "create logical device")
	}
	if d.graphicsQ, err = vkGetDeviceQueue(d.D, d.families.graphics); err != nil {
		return errors.Wrap(err, "get graphics queue")
	}
	if d.presentQ, err = vkGetDeviceQueue(d.D, d.families.present); err != nil {
		return errors.Wrap(err, "get present queue")
	}
	return nil
}

func (d *Device) findSupportedFormat(candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags) (vk.Format, error) {
	for _, format := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.pd, format, &props)
		props.Deref()
		if tiling == vk.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		}
		if tiling == vk.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return vk.FormatUndefined, errors.Errorf("none of the formats %v is supported", candidates)
}

func (d *Device) register(obj any) gfx.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.objects[d.next] = obj
	return d.next
}

func (d *Device) forget(h gfx.Handle) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj, ok := d.objects[h]
	delete(d.objects, h)
	return obj, ok
}

func lookup[T any](d *Device, h gfx.Handle) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	obj, ok := d.objects[h]
	if !ok {
		return zero, errors.Errorf("unknown handle %d", h)
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("handle %d is a %T, not a %T", h, obj, zero)
	}
	return t, nil
}

// Destroy releases the object behind h. Unknown handles are logged and ignored.
func (d *Device) Destroy(kind gfx.ResourceKind, h gfx.Handle) {
	obj, ok := d.forget(h)
	if !ok {
		logging.Logger().Warn("Destroy of unknown handle", "kind", kind, "handle", h)
		return
	}
	d.destroyObject(h, obj)
}

func (d *Device) destroyObject(h gfx.Handle, obj any) {
	switch o := obj.(type) {
	case vk.ImageView:
		vk.DestroyImageView(d.D, o, nil)
	case vk.Framebuffer:
		vk.DestroyFramebuffer(d.D, o, nil)
	case vk.Semaphore:
		vk.DestroySemaphore(d.D, o, nil)
	case *fence:
		d.destroyFence(o)
	case *buffer:
		d.destroyBuffer(o)
	case *pipeline:
		d.destroyPipeline(o)
	case vk.RenderPass:
		vk.DestroyRenderPass(d.D, o, nil)
	case *renderTarget:
		d.destroyRenderTarget(h, o)
	case *texture:
		d.destroyTexture(o)
	case *swapchain:
		vk.DestroySwapchain(d.D, o.handle, nil)
	case *targetOutput, vk.Image:
		// owned by a render target or a swapchain
	default:
		logging.Logger().Warn("Destroy of unexpected object", "handle", h, "type", obj)
	}
}

func (d *Device) WaitIdle() {
	if err := vk.Error(vk.DeviceWaitIdle(d.D)); err != nil {
		logging.Logger().Error("Failed to wait for device idle", "err", err)
	}
}

// Close destroys whatever is still registered and then the device itself. The window is left to its owner.
func (d *Device) Close() {
	d.WaitIdle()
	d.mu.Lock()
	leftover := make([]gfx.Handle, 0, len(d.objects))
	for h := range d.objects {
		leftover = append(leftover, h)
	}
	d.mu.Unlock()
	if len(leftover) > 0 {
		logging.Logger().Warn("Leftover device objects", "count", len(leftover))
	}
	for _, h := range leftover {
		if obj, ok := d.forget(h); ok {
			d.destroyObject(h, obj)
		}
	}
	d.destroyTexture(d.fallback)
	vk.DestroyCommandPool(d.D, d.pool, nil)
	vk.DestroyDevice(d.D, nil)
}
