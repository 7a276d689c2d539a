package hardware

import (
	"fmt"

	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

const ApplicationName = "GPU scene renderer"
const appMajor, appMinor, appPatch = 1, 0, 0
const engineName = "No Engine"

const sdlMajor, sdlMinor, sdlPatch = int(sdl.MAJOR_VERSION), int(sdl.MINOR_VERSION), int(sdl.PATCHLEVEL)

// Vulkan spec go bindings = v1.0.7, as per: https://github.com/goki/vulkan = 1.3.239
const vkSpecMajor, vkSpecMinor, vkSpecPatch = 1, 3, 239

// Window owns the SDL window together with the Vulkan instance and the surface created from it. It implements
// gfx.Window.
type Window struct {
	Win       *sdl.Window
	Resized   bool
	Minimized bool
	Close     bool

	Inst vk.Instance
	Surf vk.Surface

	layers []string
}

// NewWindow initializes SDL and Vulkan and creates the presentation surface. Passing validation layers enables them
// on the instance and later on the device.
func NewWindow(title string, width, height int32, validationLayers []string) (*Window, error) {
	w := &Window{layers: validationLayers}
	if err := w.initSDLWindow(title, width, height); err != nil {
		return nil, err
	}
	if err := w.initVulkan(); err != nil {
		return nil, err
	}
	if err := w.createVulkanInstance(); err != nil {
		return nil, err
	}
	surf, err := sdlCreateVkSurface(w.Win, w.Inst)
	if err != nil {
		return nil, errors.Wrap(err, "create SDL window surface")
	}
	w.Surf = surf
	logging.Logger().Info("Generated SDL/Vulkan window",
		"sdl", fmt.Sprintf("v%d.%d.%d", sdlMajor, sdlMinor, sdlPatch),
		"vulkan", fmt.Sprintf("v%d.%d.%d", vkSpecMajor, vkSpecMinor, vkSpecPatch))
	return w, nil
}

// Destroy tears down the surface, the instance and the SDL window. The device must be destroyed before.
func (w *Window) Destroy() {
	vk.DestroySurface(w.Inst, w.Surf, nil)
	vk.DestroyInstance(w.Inst, nil)
	if err := w.Win.Destroy(); err != nil {
		logging.Logger().Error("Failed to destroy SDL window", "err", err)
	}
	sdl.Quit()
}

// DrawableSize is the size of the surface in pixels, which differs from the window size on high DPI displays.
func (w *Window) DrawableSize() (uint32, uint32) {
	width, height := w.Win.VulkanGetDrawableSize()
	return uint32(width), uint32(height)
}

// PollEvents drains the SDL event queue and updates the window flags. The handler sees every event after the
// flags were updated.
func (w *Window) PollEvents(handle func(sdl.Event)) {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			w.Close = true
		case *sdl.WindowEvent:
			switch ev.Event {
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
				w.Resized = true
			case sdl.WINDOWEVENT_MINIMIZED:
				w.Minimized = true
			case sdl.WINDOWEVENT_RESTORED:
				w.Minimized = false
			}
		case *sdl.KeyboardEvent:
			if ev.Keysym.Sym == sdl.K_ESCAPE {
				w.Close = true
			}
		}
		if handle != nil {
			handle(event)
		}
	}
}

// WaitEvent sleeps until SDL has a new event, e.g. while minimized.
func (w *Window) WaitEvent() {
	sdl.WaitEvent()
}

func (w *Window) initSDLWindow(title string, width, height int32) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "initialize SDL")
	}
	win, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		width,
		height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_VULKAN,
	)
	if err != nil {
		return errors.Wrap(err, "create SDL window for use with Vulkan")
	}
	logging.Logger().Info("Created SDL window", "title", title, "width", width, "height", height)
	w.Win = win
	return nil
}

func (w *Window) initVulkan() error {
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	return errors.Wrap(vk.Init(), "initialize Vulkan API")
}

func (w *Window) createVulkanInstance() error {
	required := w.Win.VulkanGetInstanceExtensions()
	supported, err := readInstanceExtensionNames()
	if err != nil {
		return err
	}
	logging.Logger().Debug("Instance extensions", "required", required, "available", len(supported))
	if !allOfAInB(required, supported) {
		return errors.Errorf("instance extensions %v are not all supported", required)
	}

	if len(w.layers) > 0 {
		layers, err := readInstanceLayerNames()
		if err != nil {
			return err
		}
		if !allOfAInB(w.layers, layers) {
			return errors.Errorf("validation layers %v are not all supported", w.layers)
		}
		logging.Logger().Info("Validation enabled", "layers", w.layers)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   ApplicationName + "\x00",
		ApplicationVersion: vk.MakeVersion(appMajor, appMinor, appPatch),
		PEngineName:        engineName + "\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(vkSpecMajor, vkSpecMinor, vkSpecPatch),
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(required)),
		PpEnabledExtensionNames: terminatedStrs(required),
	}
	if len(w.layers) > 0 {
		createInfo.EnabledLayerCount = uint32(len(w.layers))
		createInfo.PpEnabledLayerNames = terminatedStrs(w.layers)
	}
	w.Inst, err = vkCreateInstance(createInfo)
	return errors.Wrap(err, "create Vulkan instance")
}
