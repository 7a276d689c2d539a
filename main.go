package main

import (
	"flag"
	"log/slog"
	"os"
	"runtime"
	"time"

	"GPU_scene_renderer/buffers"
	"GPU_scene_renderer/config"
	"GPU_scene_renderer/deletion"
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/hardware"
	"GPU_scene_renderer/logging"
	"GPU_scene_renderer/model"
	"GPU_scene_renderer/profiler"
	"GPU_scene_renderer/renderer"
	"GPU_scene_renderer/scene"
	"GPU_scene_renderer/stl"
	"GPU_scene_renderer/swapchain"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	// SDL and the Vulkan surface must stay on the main thread.
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "renderer.toml", "path of the TOML settings file")
	meshPath   = flag.String("mesh", "", "binary STL file to show instead of the configured mesh")
)

// app bundles what the frame loop touches.
type app struct {
	settings config.Settings
	window   *hardware.Window
	device   *hardware.Device
	queue    *deletion.Queue
	chain    *swapchain.Swapchain
	camera   *buffers.UniformBufferSet
	renderer *renderer.SceneRenderer
	profiler *profiler.Profiler

	cam     *model.Camera
	builder *scene.Builder
	subject scene.NodeID
	checker gfx.Handle
	start   time.Time
}

func main() {
	flag.Parse()

	// Settings decide the final level, until then notices go to stderr.
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	settings, err := config.Load(*configPath)
	if err != nil {
		logging.Logger().Error("Failed to load settings", "err", err)
		os.Exit(1)
	}
	if *meshPath != "" {
		settings.Scene.Mesh = *meshPath
	}
	var level slog.Level
	_ = level.UnmarshalText([]byte(settings.Log.Level))
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true})))
	logging.Logger().Info("Starting scene renderer", "go", runtime.Version(), "config", *configPath)

	a, err := newApp(settings)
	if err != nil {
		logging.Logger().Error("Failed to start", "err", err)
		os.Exit(1)
	}
	defer a.destroy()
	a.loop()
}

func newApp(settings config.Settings) (*app, error) {
	a := &app{settings: settings, start: time.Now()}

	var layers []string
	if settings.Renderer.Validation {
		layers = settings.Renderer.ValidationLayers
	}
	var err error
	a.window, err = hardware.NewWindow(settings.Window.Title, int32(settings.Window.Width),
		int32(settings.Window.Height), layers)
	if err != nil {
		return nil, err
	}
	if a.device, err = hardware.NewDevice(a.window); err != nil {
		a.window.Destroy()
		return nil, err
	}

	a.queue = deletion.New(a.device, settings.Renderer.FramesInFlight)
	a.chain = swapchain.New(a.device, a.window, a.queue, swapchain.Options{MinImageCount: settings.Renderer.FramesInFlight})
	frames := a.chain.ImageCount()
	extent := a.chain.Extent()

	a.camera = buffers.NewUniformBufferSet(a.device, a.queue, frames, model.CameraUniformSize)
	a.renderer = renderer.NewSceneRenderer(a.device, a.queue, frames, renderer.Options{
		Extent:     extent,
		ClearColor: settings.Renderer.ClearColor,
		ShaderDir:  settings.Renderer.ShaderDir,
	})
	if err := a.renderer.Initialize(a.camera); err != nil {
		return nil, errors.Wrap(err, "initialize scene renderer")
	}

	a.cam = model.NewCamera(45, 0.1, 100)
	a.cam.Aspect = extent.Aspect()
	a.cam.Pos = mgl32.Vec3{0, -1, -5}
	if err := a.buildScene(); err != nil {
		return nil, err
	}
	a.profiler = profiler.New(time.Second)
	return a, nil
}

// buildScene places the configured mesh, or a cube, textured with a checker pattern.
func (a *app) buildScene() error {
	mesh := model.CubemapGeometry()
	if path := a.settings.Scene.Mesh; path != "" {
		var err error
		if mesh, err = stl.ReadFile(path); err != nil {
			return errors.Wrapf(err, "load mesh %s", path)
		}
	}
	const checkerSize = 64
	checker, err := a.device.CreateTexture(gfx.TextureSpec{
		Name:   "checker",
		Width:  checkerSize,
		Height: checkerSize,
		Pixels: model.Checker(checkerSize, 8, [4]byte{230, 230, 230, 255}, [4]byte{40, 90, 160, 255}),
	})
	if err != nil {
		return errors.Wrap(err, "create checker texture")
	}
	a.checker = checker

	a.builder = scene.NewBuilder()
	material := scene.DefaultMaterial()
	material.AlbedoMap = a.builder.AddTexture(checker)
	a.subject = a.builder.AddMesh(mesh, material, mgl32.Ident4())
	return nil
}

func (a *app) loop() {
	for !a.window.Close {
		a.window.PollEvents(a.onEvent)
		if a.window.Close {
			break
		}
		if a.window.Minimized {
			a.window.WaitEvent()
			continue
		}
		if a.window.Resized {
			a.window.Resized = false
			a.resize()
		}

		elapsed := float32(time.Since(a.start).Seconds())
		spin := mgl32.HomogRotate3D(elapsed*mgl32.DegToRad(45), mgl32.Vec3{1, 1, 0}.Normalize())
		gfx.Check(a.builder.SetTransform(a.subject, spin), "Failed to animate scene")

		a.chain.WaitForFrame()
		frame := a.chain.CurrentFrameIndex()
		cmd := a.device.CommandBuffer(frame)
		a.renderer.StartSceneVec3(a.cam.Pos, a.cam.GetView(), a.cam.GetProjection())
		a.renderer.BeginCommands(cmd)
		a.renderer.RenderScene(a.builder.Build(), frame)
		a.renderer.EndScene(cmd, frame)
		if a.chain.Present() {
			a.profiler.Tick()
		} else {
			// the swapchain already recreated itself
			a.fitViewport()
		}
	}
}

func (a *app) resize() {
	a.chain.Resize()
	a.fitViewport()
}

func (a *app) fitViewport() {
	if count := a.chain.ImageCount(); count != a.renderer.Frames() {
		a.device.WaitIdle()
		camera := buffers.NewUniformBufferSet(a.device, a.queue, count, model.CameraUniformSize)
		gfx.Check(a.renderer.SetFrameCount(camera), "Failed to follow the swapchain image count")
		a.camera.Dispose()
		a.camera = camera
	}
	extent := a.chain.Extent()
	a.cam.Aspect = extent.Aspect()
	a.renderer.SetViewportSize(extent.Width, extent.Height)
}

func (a *app) onEvent(event sdl.Event) {
	ev, ok := event.(*sdl.KeyboardEvent)
	if !ok || ev.Type != sdl.KEYUP {
		return
	}
	switch ev.Keysym.Sym {
	case sdl.K_1:
		if a.cam.Projection == model.PerspectiveProjection {
			a.cam.Projection = model.OrthographicProjection
		} else {
			a.cam.Projection = model.PerspectiveProjection
		}
		logging.Logger().Info("Switched projection", "projection", a.cam.Projection)
	case sdl.K_2:
		if a.cam.LookTarget != nil {
			a.cam.ClearTarget()
		} else {
			a.cam.SetTarget(mgl32.Vec3{})
		}
	case sdl.K_3:
		a.cam.Pos = mgl32.Vec3{0, -1, -5}
		a.cam.LookDir = mgl32.Vec3{0, 0, 1}
		a.cam.ClearTarget()
	case sdl.K_w:
		a.cam.Move(mgl32.Vec3{0, 0, 1})
	case sdl.K_a:
		a.cam.Move(mgl32.Vec3{-1, 0, 0})
	case sdl.K_s:
		a.cam.Move(mgl32.Vec3{0, 0, -1})
	case sdl.K_d:
		a.cam.Move(mgl32.Vec3{1, 0, 0})
	case sdl.K_q:
		a.cam.Turn(15, mgl32.Vec3{0, 1, 0})
	case sdl.K_e:
		a.cam.Turn(-15, mgl32.Vec3{0, 1, 0})
	}
}

func (a *app) destroy() {
	a.device.WaitIdle()
	a.renderer.Deinitialize()
	a.camera.Dispose()
	a.queue.Enqueue(gfx.Texture, a.checker)
	a.chain.Close()
	a.queue.Flush()
	a.device.Close()
	a.window.Destroy()
	logging.Logger().Info("Shut down")
}
