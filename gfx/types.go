package gfx

import "fmt"

// Handle identifies a GPU object owned by a Device. The zero value is the null handle.
type Handle uint64

const NullHandle Handle = 0

// Result is the outcome of an acquire or present operation. Only Success lets a frame reach the screen, Suboptimal
// and OutOfDate ask for the swapchain to be recreated.
type Result int

const (
	Success Result = iota
	Suboptimal
	OutOfDate
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Suboptimal:
		return "suboptimal"
	case OutOfDate:
		return "out-of-date"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// NeedsResize reports whether the result is one of the transient swapchain conditions.
func (r Result) NeedsResize() bool {
	return r == Suboptimal || r == OutOfDate
}

// Format and ColorSpace carry the numeric values of the Vulkan enums so the back-end can cast them directly.
type Format uint32
type ColorSpace uint32

const (
	FormatUndefined      Format = 0
	FormatR8G8B8A8Unorm  Format = 37
	FormatR8G8B8A8Srgb   Format = 43
	FormatB8G8R8A8Unorm  Format = 44
	FormatB8G8R8A8Srgb   Format = 50
	FormatD32Sfloat      Format = 126
	FormatD24UnormS8Uint Format = 129

	ColorSpaceSrgbNonlinear ColorSpace = 0
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PreferredSurfaceFormat is picked whenever the surface offers it.
var PreferredSurfaceFormat = SurfaceFormat{Format: FormatB8G8R8A8Unorm, ColorSpace: ColorSpaceSrgbNonlinear}

type Extent struct {
	Width  uint32
	Height uint32
}

// UndefinedExtent is reported as the current width when the window system lets the swapchain pick the extent.
const UndefinedExtent uint32 = 0xFFFFFFFF

func (e Extent) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

type SurfaceCapabilities struct {
	MinImageCount       uint32
	MaxImageCount       uint32 // 0 means no upper bound
	CurrentExtent       Extent
	MinImageExtent      Extent
	MaxImageExtent      Extent
	MaxImageArrayLayers uint32
}

type SwapchainInfo struct {
	Format        SurfaceFormat
	Extent        Extent
	MinImageCount uint32
}

// ResourceKind tells Destroy which kind of object a handle refers to.
type ResourceKind int

const (
	ImageView ResourceKind = iota
	Framebuffer
	Semaphore
	Fence
	Buffer
	Pipeline
	RenderPass
	RenderTarget
	Texture
)

func (k ResourceKind) String() string {
	switch k {
	case ImageView:
		return "image-view"
	case Framebuffer:
		return "framebuffer"
	case Semaphore:
		return "semaphore"
	case Fence:
		return "fence"
	case Buffer:
		return "buffer"
	case Pipeline:
		return "pipeline"
	case RenderPass:
		return "render-pass"
	case RenderTarget:
		return "render-target"
	case Texture:
		return "texture"
	}
	return fmt.Sprintf("resource(%d)", int(k))
}

type BufferUsage int

const (
	StorageBuffer BufferUsage = iota
	IndirectBuffer
	UniformBuffer
)

type BindingKind int

const (
	BindUniform BindingKind = iota
	BindStorage
	BindTexture
	BindTextureArray
)

// IsTexture reports whether the binding samples images. Texture bindings are always written, an empty handle list
// resets them to the fallback texture.
func (k BindingKind) IsTexture() bool {
	return k == BindTexture || k == BindTextureArray
}

// BindingLayout declares one entry of a pipeline's binding table.
type BindingLayout struct {
	Binding uint32
	Kind    BindingKind
	Count   uint32
}

// Binding is the current content of one binding table entry for one frame slot.
type Binding struct {
	Binding uint32
	Kind    BindingKind
	Handles []Handle
}

type PipelineSpec struct {
	Name           string
	VertexShader   string
	FragmentShader string
	Target         Handle
	Layout         []BindingLayout
	DepthTest      bool
	DepthWrite     bool
	Blend          bool
	CullBack       bool
}

// RenderTargetSpec describes an offscreen color + depth target. A target created with Share renders into the images
// of the shared target, which lets consecutive passes accumulate into one output.
type RenderTargetSpec struct {
	Name       string
	Extent     Extent
	ClearColor bool
	ClearDepth bool
	Clear      [4]float32
	Share      Handle
	Sampled    bool
}

type TextureSpec struct {
	Name   string
	Width  uint32
	Height uint32
	Cube   bool
	Pixels []byte // RGBA8, one face after the other for cube textures
}

// DrawIndirectStride is the byte size of one indirect draw record.
const DrawIndirectStride = 16
