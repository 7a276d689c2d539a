package renderpass

import "GPU_scene_renderer/gfx"

// Input is anything a pass can bind: per-frame buffers or textures. A changed Version makes the pass rewrite the
// frame's bindings.
type Input interface {
	Binding(frame uint32) []gfx.Handle
	Version(frame uint32) uint64
}

// Texture binds the same image for every frame.
type Texture gfx.Handle

func (t Texture) Binding(uint32) []gfx.Handle { return []gfx.Handle{gfx.Handle(t)} }

func (t Texture) Version(uint32) uint64 { return 0 }

// TextureSource lists the images of a texture array.
type TextureSource interface {
	Handles() []gfx.Handle
}

// Textures binds a texture array. The pass must be marked dirty when the collection changes.
type Textures struct {
	Source TextureSource
}

func (t Textures) Binding(uint32) []gfx.Handle {
	handles := t.Source.Handles()
	if len(handles) > MaxTextures {
		handles = handles[:MaxTextures]
	}
	return handles
}

func (t Textures) Version(uint32) uint64 { return 0 }
