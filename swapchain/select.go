package swapchain

import (
	"GPU_scene_renderer/gfx"
)

func selectSurfaceFormat(formats []gfx.SurfaceFormat) gfx.SurfaceFormat {
	gfx.Assert(len(formats) > 0, "surface reports no formats")
	for _, f := range formats {
		if f == gfx.PreferredSurfaceFormat {
			return f
		}
	}
	return formats[0]
}

func selectExtent(caps gfx.SurfaceCapabilities, window gfx.Window) gfx.Extent {
	if caps.CurrentExtent.Width != gfx.UndefinedExtent {
		return caps.CurrentExtent
	}
	w, h := window.DrawableSize()
	return gfx.Extent{
		Width:  clamp(w, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(h, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func selectImageCount(caps gfx.SurfaceCapabilities, requested uint32) uint32 {
	count := max(requested, caps.MinImageCount+1)
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(v, lo, hi uint32) uint32 {
	return min(max(v, lo), hi)
}
