package hardware

import (
	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const textureFormat = vk.FormatR8g8b8a8Unorm

type texture struct {
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler
}

func textureLayers(spec gfx.TextureSpec) uint32 {
	if spec.Cube {
		return 6
	}
	return 1
}

func textureSize(spec gfx.TextureSpec) int {
	return int(spec.Width) * int(spec.Height) * 4 * int(textureLayers(spec))
}

func (d *Device) CreateTexture(spec gfx.TextureSpec) (gfx.Handle, error) {
	t, err := d.newTexture(spec)
	if err != nil {
		return gfx.NullHandle, err
	}
	return d.register(t), nil
}

// newTexture uploads the pixels through a staging buffer and leaves the image in the shader read layout.
func (d *Device) newTexture(spec gfx.TextureSpec) (*texture, error) {
	if spec.Width == 0 || spec.Height == 0 {
		return nil, errors.Errorf("texture %q has no pixels", spec.Name)
	}
	if len(spec.Pixels) != textureSize(spec) {
		return nil, errors.Errorf("texture %q: got %d bytes of pixels, want %d", spec.Name, len(spec.Pixels),
			textureSize(spec))
	}
	layers := textureLayers(spec)

	staging, err := d.allocBuffer(vk.DeviceSize(len(spec.Pixels)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q staging buffer", spec.Name)
	}
	defer d.destroyBuffer(staging)
	data, err := vkMapMemory(d.D, staging.memory, staging.size)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q map staging buffer", spec.Name)
	}
	vk.Memcopy(data, spec.Pixels)
	vk.UnmapMemory(d.D, staging.memory)

	t := &texture{}
	t.image, t.memory, err = d.allocImage(imageInfo{
		width:  spec.Width,
		height: spec.Height,
		format: textureFormat,
		usage:  vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		layers: layers,
		cube:   spec.Cube,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q", spec.Name)
	}

	cmd, err := d.beginSingleTimeCommands()
	if err != nil {
		d.destroyTexture(t)
		return nil, err
	}
	color := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	cmdTransition(cmd, t.image, color, layers, transitionFor(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal))
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: color,
			LayerCount: layers,
		},
		ImageExtent: vk.Extent3D{Width: spec.Width, Height: spec.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cmd, staging.handle, t.image, vk.ImageLayoutTransferDstOptimal, 1,
		[]vk.BufferImageCopy{region})
	cmdTransition(cmd, t.image, color, layers,
		transitionFor(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal))
	if err := d.endSingleTimeCommands(cmd); err != nil {
		d.destroyTexture(t)
		return nil, errors.Wrapf(err, "texture %q upload", spec.Name)
	}

	viewType := vk.ImageViewType2d
	if spec.Cube {
		viewType = vk.ImageViewTypeCube
	}
	if t.view, err = d.createView(t.image, textureFormat, color, viewType, layers); err != nil {
		d.destroyTexture(t)
		return nil, errors.Wrapf(err, "texture %q view", spec.Name)
	}
	if t.sampler, err = d.createSampler(spec.Cube); err != nil {
		d.destroyTexture(t)
		return nil, errors.Wrapf(err, "texture %q sampler", spec.Name)
	}
	logging.Logger().Debug("Created texture", "name", spec.Name, "width", spec.Width, "height", spec.Height,
		"cube", spec.Cube)
	return t, nil
}

func (d *Device) createSampler(clamp bool) (vk.Sampler, error) {
	address := vk.SamplerAddressModeRepeat
	if clamp {
		address = vk.SamplerAddressModeClampToEdge
	}
	return vkCreateSampler(d.D, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           d.props.Limits.MaxSamplerAnisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	})
}

func (d *Device) destroyTexture(t *texture) {
	if t == nil {
		return
	}
	if t.sampler != nil {
		vk.DestroySampler(d.D, t.sampler, nil)
	}
	if t.view != vk.NullImageView {
		vk.DestroyImageView(d.D, t.view, nil)
	}
	if t.image != vk.NullImage {
		vk.DestroyImage(d.D, t.image, nil)
		vk.FreeMemory(d.D, t.memory, nil)
	}
}
