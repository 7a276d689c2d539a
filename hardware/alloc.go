package hardware

import (
	"unsafe"

	"GPU_scene_renderer/gfx"
	"GPU_scene_renderer/logging"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

const hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

// buffer is host visible and stays mapped for its whole life, writes are plain memory copies.
type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   vk.DeviceSize
	usage  vk.BufferUsageFlags
	mapped unsafe.Pointer
}

func bufferUsageFlags(usage gfx.BufferUsage) vk.BufferUsageFlags {
	switch usage {
	case gfx.IndirectBuffer:
		return vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit | vk.BufferUsageStorageBufferBit)
	case gfx.UniformBuffer:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
}

func (d *Device) CreateBuffer(usage gfx.BufferUsage, size uint64) (gfx.Handle, error) {
	b, err := d.allocBuffer(vk.DeviceSize(size), bufferUsageFlags(usage), hostVisible)
	if err != nil {
		return gfx.NullHandle, err
	}
	if b.mapped, err = vkMapMemory(d.D, b.memory, b.size); err != nil {
		d.destroyBuffer(b)
		return gfx.NullHandle, errors.Wrap(err, "map buffer memory")
	}
	return d.register(b), nil
}

func (d *Device) WriteBuffer(h gfx.Handle, data []byte) error {
	b, err := lookup[*buffer](d, h)
	if err != nil {
		return err
	}
	if vk.DeviceSize(len(data)) > b.size {
		return errors.Errorf("write of %d bytes exceeds buffer %d of %d bytes", len(data), h, b.size)
	}
	if len(data) > 0 {
		vk.Memcopy(b.mapped, data)
	}
	return nil
}

func (d *Device) allocBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	handle, err := vkCreateBuffer(d.D, &info)
	if err != nil {
		return nil, errors.Wrap(err, "create buffer")
	}
	req := readBufferMemoryRequirements(d.D, handle)
	memType, err := d.findMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(d.D, handle, nil)
		return nil, err
	}
	memory, err := vkAllocateMemory(d.D, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	})
	if err != nil {
		vk.DestroyBuffer(d.D, handle, nil)
		return nil, errors.Wrap(err, "allocate buffer memory")
	}
	if err := vk.Error(vk.BindBufferMemory(d.D, handle, memory, 0)); err != nil {
		vk.DestroyBuffer(d.D, handle, nil)
		vk.FreeMemory(d.D, memory, nil)
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	return &buffer{handle: handle, memory: memory, size: size, usage: usage}, nil
}

func (d *Device) destroyBuffer(b *buffer) {
	if b.mapped != nil {
		vk.UnmapMemory(d.D, b.memory)
	}
	vk.DestroyBuffer(d.D, b.handle, nil)
	vk.FreeMemory(d.D, b.memory, nil)
}

type imageInfo struct {
	width, height uint32
	format        vk.Format
	usage         vk.ImageUsageFlags
	layers        uint32
	cube          bool
}

func (d *Device) allocImage(info imageInfo) (vk.Image, vk.DeviceMemory, error) {
	create := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    info.format,
		Extent: vk.Extent3D{
			Width:  info.width,
			Height: info.height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   max(info.layers, 1),
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         info.usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if info.cube {
		create.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	img, err := vkCreateImage(d.D, create)
	if err != nil {
		return vk.NullImage, vk.NullDeviceMemory, errors.Wrap(err, "create image")
	}
	req := readImageMemoryRequirements(d.D, img)
	memType, err := d.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.D, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, err
	}
	memory, err := vkAllocateMemory(d.D, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	})
	if err != nil {
		vk.DestroyImage(d.D, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, errors.Wrap(err, "allocate image memory")
	}
	vk.BindImageMemory(d.D, img, memory, 0)
	return img, memory, nil
}

func (d *Device) createView(img vk.Image, format vk.Format, aspect vk.ImageAspectFlags, viewType vk.ImageViewType, layers uint32) (vk.ImageView, error) {
	return vkCreateImageView(d.D, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: viewType,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: max(layers, 1),
		},
	})
}

func (d *Device) findMemoryType(typeFilter uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		ofType := typeFilter&(1<<i) > 0
		hasProperties := d.memProps.MemoryTypes[i].PropertyFlags&props == props
		if ofType && hasProperties {
			logging.Logger().Debug("Found memory type", "type", i, "heap", d.memProps.MemoryTypes[i].HeapIndex)
			return i, nil
		}
	}
	return 0, errors.Errorf("no memory type matches filter %b with properties %b", typeFilter, props)
}
