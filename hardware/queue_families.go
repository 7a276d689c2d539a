package hardware

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

type queueFamilyIndices struct {
	graphics *uint32
	present  *uint32
}

// findQueueFamilies picks the first graphics capable family and the first family that can present to surf.
func findQueueFamilies(pd vk.PhysicalDevice, surf vk.Surface) (queueFamilyIndices, error) {
	var indices queueFamilyIndices
	families := readQueueFamilies(pd)
	for i := range families {
		idx := uint32(i)
		if indices.graphics == nil && isBitSet(families[i], vk.QueueGraphicsBit) {
			indices.graphics = &idx
		}
		if indices.present == nil {
			var presentSupport vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(pd, idx, surf, &presentSupport)
			if presentSupport > 0 {
				indices.present = &idx
			}
		}
		if indices.complete() {
			break
		}
	}
	if indices.graphics == nil {
		return indices, errors.New("unable to find graphics capable queue family")
	}
	if indices.present == nil {
		return indices, errors.New("unable to find present capable queue family for given surface")
	}
	return indices, nil
}

func isBitSet(family vk.QueueFamilyProperties, bit vk.QueueFlagBits) bool {
	return vk.QueueFlagBits(family.QueueFlags)&bit > 0
}

func (q queueFamilyIndices) complete() bool {
	return q.graphics != nil && q.present != nil
}

// shared reports whether graphics and presentation run on the same family.
func (q queueFamilyIndices) shared() bool {
	return *q.graphics == *q.present
}

func (q queueFamilyIndices) unique() []uint32 {
	if q.shared() {
		return []uint32{*q.graphics}
	}
	return []uint32{*q.graphics, *q.present}
}

func (q queueFamilyIndices) toQueueCreateInfos() []vk.DeviceQueueCreateInfo {
	families := q.unique()
	infos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, f := range families {
		infos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}
	return infos
}
