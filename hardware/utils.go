package hardware

import (
	"encoding/hex"
	"fmt"
	"unsafe"

	"GPU_scene_renderer/gfx"

	vk "github.com/goki/vulkan"
)

// allOfAInB reports whether every entry of a is contained in b. Used for extension and layer support checks.
func allOfAInB(a []string, b []string) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// terminatedStrs returns a copy of strs where every entry ends in \x00, as Vulkan expects for name lists.
func terminatedStrs(strs []string) []string {
	out := make([]string, len(strs))
	for i, s := range strs {
		if len(s) == 0 || s[len(s)-1] != '\x00' {
			s += "\x00"
		}
		out[i] = s
	}
	return out
}

// asUint32Arr reinterprets SPIR-V bytes as words without copying.
func asUint32Arr(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func toResult(r vk.Result) gfx.Result {
	switch r {
	case vk.Success:
		return gfx.Success
	case vk.Suboptimal:
		return gfx.Suboptimal
	case vk.ErrorOutOfDate:
		return gfx.OutOfDate
	}
	return gfx.Failure
}

func asVendorName(v uint32) string {
	switch v {
	case 0x1002:
		return "AMD"
	case 0x1010:
		return "ImgTec"
	case 0x10DE:
		return "NVIDIA"
	case 0x13B5:
		return "ARM"
	case 0x5143:
		return "Qualcomm"
	case 0x8086:
		return "INTEL"
	case 0x10005:
		return "Mesa"
	}
	return "unknown"
}

func asDriverVersion(vendor uint32, raw uint32) string {
	if vendor == 0x10DE {
		return fmt.Sprintf("%d.%d.%d.%d", (raw>>22)&0x3ff, (raw>>14)&0x0ff, (raw>>6)&0x0ff, raw&0x003f)
	}
	return vk.Version(raw).String()
}

func toStringDeviceType(dt vk.PhysicalDeviceType) string {
	switch dt {
	case vk.PhysicalDeviceTypeOther:
		return "other"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated gpu"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete gpu"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual gpu"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

func describeDevice(props vk.PhysicalDeviceProperties) []any {
	return []any{
		"name", vk.ToString(props.DeviceName[:]),
		"api", vk.Version(props.ApiVersion).String(),
		"driver", asDriverVersion(props.VendorID, props.DriverVersion),
		"vendor", asVendorName(props.VendorID),
		"type", toStringDeviceType(props.DeviceType),
		"uuid", hex.EncodeToString(props.PipelineCacheUUID[:]),
	}
}
