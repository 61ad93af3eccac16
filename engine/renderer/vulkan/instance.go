package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
)

// VulkanInstance owns the instance, the window surface made from it and the
// validation callback. One is created per device negotiation attempt since
// the API version is fixed at instance creation.
type VulkanInstance struct {
	Instance  vk.Instance
	Surface   vk.Surface
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback
	debug          bool
}

func NewVulkanInstance(appName string, apiVersion uint32, platformExtensions []string, debug bool) (*VulkanInstance, error) {
	vi := &VulkanInstance{debug: debug}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         apiVersion,
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Anima HAL"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, platformExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required instance extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if debug {
		var err error
		if layers, err = validationLayers(); err != nil {
			return nil, err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vi.Allocator, &vi.Instance); res != vk.Success {
		return nil, resultError("vkCreateInstance", res)
	}
	if err := vk.InitInstance(vi.Instance); err != nil {
		vk.DestroyInstance(vi.Instance, vi.Allocator)
		return nil, err
	}
	core.LogInfo("Vulkan instance created (api %d.%d).", vk.Version(apiVersion).Major(), vk.Version(apiVersion).Minor())

	if debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vi.Instance, &debugCreateInfo, vi.Allocator, &dbg); res != vk.Success {
			vi.Destroy()
			return nil, resultError("vkCreateDebugReportCallback", res)
		}
		vi.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	return vi, nil
}

// validationLayers checks the Khronos layer is installed and names it.
func validationLayers() ([]string, error) {
	required := "VK_LAYER_KHRONOS_validation"

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return nil, resultError("vkEnumerateInstanceLayerProperties", res)
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == required {
			core.LogInfo("Validation layer %s enabled.", required)
			return []string{required}, nil
		}
	}
	return nil, fmt.Errorf("validation layer %s: %w", required, core.ErrUnsupported)
}

func (vi *VulkanInstance) Destroy() {
	if vi.Surface != vk.NullSurface {
		vk.DestroySurface(vi.Instance, vi.Surface, vi.Allocator)
		vi.Surface = vk.NullSurface
	}
	if vi.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vi.Instance, vi.debugMessenger, vi.Allocator)
		vi.debugMessenger = vk.NullDebugReportCallback
	}
	if vi.Instance != nil {
		vk.DestroyInstance(vi.Instance, vi.Allocator)
		vi.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
