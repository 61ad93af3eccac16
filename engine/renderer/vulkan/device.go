package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// VulkanDevice implements driver.Device. It owns every cache keyed by the
// objects created through it and the single immediate context.
type VulkanDevice struct {
	instance *VulkanInstance

	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	Allocator          *vk.AllocationCallbacks
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	level           driver.FeatureLevel
	timestampPeriod float32
	timestampBits   uint32

	layouts    *descriptorLayouts
	passes     *renderPassCache
	pipelines  *pipelineCache
	queries    *queryPool
	defaultSmp *VulkanSampler

	ctx *VulkanContext
}

type VulkanPhysicalDeviceRequirements struct {
	Type                 driver.DriverType
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

type physicalDeviceCandidate struct {
	device     vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	features   vk.PhysicalDeviceFeatures
	memory     vk.PhysicalDeviceMemoryProperties
	queues     VulkanPhysicalDeviceQueueFamilyInfo
	support    VulkanSwapchainSupportInfo
}

// SelectPhysicalDevice picks the best device of the requested driver type
// that can render and present to surface.
func SelectPhysicalDevice(instance vk.Instance, surface vk.Surface, driverType driver.DriverType) (*physicalDeviceCandidate, error) {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, nil); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return nil, fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrNoDevice)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Type:                 driverType,
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	var best *physicalDeviceCandidate
	for _, pd := range physicalDevices {
		c := &physicalDeviceCandidate{device: pd}
		vk.GetPhysicalDeviceProperties(pd, &c.properties)
		c.properties.Deref()
		c.properties.Limits.Deref()
		vk.GetPhysicalDeviceFeatures(pd, &c.features)
		c.features.Deref()
		vk.GetPhysicalDeviceMemoryProperties(pd, &c.memory)
		c.memory.Deref()

		if !PhysicalDeviceMeetsRequirements(pd, surface, &c.properties, &requirements, &c.queues, &c.support) {
			continue
		}
		if best == nil || deviceTypeScore(c.properties.DeviceType) > deviceTypeScore(best.properties.DeviceType) {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no %s device meets the requirements: %w", driverType, core.ErrNoDevice)
	}

	props := best.properties
	core.LogInfo("Selected device: '%s' (%s).", cString(props.DeviceName[:]), deviceTypeName(props.DeviceType))
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(props.DriverVersion).Major(),
		vk.Version(props.DriverVersion).Minor(),
		vk.Version(props.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(props.ApiVersion).Major(),
		vk.Version(props.ApiVersion).Minor(),
		vk.Version(props.ApiVersion).Patch(),
	)
	for j := uint32(0); j < best.memory.MemoryHeapCount; j++ {
		heap := best.memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
	return best, nil
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	name := cString(properties.DeviceName[:])
	if !driverTypeMatches(requirements.Type, properties.DeviceType) {
		core.LogDebug("Device '%s' is %s, not a %s device. Skipping.", name, deviceTypeName(properties.DeviceType), requirements.Type)
		return false
	}

	*outQueueInfo = VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		ComputeFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := vk.QueueFlagBits(queueFamilies[i].QueueFlags)
		currentTransferScore := 0

		if flags&vk.QueueGraphicsBit != 0 && outQueueInfo.GraphicsFamilyIndex < 0 {
			outQueueInfo.GraphicsFamilyIndex = int32(i)
			currentTransferScore++
		}
		if flags&vk.QueueComputeBit != 0 && outQueueInfo.ComputeFamilyIndex < 0 {
			outQueueInfo.ComputeFamilyIndex = int32(i)
			currentTransferScore++
		}
		// The least shared transfer family is the most likely to be dedicated.
		if flags&vk.QueueTransferBit != 0 && currentTransferScore <= minTransferScore {
			minTransferScore = currentTransferScore
			outQueueInfo.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false
		}
		// Prefer presenting from the graphics family.
		if supportsPresent == vk.True && (outQueueInfo.PresentFamilyIndex < 0 || int32(i) == outQueueInfo.GraphicsFamilyIndex) {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("Graphics %d | Present %d | Compute %d | Transfer %d | %s",
		outQueueInfo.GraphicsFamilyIndex,
		outQueueInfo.PresentFamilyIndex,
		outQueueInfo.ComputeFamilyIndex,
		outQueueInfo.TransferFamilyIndex,
		name)

	if requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0 {
		return false
	}
	if requirements.Present && outQueueInfo.PresentFamilyIndex < 0 {
		return false
	}

	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		return false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensions(device)
		if err != nil {
			return false
		}
		for _, required := range requirements.DeviceExtensionNames {
			if !available[required] {
				core.LogInfo("Required extension not found: '%s', skipping device.", required)
				return false
			}
		}
	}
	return true
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	props := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	names := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		names[cString(props[i].ExtensionName[:])] = true
	}
	return names, nil
}

// DeviceCreate makes the logical device on the selected physical device.
func DeviceCreate(instance *VulkanInstance, pd *physicalDeviceCandidate, level driver.FeatureLevel) (*VulkanDevice, error) {
	device := &VulkanDevice{
		instance:           instance,
		PhysicalDevice:     pd.device,
		Allocator:          instance.Allocator,
		SwapchainSupport:   pd.support,
		GraphicsQueueIndex: pd.queues.GraphicsFamilyIndex,
		PresentQueueIndex:  pd.queues.PresentFamilyIndex,
		Properties:         pd.properties,
		Features:           pd.features,
		Memory:             pd.memory,
		level:              level,
		timestampPeriod:    pd.properties.Limits.TimestampPeriod,
	}

	core.LogInfo("Creating logical device...")

	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	// Only ask for what the device has.
	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:    pd.features.SamplerAnisotropy,
		TextureCompressionBC: pd.features.TextureCompressionBC,
		DepthClamp:           pd.features.DepthClamp,
		ImageCubeArray:       pd.features.ImageCubeArray,
		GeometryShader:       pd.features.GeometryShader,
		IndependentBlend:     pd.features.IndependentBlend,
		DualSrcBlend:         pd.features.DualSrcBlend,
		FillModeNonSolid:     pd.features.FillModeNonSolid,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if available, err := deviceExtensions(pd.device); err == nil && available["VK_KHR_portability_subset"] {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if res := vk.CreateDevice(pd.device, &deviceCreateInfo, device.Allocator, &logical); res != vk.Success {
		instance.Destroy()
		return nil, resultError("vkCreateDevice", res)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(logical, uint32(device.GraphicsQueueIndex), 0, &graphicsQueue)
	vk.GetDeviceQueue(logical, uint32(device.PresentQueueIndex), 0, &presentQueue)
	device.GraphicsQueue = graphicsQueue
	device.PresentQueue = presentQueue

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd.device, &queueFamilyCount, nil)
	families := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd.device, &queueFamilyCount, families)
	families[device.GraphicsQueueIndex].Deref()
	device.timestampBits = families[device.GraphicsQueueIndex].TimestampValidBits

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logical, &poolCreateInfo, device.Allocator, &pool); res != vk.Success {
		device.destroy()
		return nil, resultError("vkCreateCommandPool", res)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	var err error
	if device.layouts, err = newDescriptorLayouts(device); err != nil {
		device.destroy()
		return nil, err
	}
	device.passes = newRenderPassCache(device)
	device.pipelines = newPipelineCache(device)
	if device.queries, err = newQueryPool(device, maxQueries); err != nil {
		device.destroy()
		return nil, err
	}
	smp, err := device.CreateSampler(metadata.SamplerCreationParams{
		Filter:   metadata.FILTER_MIN_MAG_MIP_LINEAR,
		AddressU: metadata.TEXTURE_ADDRESS_CLAMP,
		AddressV: metadata.TEXTURE_ADDRESS_CLAMP,
		AddressW: metadata.TEXTURE_ADDRESS_CLAMP,
		MaxLOD:   1000,
	})
	if err != nil {
		device.destroy()
		return nil, err
	}
	device.defaultSmp = smp.(*VulkanSampler)

	if device.ctx, err = newVulkanContext(device); err != nil {
		device.destroy()
		return nil, err
	}
	return device, nil
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
	if supportInfo.FormatCount != 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfaceFormats", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
	if supportInfo.PresentModeCount != 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
	}
	return nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter with
// every property bit set, or -1.
func (device *VulkanDevice) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < device.Memory.MemoryTypeCount; i++ {
		memoryType := device.Memory.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocate binds fresh memory matching requirements.
func (device *VulkanDevice) allocate(requirements vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	requirements.Deref()
	index := device.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if index < 0 {
		return nil, fmt.Errorf("no memory type with properties %#x: %w", properties, core.ErrUnsupported)
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device.LogicalDevice, &allocInfo, device.Allocator, &memory); res != vk.Success {
		return nil, resultError("vkAllocateMemory", res)
	}
	return memory, nil
}

func (device *VulkanDevice) Context() driver.Context {
	return device.ctx
}

func (device *VulkanDevice) Info() metadata.RendererInfo {
	props := device.Properties
	vendor, ok := vendorNames[props.VendorID]
	if !ok {
		vendor = fmt.Sprintf("0x%04x", props.VendorID)
	}
	api := vk.Version(props.ApiVersion)
	return metadata.RendererInfo{
		APIVersion:     fmt.Sprintf("Vulkan %d.%d.%d", api.Major(), api.Minor(), api.Patch()),
		ShaderVersion:  "spirv_1_0",
		Renderer:       cString(props.DeviceName[:]),
		Vendor:         vendor,
		ShaderPlatform: "spirv",
		Caps:           device.Caps(),
		DepthMin:       0,
		DepthMax:       1,
		ViewportVUp:    false,
	}
}

func (device *VulkanDevice) Caps() metadata.Caps {
	var caps metadata.Caps
	if device.Features.TextureCompressionBC == vk.True {
		caps |= metadata.CAPS_TEX_FORMAT_BC1 | metadata.CAPS_TEX_FORMAT_BC2 | metadata.CAPS_TEX_FORMAT_BC3 |
			metadata.CAPS_TEX_FORMAT_BC4 | metadata.CAPS_TEX_FORMAT_BC5 | metadata.CAPS_TEX_FORMAT_BC6 | metadata.CAPS_TEX_FORMAT_BC7
	}
	if device.timestampBits > 0 && device.timestampPeriod > 0 {
		caps |= metadata.CAPS_GPU_TIMER
	}
	if device.Features.DepthClamp == vk.True {
		caps |= metadata.CAPS_DEPTH_CLAMP
	}
	if device.Features.ImageCubeArray == vk.True {
		caps |= metadata.CAPS_TEXTURE_CUBE_ARRAY
	}
	caps |= metadata.CAPS_COMPUTE
	return caps
}

func (device *VulkanDevice) Release() {
	if device.LogicalDevice != nil {
		vk.DeviceWaitIdle(device.LogicalDevice)
	}
	device.destroy()
}

// destroy tears down whatever was created, in reverse order.
func (device *VulkanDevice) destroy() {
	if device.ctx != nil {
		device.ctx.destroy()
		device.ctx = nil
	}
	if device.defaultSmp != nil {
		device.defaultSmp.Release()
		device.defaultSmp = nil
	}
	if device.queries != nil {
		device.queries.destroy()
		device.queries = nil
	}
	if device.pipelines != nil {
		device.pipelines.destroy()
		device.pipelines = nil
	}
	if device.passes != nil {
		device.passes.destroy()
		device.passes = nil
	}
	if device.layouts != nil {
		device.layouts.destroy()
		device.layouts = nil
	}
	if device.GraphicsCommandPool != nil {
		core.LogDebug("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, device.Allocator)
		device.GraphicsCommandPool = nil
	}
	device.GraphicsQueue = nil
	device.PresentQueue = nil
	if device.LogicalDevice != nil {
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, device.Allocator)
		device.LogicalDevice = nil
	}
	device.PhysicalDevice = nil
	if device.instance != nil {
		device.instance.Destroy()
		device.instance = nil
	}
}
