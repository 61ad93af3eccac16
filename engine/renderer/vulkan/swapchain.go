package vulkan

import (
	"fmt"
	stdmath "math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// VulkanSwapchain implements driver.Swapchain. Frames render into an
// offscreen backbuffer in the requested format and sample count which
// Present resolves and blits into the acquired surface image.
type VulkanSwapchain struct {
	device *VulkanDevice
	desc   driver.SwapchainDesc
	modern bool

	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	ImageCount  uint32
	Images      []vk.Image
	Extent      vk.Extent2D
	presentMode vk.PresentMode

	backbuffer *VulkanImage
	// resolve holds the single sampled copy of a multisampled backbuffer.
	resolve *VulkanImage

	outOfDate bool
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func newSwapchain(device *VulkanDevice, desc driver.SwapchainDesc, modern bool) (*VulkanSwapchain, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("swapchain of %dx%d: %w", desc.Width, desc.Height, core.ErrInvalidArgument)
	}
	if _, ok := nativeFormats[desc.Format]; !ok {
		return nil, fmt.Errorf("swapchain format %s: %w", desc.Format, core.ErrUnsupported)
	}
	desc.SampleCount = math.Max(desc.SampleCount, 1)
	sc := &VulkanSwapchain{device: device, desc: desc, modern: modern}
	if err := sc.create(); err != nil {
		sc.Release()
		return nil, err
	}
	return sc, nil
}

// choosePresentMode follows vsync on the modern path. The legacy path is
// always FIFO.
func (sc *VulkanSwapchain) choosePresentMode(vsync bool) vk.PresentMode {
	if !sc.modern || vsync {
		return vk.PresentModeFifo
	}
	support := sc.device.SwapchainSupport
	fallback := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
		if mode == vk.PresentModeImmediate {
			fallback = mode
		}
	}
	return fallback
}

func (sc *VulkanSwapchain) chooseSurfaceFormat() vk.SurfaceFormat {
	support := sc.device.SwapchainSupport
	if sc.modern {
		for _, format := range support.Formats {
			// Preferred formats
			if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return format
			}
		}
	}
	return support.Formats[0]
}

func (sc *VulkanSwapchain) create() error {
	device := sc.device
	surface := device.instance.Surface
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, surface, &device.SwapchainSupport); err != nil {
		return err
	}
	support := device.SwapchainSupport
	if support.FormatCount == 0 {
		return fmt.Errorf("surface reports no formats: %w", core.ErrUnsupported)
	}

	sc.ImageFormat = sc.chooseSurfaceFormat()
	sc.presentMode = sc.choosePresentMode(sc.desc.VSync)

	extent := vk.Extent2D{Width: sc.desc.Width, Height: sc.desc.Height}
	if support.Capabilities.CurrentExtent.Width != stdmath.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	extent.Width = math.Clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = math.Clamp(extent.Height, minExtent.Height, maxExtent.Height)
	if extent.Width == 0 || extent.Height == 0 {
		// Minimised, keep the old chain until the surface has a size again.
		sc.outOfDate = true
		return nil
	}

	imageCount := math.Max(sc.desc.BufferCount, support.Capabilities.MinImageCount+1)
	if support.Capabilities.MaxImageCount > 0 {
		imageCount = math.Min(imageCount, support.Capabilities.MaxImageCount)
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.presentMode,
		Clipped:          vk.True,
		OldSwapchain:     sc.Handle,
	}

	// Setup the queue family indices
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &createInfo, device.Allocator, &handle); res != vk.Success {
		return resultError("vkCreateSwapchainKHR", res)
	}
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device.LogicalDevice, sc.Handle, device.Allocator)
	}
	sc.Handle = handle

	// Images
	sc.ImageCount = 0
	if res := vk.GetSwapchainImages(device.LogicalDevice, sc.Handle, &sc.ImageCount, nil); res != vk.Success {
		return resultError("vkGetSwapchainImagesKHR", res)
	}
	sc.Images = make([]vk.Image, sc.ImageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, sc.Handle, &sc.ImageCount, sc.Images); res != vk.Success {
		return resultError("vkGetSwapchainImagesKHR", res)
	}

	if sc.backbuffer == nil || sc.Extent != extent {
		if err := sc.createBackbuffer(extent); err != nil {
			return err
		}
	}
	sc.Extent = extent
	sc.outOfDate = false

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", extent.Width, extent.Height, sc.ImageCount, sc.presentMode)
	return nil
}

func (sc *VulkanSwapchain) createBackbuffer(extent vk.Extent2D) error {
	sc.releaseBackbuffer()
	desc := driver.TextureDesc{
		Dimension:        driver.Texture2D,
		Width:            extent.Width,
		Height:           extent.Height,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleCount:      sc.desc.SampleCount,
		Format:           sc.desc.Format,
		Usage:            metadata.USAGE_DEFAULT,
		BindFlags:        metadata.BIND_RENDER_TARGET | metadata.BIND_SHADER_RESOURCE,
	}
	tex, err := sc.device.CreateTexture(desc)
	if err != nil {
		return err
	}
	sc.backbuffer = tex.(*VulkanImage)
	sc.backbuffer.owned = true

	if desc.SampleCount > 1 {
		desc.SampleCount = 1
		tex, err := sc.device.CreateTexture(desc)
		if err != nil {
			return err
		}
		sc.resolve = tex.(*VulkanImage)
		sc.resolve.owned = true
	}
	return nil
}

func (sc *VulkanSwapchain) releaseBackbuffer() {
	if sc.backbuffer != nil {
		sc.backbuffer.destroy()
		sc.backbuffer = nil
	}
	if sc.resolve != nil {
		sc.resolve.destroy()
		sc.resolve = nil
	}
}

// recreate rebuilds the chain once nothing in flight can still use it.
func (sc *VulkanSwapchain) recreate() error {
	ctx := sc.device.ctx
	if ctx.recording {
		if err := ctx.submit(vk.NullSemaphore, vk.NullSemaphore); err != nil {
			return err
		}
	}
	vk.DeviceWaitIdle(sc.device.LogicalDevice)
	if err := ctx.waitIdle(); err != nil {
		return err
	}
	return sc.create()
}

func (sc *VulkanSwapchain) Backbuffer() (driver.Texture, error) {
	if sc.backbuffer == nil {
		return nil, core.ErrSwapchainBooting
	}
	return sc.backbuffer, nil
}

func (sc *VulkanSwapchain) Format() driver.Format { return sc.desc.Format }

func (sc *VulkanSwapchain) SampleCount() uint32 { return sc.desc.SampleCount }

func (sc *VulkanSwapchain) Size() (uint32, uint32) {
	if sc.backbuffer == nil {
		return sc.desc.Width, sc.desc.Height
	}
	return sc.Extent.Width, sc.Extent.Height
}

func (sc *VulkanSwapchain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	sc.desc.Width, sc.desc.Height = width, height
	return sc.recreate()
}

func (sc *VulkanSwapchain) Present(vsync bool) error {
	ctx := sc.device.ctx
	if mode := sc.choosePresentMode(vsync); mode != sc.presentMode {
		sc.desc.VSync = vsync
		sc.outOfDate = true
	}
	if sc.outOfDate {
		if err := sc.recreate(); err != nil {
			return err
		}
		if sc.outOfDate {
			// Still no surface to present to.
			return nil
		}
	}

	frame := ctx.frame()
	cb, ok := ctx.commandBuffer()
	if !ok {
		return fmt.Errorf("present: %w", core.ErrDeviceLost)
	}

	var index uint32
	res := vk.AcquireNextImage(sc.device.LogicalDevice, sc.Handle, stdmath.MaxUint64, frame.imageAvailable, vk.NullFence, &index)
	switch res {
	case vk.Success:
	case vk.Suboptimal:
		sc.outOfDate = true
	case vk.ErrorOutOfDate:
		// Trigger swapchain recreation, the frame is still submitted.
		sc.outOfDate = true
		return ctx.submit(vk.NullSemaphore, vk.NullSemaphore)
	default:
		return resultError("vkAcquireNextImageKHR", res)
	}

	ctx.endRenderPass()
	src := sc.backbuffer
	if sc.resolve != nil {
		ctx.ResolveTexture(sc.resolve, sc.backbuffer, sc.desc.Format)
		src = sc.resolve
	}
	src.transition(cb, vk.ImageLayoutTransferSrcOptimal)

	colour := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
	// The previous contents are overwritten entirely.
	imageBarrier(cb, sc.Images[index], colour, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	layers := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
	blit := vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(src.desc.Width), Y: int32(src.desc.Height), Z: 1}},
		DstSubresource: layers,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(sc.Extent.Width), Y: int32(sc.Extent.Height), Z: 1}},
	}
	vk.CmdBlitImage(cb, src.Handle, vk.ImageLayoutTransferSrcOptimal, sc.Images[index], vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{blit}, vk.FilterLinear)
	imageBarrier(cb, sc.Images[index], colour, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc)

	if err := ctx.submit(frame.imageAvailable, frame.renderComplete); err != nil {
		return err
	}

	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{frame.renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{index},
	}
	err := lockPool.SafeQueueCall(uint32(sc.device.PresentQueueIndex), func() error {
		switch res := vk.QueuePresent(sc.device.PresentQueue, &presentInfo); res {
		case vk.Success:
		case vk.ErrorOutOfDate, vk.Suboptimal:
			// Swapchain is out of date, suboptimal or a framebuffer resize has occurred.
			sc.outOfDate = true
		default:
			return resultError("vkQueuePresentKHR", res)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.poll()
}

func (sc *VulkanSwapchain) Release() {
	device := sc.device
	if device.LogicalDevice != nil {
		vk.DeviceWaitIdle(device.LogicalDevice)
	}
	if device.ctx != nil {
		if err := device.ctx.waitIdle(); err != nil {
			core.LogError("swapchain release: %s", err)
		}
	}
	sc.releaseBackbuffer()
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device.LogicalDevice, sc.Handle, device.Allocator)
		sc.Handle = vk.NullSwapchain
	}
	sc.Images = nil
}
