package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// VulkanImage implements driver.Texture. Textures the CPU reads back have no
// image at all and live in a host visible buffer holding mip 0 of every layer.
type VulkanImage struct {
	device *VulkanDevice
	desc   driver.TextureDesc

	Handle vk.Image
	Memory vk.DeviceMemory
	Format vk.Format

	layers uint32
	depth  uint32
	mips   uint32
	aspect vk.ImageAspectFlags
	// layout is the layout every subresource is in once recorded commands run.
	layout vk.ImageLayout

	staging *VulkanBuffer
	mapped  bool
	// owned images belong to a swapchain.
	owned bool
}

func (img *VulkanImage) Desc() driver.TextureDesc { return img.desc }

func (img *VulkanImage) Release() {
	if img.owned {
		return
	}
	img.destroy()
}

func (img *VulkanImage) destroy() {
	if img.staging != nil {
		img.staging.Release()
		img.staging = nil
	}
	if img.Handle == nil {
		return
	}
	device, handle, memory := img.device, img.Handle, img.Memory
	img.Handle, img.Memory = nil, nil
	device.retire(func() {
		vk.DestroyImage(device.LogicalDevice, handle, device.Allocator)
		vk.FreeMemory(device.LogicalDevice, memory, device.Allocator)
	})
}

// extent is the size of mip level in texels.
func (img *VulkanImage) extent(mip uint32) vk.Extent3D {
	return vk.Extent3D{
		Width:  math.MipExtent(img.desc.Width, mip),
		Height: math.MipExtent(img.desc.Height, mip),
		Depth:  math.MipExtent(img.depth, mip),
	}
}

func (img *VulkanImage) fullRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: img.aspect,
		LevelCount: img.mips,
		LayerCount: img.layers,
	}
}

// transition records a barrier moving the whole image to layout.
func (img *VulkanImage) transition(cb vk.CommandBuffer, layout vk.ImageLayout) {
	if img.layout == layout {
		return
	}
	imageBarrier(cb, img.Handle, img.fullRange(), img.layout, layout)
	img.layout = layout
}

// imageBarrier is a full pipeline barrier. Ordering is coarse but every
// hazard between passes, copies and dispatches is covered by it.
func imageBarrier(cb vk.CommandBuffer, image vk.Image, subresources vk.ImageSubresourceRange, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    subresources,
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// readbackSize is the byte size of mip 0 of every layer, tightly packed.
func readbackSize(desc driver.TextureDesc) (size, rowPitch, slicePitch uint32) {
	block, pixels := formatBlock(desc.Format)
	rowPitch = math.DivCeil(desc.Width, pixels) * block
	slicePitch = rowPitch * math.DivCeil(desc.Height, pixels)
	return slicePitch * math.Max(desc.DepthOrArraySize, 1), rowPitch, slicePitch
}

func (device *VulkanDevice) CreateTexture(desc driver.TextureDesc) (driver.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture of %dx%d: %w", desc.Width, desc.Height, core.ErrInvalidArgument)
	}
	img := &VulkanImage{
		device: device,
		desc:   desc,
		layers: math.Max(desc.DepthOrArraySize, 1),
		depth:  1,
		mips:   math.Max(desc.MipLevels, 1),
		aspect: fullAspect(desc.Format),
		layout: vk.ImageLayoutUndefined,
	}

	if desc.Usage == metadata.USAGE_STAGING || desc.CPUAccess&metadata.CPU_ACCESS_READ != 0 {
		size, _, _ := readbackSize(desc)
		staging, err := newBuffer(device, size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)|vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), true)
		if err != nil {
			return nil, err
		}
		img.staging = staging
		return img, nil
	}

	imageType := vk.ImageType2d
	if desc.Dimension == driver.Texture3D {
		imageType = vk.ImageType3d
		img.depth = img.layers
		img.layers = 1
	}
	var flags vk.ImageCreateFlags
	if desc.Cube {
		if img.layers%6 != 0 {
			return nil, fmt.Errorf("cube texture with %d layers: %w", img.layers, core.ErrInvalidArgument)
		}
		flags |= vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	img.Format = toVulkanFormat(desc.Format)

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: imageType,
		Format:    img.Format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  img.depth,
		},
		MipLevels:     img.mips,
		ArrayLayers:   img.layers,
		Samples:       toSampleCount(desc.SampleCount),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toImageUsage(desc.BindFlags),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if res := vk.CreateImage(device.LogicalDevice, &createInfo, device.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateImage", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device.LogicalDevice, handle, &requirements)
	memory, err := device.allocate(requirements, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(device.LogicalDevice, handle, device.Allocator)
		return nil, err
	}
	if res := vk.BindImageMemory(device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.DestroyImage(device.LogicalDevice, handle, device.Allocator)
		vk.FreeMemory(device.LogicalDevice, memory, device.Allocator)
		return nil, resultError("vkBindImageMemory", res)
	}
	img.Handle = handle
	img.Memory = memory
	return img, nil
}

// VulkanView is an image view together with the subresources it covers.
type VulkanView struct {
	image  *VulkanImage
	desc   driver.ViewDesc
	Handle vk.ImageView
	Range  vk.ImageSubresourceRange
	Width  uint32
	Height uint32
}

func (v *VulkanView) Release() {
	if v.Handle == nil {
		return
	}
	device, handle := v.image.device, v.Handle
	v.Handle = nil
	device.passes.evictView(v)
	device.retire(func() {
		vk.DestroyImageView(device.LogicalDevice, handle, device.Allocator)
	})
}

// viewRange works out the subresources a view desc selects from img.
func viewRange(img *VulkanImage, desc driver.ViewDesc) (vk.ImageSubresourceRange, error) {
	r := vk.ImageSubresourceRange{
		AspectMask:   aspectOf(desc.Format, desc.Kind),
		BaseMipLevel: desc.MostDetailedMip,
		LevelCount:   desc.MipLevels,
	}
	if r.BaseMipLevel >= img.mips {
		return r, fmt.Errorf("view of mip %d in %d: %w", r.BaseMipLevel, img.mips, core.ErrInvalidArgument)
	}
	if r.LevelCount == 0 || r.BaseMipLevel+r.LevelCount > img.mips {
		r.LevelCount = img.mips - r.BaseMipLevel
	}
	// Targets write a single level.
	if desc.Kind == driver.ViewRenderTarget || desc.Kind == driver.ViewDepthStencil || desc.Kind == driver.ViewStorage {
		r.LevelCount = 1
	}

	switch {
	case desc.Dimension == driver.ViewDimension3D:
		r.LayerCount = 1
	case desc.Dimension == driver.ViewDimension2D || desc.Dimension == driver.ViewDimension2DMS:
		r.BaseArrayLayer = desc.FirstSlice
		r.LayerCount = 1
	case desc.Dimension == driver.ViewDimensionCube:
		r.BaseArrayLayer = desc.FirstSlice
		r.LayerCount = 6
	default:
		r.BaseArrayLayer = desc.FirstSlice
		r.LayerCount = desc.ArraySize
		if desc.Dimension == driver.ViewDimensionCubeArray {
			r.LayerCount *= 6
		}
		if r.LayerCount == 0 {
			r.LayerCount = img.layers - math.Min(r.BaseArrayLayer, img.layers)
		}
	}
	if r.BaseArrayLayer+r.LayerCount > img.layers {
		return r, fmt.Errorf("view of layers %d+%d in %d: %w", r.BaseArrayLayer, r.LayerCount, img.layers, core.ErrInvalidArgument)
	}
	return r, nil
}

func (device *VulkanDevice) CreateView(tex driver.Texture, desc driver.ViewDesc) (driver.View, error) {
	img, ok := tex.(*VulkanImage)
	if !ok || img.Handle == nil {
		return nil, fmt.Errorf("view of %T without an image: %w", tex, core.ErrInvalidArgument)
	}
	subresources, err := viewRange(img, desc)
	if err != nil {
		return nil, err
	}

	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: toImageViewType(desc.Dimension),
		Format:   img.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresources,
	}
	var handle vk.ImageView
	if res := vk.CreateImageView(device.LogicalDevice, &createInfo, device.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateImageView", res)
	}
	mip := img.extent(subresources.BaseMipLevel)
	return &VulkanView{
		image:  img,
		desc:   desc,
		Handle: handle,
		Range:  subresources,
		Width:  mip.Width,
		Height: mip.Height,
	}, nil
}
