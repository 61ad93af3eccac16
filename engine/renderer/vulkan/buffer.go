package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type VulkanBuffer struct {
	device      *VulkanDevice
	desc        driver.BufferDesc
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	Size        uint32
	hostVisible bool
}

func (b *VulkanBuffer) Desc() driver.BufferDesc { return b.desc }

func (b *VulkanBuffer) Release() {
	if b.Handle == nil {
		return
	}
	device, handle, memory := b.device, b.Handle, b.Memory
	b.Handle, b.Memory = nil, nil
	device.retire(func() {
		vk.DestroyBuffer(device.LogicalDevice, handle, device.Allocator)
		vk.FreeMemory(device.LogicalDevice, memory, device.Allocator)
	})
}

// newBuffer creates a buffer of size bytes. Host visible buffers are coherent
// and can be written through write.
func newBuffer(device *VulkanDevice, size uint32, usage vk.BufferUsageFlags, hostVisible bool) (*VulkanBuffer, error) {
	// Zero sized buffers are not allowed and copies want four byte multiples.
	size = (math.Max(size, 4) + 3) &^ 3

	buffer := &VulkanBuffer{device: device, Size: size, hostVisible: hostVisible}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(device.LogicalDevice, &createInfo, device.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device.LogicalDevice, handle, &requirements)

	properties := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		properties = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	}
	memory, err := device.allocate(requirements, properties)
	if err != nil {
		vk.DestroyBuffer(device.LogicalDevice, handle, device.Allocator)
		return nil, err
	}
	if res := vk.BindBufferMemory(device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.DestroyBuffer(device.LogicalDevice, handle, device.Allocator)
		vk.FreeMemory(device.LogicalDevice, memory, device.Allocator)
		return nil, resultError("vkBindBufferMemory", res)
	}
	buffer.Handle = handle
	buffer.Memory = memory
	return buffer, nil
}

// write copies data at offset into a host visible buffer.
func (b *VulkanBuffer) write(offset uint32, data []byte) error {
	if !b.hostVisible {
		return fmt.Errorf("write to device local buffer: %w", core.ErrInvalidArgument)
	}
	if uint64(offset)+uint64(len(data)) > uint64(b.Size) {
		return fmt.Errorf("write of %d bytes at %d into %d: %w", len(data), offset, b.Size, core.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(b.device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return resultError("vkMapMemory", res)
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(b.device.LogicalDevice, b.Memory)
	return nil
}

// stagingBuffer is a transient host visible copy of data, released once the
// frame that reads it retires.
func (device *VulkanDevice) stagingBuffer(data []byte) (*VulkanBuffer, error) {
	staging, err := newBuffer(device, uint32(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), true)
	if err != nil {
		return nil, err
	}
	if err := staging.write(0, data); err != nil {
		staging.Release()
		return nil, err
	}
	return staging, nil
}

func (device *VulkanDevice) CreateBuffer(desc driver.BufferDesc, data []byte) (driver.Buffer, error) {
	hostVisible := desc.Usage == metadata.USAGE_STAGING || desc.CPUAccess&metadata.CPU_ACCESS_READ != 0
	buffer, err := newBuffer(device, desc.Size, toBufferUsage(desc.BindFlags), hostVisible)
	if err != nil {
		return nil, err
	}
	buffer.desc = desc

	if len(data) == 0 {
		return buffer, nil
	}
	if hostVisible {
		if err := buffer.write(0, data); err != nil {
			buffer.Release()
			return nil, err
		}
		return buffer, nil
	}

	// Initial data goes through a one shot upload so it is ready before
	// anything in the frame reads it.
	staging, err := device.stagingBuffer(data)
	if err != nil {
		buffer.Release()
		return nil, err
	}
	defer staging.Release()

	cb, err := AllocateAndBeginSingleUse(device, device.GraphicsCommandPool)
	if err != nil {
		buffer.Release()
		return nil, err
	}
	vk.CmdCopyBuffer(cb.Handle, staging.Handle, buffer.Handle, 1, []vk.BufferCopy{{
		Size: vk.DeviceSize(staging.Size),
	}})
	if err := cb.EndSingleUse(device, device.GraphicsCommandPool, device.GraphicsQueue); err != nil {
		buffer.Release()
		return nil, err
	}
	return buffer, nil
}

// VulkanBufferView is a structured range of a buffer. Vulkan binds storage
// buffers directly so no native object backs it.
type VulkanBufferView struct {
	buffer *VulkanBuffer
	kind   driver.ViewKind
	stride uint32
	count  uint32
}

func (v *VulkanBufferView) Release() {
	v.buffer = nil
}

func (v *VulkanBufferView) info() vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: v.buffer.Handle,
		Offset: 0,
		Range:  vk.DeviceSize(v.stride * v.count),
	}
}

func (device *VulkanDevice) CreateBufferView(buf driver.Buffer, kind driver.ViewKind, stride, count uint32) (driver.View, error) {
	buffer, ok := buf.(*VulkanBuffer)
	if !ok || buffer.Handle == nil {
		return nil, fmt.Errorf("buffer view of %T: %w", buf, core.ErrInvalidArgument)
	}
	if kind != driver.ViewShaderResource && kind != driver.ViewStorage {
		return nil, fmt.Errorf("buffer view kind %d: %w", kind, core.ErrInvalidArgument)
	}
	if uint64(stride)*uint64(count) > uint64(buffer.Size) {
		return nil, fmt.Errorf("buffer view of %dx%d over %d bytes: %w", count, stride, buffer.Size, core.ErrInvalidArgument)
	}
	return &VulkanBufferView{buffer: buffer, kind: kind, stride: stride, count: count}, nil
}
