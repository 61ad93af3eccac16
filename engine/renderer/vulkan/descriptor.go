package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Every pipeline shares one layout of five sets, one per kind of binding,
// each with maxBindings slots numbered by shader unit. Read only structured
// buffers and read-write ones live in separate sets as they have separate
// units in shaders.
const (
	setUniforms = iota
	setTextures
	setBuffers
	setStorageBuffers
	setImages
	descriptorSetCount
)

var descriptorTypes = [descriptorSetCount]vk.DescriptorType{
	setUniforms:       vk.DescriptorTypeUniformBuffer,
	setTextures:       vk.DescriptorTypeCombinedImageSampler,
	setBuffers:        vk.DescriptorTypeStorageBuffer,
	setStorageBuffers: vk.DescriptorTypeStorageBuffer,
	setImages:         vk.DescriptorTypeStorageImage,
}

type descriptorLayouts struct {
	device   *VulkanDevice
	sets     [descriptorSetCount]vk.DescriptorSetLayout
	pipeline vk.PipelineLayout
}

func newDescriptorLayouts(device *VulkanDevice) (*descriptorLayouts, error) {
	l := &descriptorLayouts{device: device}
	for set, descriptorType := range descriptorTypes {
		bindings := make([]vk.DescriptorSetLayoutBinding, maxBindings)
		for i := range bindings {
			bindings[i] = vk.DescriptorSetLayoutBinding{
				Binding:         uint32(i),
				DescriptorType:  descriptorType,
				DescriptorCount: 1,
				StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
			}
		}
		createInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		if res := vk.CreateDescriptorSetLayout(device.LogicalDevice, &createInfo, device.Allocator, &l.sets[set]); res != vk.Success {
			l.destroy()
			return nil, resultError("vkCreateDescriptorSetLayout", res)
		}
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: descriptorSetCount,
		PSetLayouts:    l.sets[:],
	}
	if res := vk.CreatePipelineLayout(device.LogicalDevice, &layoutInfo, device.Allocator, &l.pipeline); res != vk.Success {
		l.destroy()
		return nil, resultError("vkCreatePipelineLayout", res)
	}
	return l, nil
}

func (l *descriptorLayouts) destroy() {
	if l.pipeline != nil {
		vk.DestroyPipelineLayout(l.device.LogicalDevice, l.pipeline, l.device.Allocator)
		l.pipeline = nil
	}
	for i, set := range l.sets {
		if set != nil {
			vk.DestroyDescriptorSetLayout(l.device.LogicalDevice, set, l.device.Allocator)
			l.sets[i] = nil
		}
	}
}

// newDescriptorPool makes the pool one frame allocates its sets from. It is
// reset whole once the frame retires.
func (l *descriptorLayouts) newDescriptorPool() (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, descriptorSetCount)
	for _, descriptorType := range descriptorTypes {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            descriptorType,
			DescriptorCount: maxSetsPerFrame * maxBindings / descriptorSetCount,
		})
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSetsPerFrame,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(l.device.LogicalDevice, &createInfo, l.device.Allocator, &pool); res != vk.Success {
		return nil, resultError("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

// bindings is the resource state shaders see, by unit.
type bindings struct {
	uniforms [maxBindings]*VulkanBuffer
	textures [maxBindings]*VulkanView
	samplers [maxBindings]*VulkanSampler
	buffers  [maxBindings]*VulkanBufferView
	storage  [maxBindings]*VulkanBufferView
	images   [maxBindings]*VulkanView
}

// allocate takes a fresh group of sets from pool and writes every bound
// resource into it. Unbound slots stay unwritten.
func (l *descriptorLayouts) allocate(pool vk.DescriptorPool, b *bindings, fallback *VulkanSampler) ([descriptorSetCount]vk.DescriptorSet, error) {
	var sets [descriptorSetCount]vk.DescriptorSet
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: descriptorSetCount,
		PSetLayouts:        l.sets[:],
	}
	if res := vk.AllocateDescriptorSets(l.device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		return sets, resultError("vkAllocateDescriptorSets", res)
	}

	var writes []vk.WriteDescriptorSet
	write := func(set int, unit uint32) vk.WriteDescriptorSet {
		return vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[set],
			DstBinding:      unit,
			DescriptorCount: 1,
			DescriptorType:  descriptorTypes[set],
		}
	}
	for unit := uint32(0); unit < maxBindings; unit++ {
		if buf := b.uniforms[unit]; buf != nil && buf.Handle != nil {
			w := write(setUniforms, unit)
			w.PBufferInfo = []vk.DescriptorBufferInfo{{Buffer: buf.Handle, Range: vk.DeviceSize(vk.WholeSize)}}
			writes = append(writes, w)
		}
		if view := b.textures[unit]; view != nil && view.Handle != nil {
			smp := b.samplers[unit]
			if smp == nil || smp.Handle == nil {
				smp = fallback
			}
			w := write(setTextures, unit)
			w.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     smp.Handle,
				ImageView:   view.Handle,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
			writes = append(writes, w)
		}
		if view := b.buffers[unit]; view != nil && view.buffer != nil {
			w := write(setBuffers, unit)
			w.PBufferInfo = []vk.DescriptorBufferInfo{view.info()}
			writes = append(writes, w)
		}
		if view := b.storage[unit]; view != nil && view.buffer != nil {
			w := write(setStorageBuffers, unit)
			w.PBufferInfo = []vk.DescriptorBufferInfo{view.info()}
			writes = append(writes, w)
		}
		if view := b.images[unit]; view != nil && view.Handle != nil {
			w := write(setImages, unit)
			w.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   view.Handle,
				ImageLayout: vk.ImageLayoutGeneral,
			}}
			writes = append(writes, w)
		}
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(l.device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	}
	return sets, nil
}
