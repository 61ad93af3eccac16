package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

/**
 * @brief A single SPIR-V shader module bound to one stage.
 */
type VulkanShader struct {
	device *VulkanDevice
	/** @brief The stage the module runs in. */
	Stage metadata.ShaderType
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
}

func (s *VulkanShader) Release() {
	if s.Handle == nil {
		return
	}
	device, handle := s.device, s.Handle
	s.Handle = nil
	device.pipelines.evict(func(k pipelineKey) bool {
		return k.vs == s || k.ps == s || k.gs == s || k.cs == s
	})
	device.retire(func() {
		vk.DestroyShaderModule(device.LogicalDevice, handle, device.Allocator)
	})
}

// stageInfo describes the module to pipeline creation. Entry points are
// always main.
func (s *VulkanShader) stageInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  toShaderStage(s.Stage),
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
}

func (device *VulkanDevice) CreateShader(stage metadata.ShaderType, byteCode []byte) (driver.Shader, error) {
	if stage == metadata.SHADER_TYPE_SO {
		return nil, fmt.Errorf("stream out shaders: %w", core.ErrUnsupported)
	}
	if stage == metadata.SHADER_TYPE_GS && device.Features.GeometryShader != vk.True {
		return nil, fmt.Errorf("geometry shaders on %s: %w", cString(device.Properties.DeviceName[:]), core.ErrUnsupported)
	}
	words, err := spirvWords(byteCode)
	if err != nil {
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(byteCode)),
		PCode:    words,
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(device.LogicalDevice, &createInfo, device.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateShaderModule", res)
	}
	return &VulkanShader{device: device, Stage: stage, Handle: handle}, nil
}

// CreateStreamOutShader fails: transform feedback is an optional extension
// and nothing here records into it.
func (device *VulkanDevice) CreateStreamOutShader(byteCode []byte, decl []metadata.StreamOutEntry) (driver.Shader, error) {
	return nil, fmt.Errorf("stream out with %d entries: %w", len(decl), core.ErrUnsupported)
}

// VulkanInputLayout is the vertex input state of a pipeline. Attribute
// locations follow element order.
type VulkanInputLayout struct {
	device     *VulkanDevice
	attributes []vk.VertexInputAttributeDescription
	// rates holds the input rate of every slot the layout reads.
	rates map[uint32]vk.VertexInputRate
}

func (l *VulkanInputLayout) Release() {
	if l.rates == nil {
		return
	}
	l.device.pipelines.evict(func(k pipelineKey) bool { return k.layout == l })
	l.rates = nil
}

func (device *VulkanDevice) CreateInputLayout(params metadata.InputLayoutCreationParams) (driver.InputLayout, error) {
	if len(params.VSByteCode) == 0 {
		return nil, fmt.Errorf("input layout without a vertex shader: %w", core.ErrInvalidArgument)
	}
	layout := &VulkanInputLayout{
		device: device,
		rates:  make(map[uint32]vk.VertexInputRate),
	}
	for i, e := range params.Elements {
		if e.InputSlot >= maxVertexBuffers {
			return nil, fmt.Errorf("input element %s in slot %d: %w", e.SemanticName, e.InputSlot, core.ErrInvalidArgument)
		}
		rate := vk.VertexInputRateVertex
		if e.Classification == metadata.INPUT_PER_INSTANCE {
			rate = vk.VertexInputRateInstance
			if e.StepRate > 1 {
				core.LogWarn("input element %s steps every %d instances, stepping every instance", e.SemanticName, e.StepRate)
			}
		}
		if prev, ok := layout.rates[e.InputSlot]; ok && prev != rate {
			return nil, fmt.Errorf("slot %d mixes per vertex and per instance data: %w", e.InputSlot, core.ErrInvalidArgument)
		}
		layout.rates[e.InputSlot] = rate
		layout.attributes = append(layout.attributes, vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  e.InputSlot,
			Format:   toVertexFormat(e.Format),
			Offset:   e.AlignedByteOffset,
		})
	}
	return layout, nil
}
