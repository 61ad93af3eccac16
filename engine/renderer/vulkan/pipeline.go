package vulkan

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

/**
 * @brief Everything a pipeline is baked from. Compute pipelines only set cs.
 */
type pipelineKey struct {
	vs, ps, gs, cs *VulkanShader
	layout         *VulkanInputLayout
	/** @brief Strides of the slots the input layout reads. */
	strides  [maxVertexBuffers]uint32
	topology metadata.PrimitiveTopology
	raster   *VulkanRasterState
	blend    *VulkanBlendState
	depth    *VulkanDepthStencilState
	pass     vk.RenderPass
	colours  int
	samples  vk.SampleCountFlagBits
}

type pipelineCache struct {
	device    *VulkanDevice
	pipelines map[pipelineKey]vk.Pipeline
}

func newPipelineCache(device *VulkanDevice) *pipelineCache {
	return &pipelineCache{
		device:    device,
		pipelines: make(map[pipelineKey]vk.Pipeline),
	}
}

func (c *pipelineCache) destroy() {
	for key, p := range c.pipelines {
		vk.DestroyPipeline(c.device.LogicalDevice, p, c.device.Allocator)
		delete(c.pipelines, key)
	}
}

// evict destroys, once the frames using them retire, the pipelines built
// from an object being released.
func (c *pipelineCache) evict(match func(pipelineKey) bool) {
	if c == nil {
		return
	}
	for key, p := range c.pipelines {
		if !match(key) {
			continue
		}
		delete(c.pipelines, key)
		device, pipeline := c.device, p
		device.retire(func() {
			vk.DestroyPipeline(device.LogicalDevice, pipeline, device.Allocator)
		})
	}
}

func (c *pipelineCache) graphics(key pipelineKey) (vk.Pipeline, error) {
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	if key.vs == nil {
		return nil, fmt.Errorf("draw without a vertex shader: %w", core.ErrInvalidArgument)
	}

	stages := []vk.PipelineShaderStageCreateInfo{key.vs.stageInfo()}
	if key.gs != nil {
		stages = append(stages, key.gs.stageInfo())
	}
	if key.ps != nil {
		stages = append(stages, key.ps.stageInfo())
	}

	// Vertex input
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if key.layout != nil {
		slots := make([]uint32, 0, len(key.layout.rates))
		for slot := range key.layout.rates {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
		var bindings []vk.VertexInputBindingDescription
		for _, slot := range slots {
			bindings = append(bindings, vk.VertexInputBindingDescription{
				Binding:   slot,
				Stride:    key.strides[slot],
				InputRate: key.layout.rates[slot],
			})
		}
		vertexInput.VertexBindingDescriptionCount = uint32(len(bindings))
		vertexInput.PVertexBindingDescriptions = bindings
		vertexInput.VertexAttributeDescriptionCount = uint32(len(key.layout.attributes))
		vertexInput.PVertexAttributeDescriptions = key.layout.attributes
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               toTopology(key.topology),
		PrimitiveRestartEnable: vk.False,
	}

	// Viewport and scissor are dynamic.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := defaultRaster
	if key.raster != nil {
		rasterizer = key.raster.info
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: key.samples,
		MinSampleShading:     1.0,
	}
	if key.blend != nil && key.blend.alphaToMask {
		multisampling.AlphaToCoverageEnable = vk.True
	}

	depthStencil := defaultDepthStencil
	if key.depth != nil {
		depthStencil = key.depth.info
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, key.colours)
	for i := range blendAttachments {
		blendAttachments[i] = defaultBlend
		if key.blend != nil {
			blendAttachments[i] = key.blend.attachment(i)
		}
	}
	colourBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateStencilReference,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colourBlending,
		PDynamicState:       &dynamicState,
		Layout:              c.device.layouts.pipeline,
		RenderPass:          key.pass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(c.device.LogicalDevice, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, c.device.Allocator, pipelines))
	}); err != nil {
		return nil, err
	}
	core.LogDebug("Graphics pipeline created (%d cached).", len(c.pipelines)+1)
	c.pipelines[key] = pipelines[0]
	return pipelines[0], nil
}

func (c *pipelineCache) compute(cs *VulkanShader) (vk.Pipeline, error) {
	key := pipelineKey{cs: cs}
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	if cs == nil {
		return nil, fmt.Errorf("dispatch without a compute shader: %w", core.ErrInvalidArgument)
	}
	pipelineInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  cs.stageInfo(),
		Layout: c.device.layouts.pipeline,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return resultError("vkCreateComputePipelines", vk.CreateComputePipelines(c.device.LogicalDevice, vk.PipelineCache(vk.NullHandle), 1, []vk.ComputePipelineCreateInfo{pipelineInfo}, c.device.Allocator, pipelines))
	}); err != nil {
		return nil, err
	}
	c.pipelines[key] = pipelines[0]
	return pipelines[0], nil
}
