package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type VulkanSampler struct {
	device *VulkanDevice
	Handle vk.Sampler
}

func (s *VulkanSampler) Release() {
	if s.Handle == nil {
		return
	}
	device, handle := s.device, s.Handle
	s.Handle = nil
	device.retire(func() {
		vk.DestroySampler(device.LogicalDevice, handle, device.Allocator)
	})
}

func (device *VulkanDevice) CreateSampler(params metadata.SamplerCreationParams) (driver.Sampler, error) {
	filter, mipmap := toFilter(params.Filter)
	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapMode:   mipmap,
		AddressModeU: toAddressMode(params.AddressU),
		AddressModeV: toAddressMode(params.AddressV),
		AddressModeW: toAddressMode(params.AddressW),
		MipLodBias:   params.MipLODBias,
		CompareOp:    toCompareOp(params.ComparisonFunc),
		MinLod:       params.MinLOD,
		MaxLod:       params.MaxLOD,
		BorderColor:  toBorderColour(params.BorderColour),
	}
	if params.MaxAnisotropy > 1 && device.Features.SamplerAnisotropy == vk.True {
		createInfo.AnisotropyEnable = vk.True
		createInfo.MaxAnisotropy = float32(params.MaxAnisotropy)
	}
	if params.ComparisonFunc != metadata.COMPARISON_DISABLED {
		createInfo.CompareEnable = vk.True
	}

	var handle vk.Sampler
	if res := vk.CreateSampler(device.LogicalDevice, &createInfo, device.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateSampler", res)
	}
	return &VulkanSampler{device: device, Handle: handle}, nil
}

// The fixed function states are plain descriptions baked into pipelines, so
// releasing one only drops the pipelines built from it.

type VulkanRasterState struct {
	device  *VulkanDevice
	info    vk.PipelineRasterizationStateCreateInfo
	scissor bool
}

func (s *VulkanRasterState) Release() {
	s.device.pipelines.evict(func(k pipelineKey) bool { return k.raster == s })
}

func (device *VulkanDevice) CreateRasterState(params metadata.RasterStateCreationParams) (driver.RasterState, error) {
	s := &VulkanRasterState{
		device:  device,
		scissor: params.ScissorEnable,
		info: vk.PipelineRasterizationStateCreateInfo{
			SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
			RasterizerDiscardEnable: vk.False,
			PolygonMode:             toPolygonMode(params.FillMode),
			CullMode:                toCullMode(params.CullMode),
			FrontFace:               vk.FrontFaceClockwise,
			DepthBiasConstantFactor: float32(params.DepthBias),
			DepthBiasClamp:          params.DepthBiasClamp,
			DepthBiasSlopeFactor:    params.SlopeScaledDepthBias,
			LineWidth:               1.0,
		},
	}
	if params.FrontCCW {
		s.info.FrontFace = vk.FrontFaceCounterClockwise
	}
	if params.DepthBias != 0 || params.SlopeScaledDepthBias != 0 {
		s.info.DepthBiasEnable = vk.True
	}
	// Clamping instead of clipping needs the feature.
	if !params.DepthClipEnable && device.Features.DepthClamp == vk.True {
		s.info.DepthClampEnable = vk.True
	}
	if s.info.PolygonMode != vk.PolygonModeFill && device.Features.FillModeNonSolid != vk.True {
		core.LogWarn("Wireframe fill is not supported on this device, filling solid.")
		s.info.PolygonMode = vk.PolygonModeFill
	}
	return s, nil
}

type VulkanBlendState struct {
	device      *VulkanDevice
	alphaToMask bool
	independent bool
	attachments []vk.PipelineColorBlendAttachmentState
}

func (s *VulkanBlendState) Release() {
	s.device.pipelines.evict(func(k pipelineKey) bool { return k.blend == s })
}

// attachment is the blend of colour target i. Without independent blending
// every target takes the first description.
func (s *VulkanBlendState) attachment(i int) vk.PipelineColorBlendAttachmentState {
	if !s.independent || i >= len(s.attachments) {
		i = 0
	}
	return s.attachments[i]
}

func (device *VulkanDevice) CreateBlendState(params metadata.BlendCreationParams) (driver.BlendState, error) {
	if len(params.RenderTargets) == 0 {
		return nil, fmt.Errorf("blend state without render targets: %w", core.ErrInvalidArgument)
	}
	if len(params.RenderTargets) > maxColourAttachments {
		return nil, fmt.Errorf("blend state for %d render targets: %w", len(params.RenderTargets), core.ErrInvalidArgument)
	}
	s := &VulkanBlendState{
		device:      device,
		alphaToMask: params.AlphaToCoverageEnable,
		independent: params.IndependentBlendEnable,
	}
	if s.independent && device.Features.IndependentBlend != vk.True {
		core.LogWarn("Independent blending is not supported on this device, using the first target's blend.")
		s.independent = false
	}
	for _, rt := range params.RenderTargets {
		a := vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.False,
			SrcColorBlendFactor: toBlendFactor(rt.SrcBlend),
			DstColorBlendFactor: toBlendFactor(rt.DestBlend),
			ColorBlendOp:        toBlendOp(rt.BlendOp),
			SrcAlphaBlendFactor: toBlendFactor(rt.SrcBlendAlpha),
			DstAlphaBlendFactor: toBlendFactor(rt.DestBlendAlpha),
			AlphaBlendOp:        toBlendOp(rt.BlendOpAlpha),
			ColorWriteMask:      vk.ColorComponentFlags(rt.WriteMask & 0xf),
		}
		if rt.BlendEnable {
			a.BlendEnable = vk.True
		}
		s.attachments = append(s.attachments, a)
	}
	return s, nil
}

type VulkanDepthStencilState struct {
	device *VulkanDevice
	info   vk.PipelineDepthStencilStateCreateInfo
}

func (s *VulkanDepthStencilState) Release() {
	s.device.pipelines.evict(func(k pipelineKey) bool { return k.depth == s })
}

func toStencilOpState(f metadata.StencilOpState, read, write uint8) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      toStencilOp(f.StencilFailOp),
		PassOp:      toStencilOp(f.StencilPassOp),
		DepthFailOp: toStencilOp(f.StencilDepthFailOp),
		CompareOp:   toCompareOp(f.StencilFunc),
		CompareMask: uint32(read),
		WriteMask:   uint32(write),
	}
}

func (device *VulkanDevice) CreateDepthStencilState(params metadata.DepthStencilCreationParams) (driver.DepthStencilState, error) {
	s := &VulkanDepthStencilState{
		device: device,
		info: vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthCompareOp:        toCompareOp(params.DepthFunc),
			DepthBoundsTestEnable: vk.False,
			Front:                 toStencilOpState(params.FrontFace, params.StencilReadMask, params.StencilWriteMask),
			Back:                  toStencilOpState(params.BackFace, params.StencilReadMask, params.StencilWriteMask),
			MaxDepthBounds:        1,
		},
	}
	if params.DepthEnable {
		s.info.DepthTestEnable = vk.True
		if params.DepthWriteMask {
			s.info.DepthWriteEnable = vk.True
		}
	}
	if params.StencilEnable {
		s.info.StencilTestEnable = vk.True
	}
	return s, nil
}

// Defaults used while no state object is bound.
var (
	defaultRaster = vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1.0,
	}
	defaultBlend = vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	defaultDepthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLess,
		MaxDepthBounds:   1,
	}
)
