package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// Vulkan has no typeless formats, so every typeless storage format and its
// depth or shader resource aliases collapse onto the depth format itself.
// Views pick the aspect.
var nativeFormats = map[driver.Format]vk.Format{
	driver.FormatRGBA8Unorm:  vk.FormatR8g8b8a8Unorm,
	driver.FormatBGRA8Unorm:  vk.FormatB8g8r8a8Unorm,
	driver.FormatRGBA32Float: vk.FormatR32g32b32a32Sfloat,
	driver.FormatRGBA16Float: vk.FormatR16g16b16a16Sfloat,
	driver.FormatRG32Float:   vk.FormatR32g32Sfloat,
	driver.FormatR32Float:    vk.FormatR32Sfloat,
	driver.FormatR16Float:    vk.FormatR16Sfloat,
	driver.FormatR32Uint:     vk.FormatR32Uint,
	driver.FormatR16Uint:     vk.FormatR16Uint,
	driver.FormatR8Unorm:     vk.FormatR8Unorm,
	driver.FormatBC1Unorm:    vk.FormatBc1RgbaUnormBlock,
	driver.FormatBC2Unorm:    vk.FormatBc2UnormBlock,
	driver.FormatBC3Unorm:    vk.FormatBc3UnormBlock,
	driver.FormatBC4Unorm:    vk.FormatBc4UnormBlock,
	driver.FormatBC5Unorm:    vk.FormatBc5UnormBlock,

	driver.FormatR16Typeless: vk.FormatD16Unorm,
	driver.FormatD16Unorm:    vk.FormatD16Unorm,

	driver.FormatR32Typeless: vk.FormatD32Sfloat,
	driver.FormatD32Float:    vk.FormatD32Sfloat,

	driver.FormatR24G8Typeless:      vk.FormatD24UnormS8Uint,
	driver.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
	driver.FormatR24UnormX8Typeless: vk.FormatD24UnormS8Uint,

	driver.FormatR32G8X24Typeless:      vk.FormatD32SfloatS8Uint,
	driver.FormatD32FloatS8X24Uint:     vk.FormatD32SfloatS8Uint,
	driver.FormatR32FloatX8X24Typeless: vk.FormatD32SfloatS8Uint,
}

func toVulkanFormat(f driver.Format) vk.Format {
	vf, ok := nativeFormats[f]
	core.Assert(ok, "vulkan: no native format for %s", f)
	return vf
}

// formatBlock is the byte size of one texel, or one 4x4 block for compressed
// formats, and the texel width of that block.
func formatBlock(f driver.Format) (size uint32, pixels uint32) {
	switch f {
	case driver.FormatRGBA32Float:
		return 16, 1
	case driver.FormatRGBA16Float, driver.FormatRG32Float,
		driver.FormatR32G8X24Typeless, driver.FormatD32FloatS8X24Uint, driver.FormatR32FloatX8X24Typeless:
		return 8, 1
	case driver.FormatR16Float, driver.FormatR16Uint, driver.FormatR16Typeless, driver.FormatD16Unorm:
		return 2, 1
	case driver.FormatR8Unorm:
		return 1, 1
	case driver.FormatBC1Unorm, driver.FormatBC4Unorm:
		return 8, 4
	case driver.FormatBC2Unorm, driver.FormatBC3Unorm, driver.FormatBC5Unorm:
		return 16, 4
	}
	return 4, 1
}

// aspectOf is the aspect a view of format f reads or writes. Depth stencil
// views take the stencil aspect too, shader views only ever see depth.
func aspectOf(f driver.Format, kind driver.ViewKind) vk.ImageAspectFlags {
	if !f.HasDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if kind == driver.ViewDepthStencil && f.HasStencil() {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

// fullAspect covers every aspect an image of format f has.
func fullAspect(f driver.Format) vk.ImageAspectFlags {
	if !f.HasDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if f.HasStencil() {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

func toSampleCount(n uint32) vk.SampleCountFlagBits {
	switch n {
	case 0, 1:
		return vk.SampleCount1Bit
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	}
	core.Assert(false, "vulkan: unsupported sample count %d", n)
	return vk.SampleCount1Bit
}

func toImageViewType(d driver.ViewDimension) vk.ImageViewType {
	switch d {
	case driver.ViewDimension2D, driver.ViewDimension2DMS:
		return vk.ImageViewType2d
	case driver.ViewDimension2DArray, driver.ViewDimension2DMSArray:
		return vk.ImageViewType2dArray
	case driver.ViewDimensionCube:
		return vk.ImageViewTypeCube
	case driver.ViewDimensionCubeArray:
		return vk.ImageViewTypeCubeArray
	case driver.ViewDimension3D:
		return vk.ImageViewType3d
	}
	core.Assert(false, "vulkan: unknown view dimension %d", d)
	return vk.ImageViewType2d
}

func toImageUsage(bind metadata.BindFlags) vk.ImageUsageFlags {
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) | vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	if bind&metadata.BIND_SHADER_RESOURCE != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if bind&metadata.BIND_RENDER_TARGET != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if bind&metadata.BIND_DEPTH_STENCIL != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if bind&metadata.BIND_SHADER_WRITE != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	return usage
}

func toBufferUsage(bind metadata.BindFlags) vk.BufferUsageFlags {
	usage := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	if bind&metadata.BIND_VERTEX_BUFFER != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if bind&metadata.BIND_INDEX_BUFFER != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if bind&metadata.BIND_CONSTANT_BUFFER != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if bind&(metadata.BIND_SHADER_RESOURCE|metadata.BIND_SHADER_WRITE) != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return usage
}

var topologies = [...]vk.PrimitiveTopology{
	metadata.PT_POINTLIST:     vk.PrimitiveTopologyPointList,
	metadata.PT_LINELIST:      vk.PrimitiveTopologyLineList,
	metadata.PT_LINESTRIP:     vk.PrimitiveTopologyLineStrip,
	metadata.PT_TRIANGLELIST:  vk.PrimitiveTopologyTriangleList,
	metadata.PT_TRIANGLESTRIP: vk.PrimitiveTopologyTriangleStrip,
}

func toTopology(t metadata.PrimitiveTopology) vk.PrimitiveTopology {
	core.Assert(int(t) < len(topologies), "vulkan: unknown topology %d", t)
	return topologies[t]
}

var vertexFormats = [...]vk.Format{
	metadata.VERTEX_FORMAT_FLOAT1: vk.FormatR32Sfloat,
	metadata.VERTEX_FORMAT_FLOAT2: vk.FormatR32g32Sfloat,
	metadata.VERTEX_FORMAT_FLOAT3: vk.FormatR32g32b32Sfloat,
	metadata.VERTEX_FORMAT_FLOAT4: vk.FormatR32g32b32a32Sfloat,
	metadata.VERTEX_FORMAT_UNORM4: vk.FormatR8g8b8a8Unorm,
	metadata.VERTEX_FORMAT_UNORM2: vk.FormatR8g8Unorm,
	metadata.VERTEX_FORMAT_UNORM1: vk.FormatR8Unorm,
}

func toVertexFormat(f metadata.VertexFormat) vk.Format {
	core.Assert(int(f) < len(vertexFormats), "vulkan: unknown vertex format %d", f)
	return vertexFormats[f]
}

func toIndexType(f metadata.IndexFormat) vk.IndexType {
	if f == metadata.FORMAT_R32_UINT {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

// comparisons maps COMPARISON_DISABLED to always so a disabled test passes.
var comparisons = [...]vk.CompareOp{
	metadata.COMPARISON_DISABLED:      vk.CompareOpAlways,
	metadata.COMPARISON_NEVER:         vk.CompareOpNever,
	metadata.COMPARISON_LESS:          vk.CompareOpLess,
	metadata.COMPARISON_EQUAL:         vk.CompareOpEqual,
	metadata.COMPARISON_LESS_EQUAL:    vk.CompareOpLessOrEqual,
	metadata.COMPARISON_GREATER:       vk.CompareOpGreater,
	metadata.COMPARISON_NOT_EQUAL:     vk.CompareOpNotEqual,
	metadata.COMPARISON_GREATER_EQUAL: vk.CompareOpGreaterOrEqual,
	metadata.COMPARISON_ALWAYS:        vk.CompareOpAlways,
}

func toCompareOp(c metadata.Comparison) vk.CompareOp {
	core.Assert(int(c) < len(comparisons), "vulkan: unknown comparison %d", c)
	return comparisons[c]
}

var stencilOps = [...]vk.StencilOp{
	metadata.STENCIL_OP_KEEP:     vk.StencilOpKeep,
	metadata.STENCIL_OP_REPLACE:  vk.StencilOpReplace,
	metadata.STENCIL_OP_ZERO:     vk.StencilOpZero,
	metadata.STENCIL_OP_INCR_SAT: vk.StencilOpIncrementAndClamp,
	metadata.STENCIL_OP_DECR_SAT: vk.StencilOpDecrementAndClamp,
	metadata.STENCIL_OP_INVERT:   vk.StencilOpInvert,
	metadata.STENCIL_OP_INCR:     vk.StencilOpIncrementAndWrap,
	metadata.STENCIL_OP_DECR:     vk.StencilOpDecrementAndWrap,
}

func toStencilOp(op metadata.StencilOp) vk.StencilOp {
	core.Assert(int(op) < len(stencilOps), "vulkan: unknown stencil op %d", op)
	return stencilOps[op]
}

var blendFactors = [...]vk.BlendFactor{
	metadata.BLEND_ZERO:             vk.BlendFactorZero,
	metadata.BLEND_ONE:              vk.BlendFactorOne,
	metadata.BLEND_SRC_COLOR:        vk.BlendFactorSrcColor,
	metadata.BLEND_INV_SRC_COLOR:    vk.BlendFactorOneMinusSrcColor,
	metadata.BLEND_SRC_ALPHA:        vk.BlendFactorSrcAlpha,
	metadata.BLEND_INV_SRC_ALPHA:    vk.BlendFactorOneMinusSrcAlpha,
	metadata.BLEND_DEST_ALPHA:       vk.BlendFactorDstAlpha,
	metadata.BLEND_INV_DEST_ALPHA:   vk.BlendFactorOneMinusDstAlpha,
	metadata.BLEND_DEST_COLOR:       vk.BlendFactorDstColor,
	metadata.BLEND_INV_DEST_COLOR:   vk.BlendFactorOneMinusDstColor,
	metadata.BLEND_SRC_ALPHA_SAT:    vk.BlendFactorSrcAlphaSaturate,
	metadata.BLEND_BLEND_FACTOR:     vk.BlendFactorConstantColor,
	metadata.BLEND_INV_BLEND_FACTOR: vk.BlendFactorOneMinusConstantColor,
	metadata.BLEND_SRC1_COLOR:       vk.BlendFactorSrc1Color,
	metadata.BLEND_INV_SRC1_COLOR:   vk.BlendFactorOneMinusSrc1Color,
	metadata.BLEND_SRC1_ALPHA:       vk.BlendFactorSrc1Alpha,
	metadata.BLEND_INV_SRC1_ALPHA:   vk.BlendFactorOneMinusSrc1Alpha,
}

func toBlendFactor(f metadata.BlendFactor) vk.BlendFactor {
	core.Assert(int(f) < len(blendFactors), "vulkan: unknown blend factor %d", f)
	return blendFactors[f]
}

var blendOps = [...]vk.BlendOp{
	metadata.BLEND_OP_ADD:          vk.BlendOpAdd,
	metadata.BLEND_OP_SUBTRACT:     vk.BlendOpSubtract,
	metadata.BLEND_OP_REV_SUBTRACT: vk.BlendOpReverseSubtract,
	metadata.BLEND_OP_MIN:          vk.BlendOpMin,
	metadata.BLEND_OP_MAX:          vk.BlendOpMax,
}

func toBlendOp(op metadata.BlendOp) vk.BlendOp {
	core.Assert(int(op) < len(blendOps), "vulkan: unknown blend op %d", op)
	return blendOps[op]
}

var addressModes = [...]vk.SamplerAddressMode{
	metadata.TEXTURE_ADDRESS_WRAP:        vk.SamplerAddressModeRepeat,
	metadata.TEXTURE_ADDRESS_MIRROR:      vk.SamplerAddressModeMirroredRepeat,
	metadata.TEXTURE_ADDRESS_CLAMP:       vk.SamplerAddressModeClampToEdge,
	metadata.TEXTURE_ADDRESS_BORDER:      vk.SamplerAddressModeClampToBorder,
	metadata.TEXTURE_ADDRESS_MIRROR_ONCE: vk.SamplerAddressModeMirrorClampToEdge,
}

func toAddressMode(m metadata.AddressMode) vk.SamplerAddressMode {
	core.Assert(int(m) < len(addressModes), "vulkan: unknown address mode %d", m)
	return addressModes[m]
}

// toFilter splits a filter mode into the min/mag filter and the mip mode.
func toFilter(f metadata.FilterMode) (vk.Filter, vk.SamplerMipmapMode) {
	switch f {
	case metadata.FILTER_MIN_MAG_MIP_LINEAR, metadata.FILTER_LINEAR:
		return vk.FilterLinear, vk.SamplerMipmapModeLinear
	case metadata.FILTER_MIN_MAG_MIP_POINT, metadata.FILTER_POINT:
		return vk.FilterNearest, vk.SamplerMipmapModeNearest
	}
	core.Assert(false, "vulkan: unknown filter %d", f)
	return vk.FilterLinear, vk.SamplerMipmapModeLinear
}

// toBorderColour picks the closest of the fixed border colours.
func toBorderColour(c [4]float32) vk.BorderColor {
	switch {
	case c[3] == 0:
		return vk.BorderColorFloatTransparentBlack
	case c[0] >= 0.5 && c[1] >= 0.5 && c[2] >= 0.5:
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorFloatOpaqueBlack
}

func toCullMode(m metadata.CullMode) vk.CullModeFlags {
	switch m {
	case metadata.CULL_FRONT:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.CULL_BACK:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func toPolygonMode(m metadata.FillMode) vk.PolygonMode {
	if m == metadata.FILL_WIREFRAME {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func toShaderStage(t metadata.ShaderType) vk.ShaderStageFlagBits {
	switch t {
	case metadata.SHADER_TYPE_VS:
		return vk.ShaderStageVertexBit
	case metadata.SHADER_TYPE_PS:
		return vk.ShaderStageFragmentBit
	case metadata.SHADER_TYPE_GS:
		return vk.ShaderStageGeometryBit
	case metadata.SHADER_TYPE_CS:
		return vk.ShaderStageComputeBit
	}
	core.Assert(false, "vulkan: no shader stage for %s", t)
	return vk.ShaderStageVertexBit
}

// driverTypeMatches reports whether a physical device of type t serves the
// requested driver type. Hardware takes any real GPU, warp a CPU rasteriser
// and reference whatever else the loader enumerates.
func driverTypeMatches(want driver.DriverType, t vk.PhysicalDeviceType) bool {
	switch want {
	case driver.DriverHardware:
		return t == vk.PhysicalDeviceTypeDiscreteGpu || t == vk.PhysicalDeviceTypeIntegratedGpu || t == vk.PhysicalDeviceTypeVirtualGpu
	case driver.DriverWarp:
		return t == vk.PhysicalDeviceTypeCpu
	case driver.DriverReference:
		return t == vk.PhysicalDeviceTypeOther
	}
	return false
}

// deviceTypeScore ranks matching devices, discrete first.
func deviceTypeScore(t vk.PhysicalDeviceType) int {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 3
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 2
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 1
	}
	return 0
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "Virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	}
	return "Unknown"
}

func toApiVersion(level driver.FeatureLevel) uint32 {
	return uint32(vk.MakeVersion(int(level.Major()), int(level.Minor()), 0))
}

var vendorNames = map[uint32]string{
	0x1002:  "AMD",
	0x1010:  "ImgTec",
	0x10DE:  "NVIDIA",
	0x13B5:  "ARM",
	0x5143:  "Qualcomm",
	0x8086:  "Intel",
	0x106B:  "Apple",
	0x10005: "Mesa",
}
