package metadata

type ShaderType uint32

const (
	SHADER_TYPE_VS ShaderType = iota
	SHADER_TYPE_PS
	SHADER_TYPE_GS
	SHADER_TYPE_SO
	SHADER_TYPE_CS
)

func (t ShaderType) String() string {
	switch t {
	case SHADER_TYPE_VS:
		return "vs"
	case SHADER_TYPE_PS:
		return "ps"
	case SHADER_TYPE_GS:
		return "gs"
	case SHADER_TYPE_SO:
		return "so"
	case SHADER_TYPE_CS:
		return "cs"
	}
	return "unknown"
}

type FillMode uint32

const (
	FILL_SOLID FillMode = iota
	FILL_WIREFRAME
)

type CullMode uint32

const (
	CULL_NONE CullMode = iota
	CULL_FRONT
	CULL_BACK
)

type TextureFormat uint32

const (
	// integer
	TEX_FORMAT_BGRA8_UNORM TextureFormat = iota
	TEX_FORMAT_RGBA8_UNORM

	// depth formats
	TEX_FORMAT_D24_UNORM_S8_UINT
	TEX_FORMAT_D32_FLOAT
	TEX_FORMAT_D32_FLOAT_S8_UINT

	// floating point
	TEX_FORMAT_R32G32B32A32_FLOAT
	TEX_FORMAT_R32_FLOAT
	TEX_FORMAT_R16G16B16A16_FLOAT
	TEX_FORMAT_R16_FLOAT
	TEX_FORMAT_R32_UINT
	TEX_FORMAT_R8_UNORM
	TEX_FORMAT_R32G32_FLOAT

	// bc compressed
	TEX_FORMAT_BC1_UNORM
	TEX_FORMAT_BC2_UNORM
	TEX_FORMAT_BC3_UNORM
	TEX_FORMAT_BC4_UNORM
	TEX_FORMAT_BC5_UNORM
)

// IsDepth reports whether the format carries depth (and maybe stencil).
func (f TextureFormat) IsDepth() bool {
	return f == TEX_FORMAT_D24_UNORM_S8_UINT || f == TEX_FORMAT_D32_FLOAT || f == TEX_FORMAT_D32_FLOAT_S8_UINT
}

// IsCompressed reports whether the format is a 4x4 block format.
func (f TextureFormat) IsCompressed() bool {
	return f >= TEX_FORMAT_BC1_UNORM && f <= TEX_FORMAT_BC5_UNORM
}

// BlockSize is the byte size of one pixel, or one 4x4 block for BC formats.
func (f TextureFormat) BlockSize() uint32 {
	switch f {
	case TEX_FORMAT_BGRA8_UNORM, TEX_FORMAT_RGBA8_UNORM, TEX_FORMAT_D24_UNORM_S8_UINT, TEX_FORMAT_D32_FLOAT,
		TEX_FORMAT_R32_FLOAT, TEX_FORMAT_R32_UINT:
		return 4
	case TEX_FORMAT_D32_FLOAT_S8_UINT, TEX_FORMAT_R16G16B16A16_FLOAT, TEX_FORMAT_R32G32_FLOAT:
		return 8
	case TEX_FORMAT_R32G32B32A32_FLOAT:
		return 16
	case TEX_FORMAT_R16_FLOAT:
		return 2
	case TEX_FORMAT_R8_UNORM:
		return 1
	case TEX_FORMAT_BC1_UNORM, TEX_FORMAT_BC4_UNORM:
		return 8
	case TEX_FORMAT_BC2_UNORM, TEX_FORMAT_BC3_UNORM, TEX_FORMAT_BC5_UNORM:
		return 16
	}
	return 0
}

// PixelsPerBlock is 4 for BC formats and 1 otherwise.
func (f TextureFormat) PixelsPerBlock() uint32 {
	if f.IsCompressed() {
		return 4
	}
	return 1
}

type ClearFlags uint32

const (
	CLEAR_COLOUR_BUFFER ClearFlags = 1 << iota
	CLEAR_DEPTH_BUFFER
	CLEAR_STENCIL_BUFFER
)

type ClearType uint32

const (
	CLEAR_F32 ClearType = iota
	CLEAR_U32
)

type InputClassification uint32

const (
	INPUT_PER_VERTEX InputClassification = iota
	INPUT_PER_INSTANCE
)

type PrimitiveTopology uint32

const (
	PT_POINTLIST PrimitiveTopology = iota
	PT_LINELIST
	PT_LINESTRIP
	PT_TRIANGLELIST
	PT_TRIANGLESTRIP
)

type VertexFormat uint32

const (
	VERTEX_FORMAT_FLOAT1 VertexFormat = iota
	VERTEX_FORMAT_FLOAT2
	VERTEX_FORMAT_FLOAT3
	VERTEX_FORMAT_FLOAT4
	VERTEX_FORMAT_UNORM4
	VERTEX_FORMAT_UNORM2
	VERTEX_FORMAT_UNORM1
)

// Size is the byte width of one attribute of this format.
func (f VertexFormat) Size() uint32 {
	switch f {
	case VERTEX_FORMAT_FLOAT1, VERTEX_FORMAT_UNORM4:
		return 4
	case VERTEX_FORMAT_FLOAT2:
		return 8
	case VERTEX_FORMAT_FLOAT3:
		return 12
	case VERTEX_FORMAT_FLOAT4:
		return 16
	case VERTEX_FORMAT_UNORM2:
		return 2
	case VERTEX_FORMAT_UNORM1:
		return 1
	}
	return 0
}

type IndexFormat uint32

const (
	FORMAT_R16_UINT IndexFormat = iota
	FORMAT_R32_UINT
)

type Usage uint32

const (
	USAGE_DEFAULT   Usage = iota // gpu read and write, updatable with UpdateBuffer
	USAGE_IMMUTABLE              // gpu read only
	USAGE_DYNAMIC
	USAGE_STAGING // cpu access
)

type BindFlags uint32

const (
	BIND_SHADER_RESOURCE          BindFlags = 1 << 0
	BIND_VERTEX_BUFFER            BindFlags = 1 << 1
	BIND_INDEX_BUFFER             BindFlags = 1 << 2
	BIND_CONSTANT_BUFFER          BindFlags = 1 << 3
	BIND_RENDER_TARGET            BindFlags = 1 << 5
	BIND_DEPTH_STENCIL            BindFlags = 1 << 6
	BIND_SHADER_WRITE             BindFlags = 1 << 7
	BIND_STREAM_OUT_VERTEX_BUFFER BindFlags = 1 << 8
)

type CPUAccessFlags uint32

const (
	CPU_ACCESS_WRITE CPUAccessFlags = 1 << 0
	CPU_ACCESS_READ  CPUAccessFlags = 1 << 1
)

type AddressMode uint32

const (
	TEXTURE_ADDRESS_WRAP AddressMode = iota
	TEXTURE_ADDRESS_MIRROR
	TEXTURE_ADDRESS_CLAMP
	TEXTURE_ADDRESS_BORDER
	TEXTURE_ADDRESS_MIRROR_ONCE
)

type FilterMode uint32

const (
	FILTER_MIN_MAG_MIP_LINEAR FilterMode = iota
	FILTER_MIN_MAG_MIP_POINT
	FILTER_LINEAR
	FILTER_POINT
)

type Comparison uint32

const (
	COMPARISON_DISABLED Comparison = iota
	COMPARISON_NEVER
	COMPARISON_LESS
	COMPARISON_EQUAL
	COMPARISON_LESS_EQUAL
	COMPARISON_GREATER
	COMPARISON_NOT_EQUAL
	COMPARISON_GREATER_EQUAL
	COMPARISON_ALWAYS
)

type StencilOp uint32

const (
	STENCIL_OP_KEEP StencilOp = iota
	STENCIL_OP_REPLACE
	STENCIL_OP_ZERO
	STENCIL_OP_INCR_SAT
	STENCIL_OP_DECR_SAT
	STENCIL_OP_INVERT
	STENCIL_OP_INCR
	STENCIL_OP_DECR
)

type BlendFactor uint32

const (
	BLEND_ZERO BlendFactor = iota
	BLEND_ONE
	BLEND_SRC_COLOR
	BLEND_INV_SRC_COLOR
	BLEND_SRC_ALPHA
	BLEND_INV_SRC_ALPHA
	BLEND_DEST_ALPHA
	BLEND_INV_DEST_ALPHA
	BLEND_DEST_COLOR
	BLEND_INV_DEST_COLOR
	BLEND_SRC_ALPHA_SAT
	BLEND_BLEND_FACTOR
	BLEND_INV_BLEND_FACTOR
	BLEND_SRC1_COLOR
	BLEND_INV_SRC1_COLOR
	BLEND_SRC1_ALPHA
	BLEND_INV_SRC1_ALPHA
)

type BlendOp uint32

const (
	BLEND_OP_ADD BlendOp = iota
	BLEND_OP_SUBTRACT
	BLEND_OP_REV_SUBTRACT
	BLEND_OP_MIN
	BLEND_OP_MAX
)

type CollectionType uint32

const (
	TEXTURE_COLLECTION_NONE CollectionType = iota
	TEXTURE_COLLECTION_CUBE
	TEXTURE_COLLECTION_VOLUME
	TEXTURE_COLLECTION_ARRAY
	TEXTURE_COLLECTION_CUBE_ARRAY
)

type TextureBindFlags uint32

const (
	TEXTURE_BIND_PS TextureBindFlags = 1 << iota
	TEXTURE_BIND_VS
	TEXTURE_BIND_CS
	TEXTURE_BIND_MSAA
)

type CBufferBindFlags uint32

const (
	CBUFFER_BIND_PS CBufferBindFlags = 1 << iota
	CBUFFER_BIND_VS
	CBUFFER_BIND_CS
)

type SBufferBindFlags uint32

const (
	SBUFFER_BIND_PS SBufferBindFlags = 1 << iota
	SBUFFER_BIND_VS
	SBUFFER_BIND_CS
	SBUFFER_BIND_READ
	SBUFFER_BIND_WRITE
)

type ResolveType uint32

const (
	RESOLVE_AVERAGE ResolveType = iota
	RESOLVE_CUSTOM
	RESOLVE_GENERATE_MIPS
)

// ResourceKind names what a slot holds when replacing it.
type ResourceKind uint32

const (
	RESOURCE_TEXTURE ResourceKind = iota
	RESOURCE_BUFFER
	RESOURCE_VERTEX_SHADER
	RESOURCE_PIXEL_SHADER
	RESOURCE_COMPUTE_SHADER
	RESOURCE_RENDER_TARGET
)

type Caps uint64

const (
	CAPS_TEX_FORMAT_BC1 Caps = 1 << iota
	CAPS_TEX_FORMAT_BC2
	CAPS_TEX_FORMAT_BC3
	CAPS_TEX_FORMAT_BC4
	CAPS_TEX_FORMAT_BC5
	CAPS_TEX_FORMAT_BC6
	CAPS_TEX_FORMAT_BC7
	CAPS_GPU_TIMER
	CAPS_DEPTH_CLAMP
	CAPS_COMPUTE
	CAPS_TEXTURE_CUBE_ARRAY
	CAPS_STREAM_OUT
)

func (c Caps) Has(flag Caps) bool {
	return c&flag == flag
}
