package metadata

// MRTClear is a per-target clear colour. U is converted to float when the
// clear state is created.
type MRTClear struct {
	Type ClearType
	F    [4]float32
	U    [4]uint32
}

type ClearState struct {
	R, G, B, A float32
	Depth      float32
	Stencil    uint8
	Flags      ClearFlags
	/** @brief Per target colours. When empty every bound target gets RGBA. */
	MRT []MRTClear
}

type StreamOutEntry struct {
	Stream         uint32
	SemanticName   string
	SemanticIndex  uint32
	StartComponent uint8
	ComponentCount uint8
	OutputSlot     uint8
}

type ShaderLoadParams struct {
	Type ShaderType
	/** @brief Opaque compiled bytecode. A nil pixel shader is valid and binds no pixel stage. */
	ByteCode []byte
	SODecl   []StreamOutEntry
}

type ShaderLinkParams struct {
	VertexShader Handle
	PixelShader  Handle
	// GeometryShader is optional.
	GeometryShader Handle
	InputLayout    Handle
}

type BufferCreationParams struct {
	Usage     Usage
	BindFlags BindFlags
	CPUAccess CPUAccessFlags
	Size      uint32
	// Stride is required for structured (shader write) buffers.
	Stride uint32
	Data   []byte
}

type InputElement struct {
	SemanticName      string
	SemanticIndex     uint32
	Format            VertexFormat
	InputSlot         uint32
	AlignedByteOffset uint32
	Classification    InputClassification
	StepRate          uint32
}

type InputLayoutCreationParams struct {
	Elements []InputElement
	// VSByteCode is the vertex shader the layout is validated against.
	VSByteCode []byte
}

// AutoMips asks for a full mip chain computed from the texture size.
const AutoMips int32 = -1

type TextureCreationParams struct {
	Width, Height uint32
	// RatioDivisor, when non zero, sizes the texture as backbuffer / RatioDivisor
	// and keeps it sized that way across resizes.
	RatioDivisor uint32
	NumMips      int32
	NumArrays    uint32
	SampleCount  uint32
	Format       TextureFormat
	Usage        Usage
	BindFlags    BindFlags
	CPUAccess    CPUAccessFlags
	Collection   CollectionType
	// Data holds all arrays then all mips per array, tightly packed.
	Data []byte
}

type SamplerCreationParams struct {
	Filter         FilterMode
	AddressU       AddressMode
	AddressV       AddressMode
	AddressW       AddressMode
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc Comparison
	BorderColour   [4]float32
	MinLOD, MaxLOD float32
}

type RasterStateCreationParams struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCCW              bool
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       bool
	ScissorEnable         bool
	MultisampleEnable     bool
	AntialiasedLineEnable bool
}

type RenderTargetBlend struct {
	BlendEnable    bool
	SrcBlend       BlendFactor
	DestBlend      BlendFactor
	BlendOp        BlendOp
	SrcBlendAlpha  BlendFactor
	DestBlendAlpha BlendFactor
	BlendOpAlpha   BlendOp
	// WriteMask is clamped to 0xf.
	WriteMask uint8
}

type BlendCreationParams struct {
	AlphaToCoverageEnable  bool
	IndependentBlendEnable bool
	RenderTargets          []RenderTargetBlend
}

type StencilOpState struct {
	StencilFailOp      StencilOp
	StencilDepthFailOp StencilOp
	StencilPassOp      StencilOp
	StencilFunc        Comparison
}

type DepthStencilCreationParams struct {
	DepthEnable      bool
	DepthWriteMask   bool
	DepthFunc        Comparison
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        StencilOpState
	BackFace         StencilOpState
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect struct {
	Left, Top, Right, Bottom float32
}

// ResourceReadBackFn receives the mapped data of a read back. The slice is
// only valid for the duration of the call.
type ResourceReadBackFn func(data []byte, rowPitch, depthPitch, blockSize uint32)

type ResourceReadBackParams struct {
	Resource  Handle
	Format    TextureFormat
	BlockSize uint32
	RowPitch  uint32
	DataSize  uint32
	Callback  ResourceReadBackFn
}

// ResolveResources are the caller owned buffers used by a custom resolve:
// a full screen quad (float4 pos + float2 uv, 24 byte stride), its R16
// index buffer and a 16 byte constant buffer.
type ResolveResources struct {
	VertexBuffer   Handle
	IndexBuffer    Handle
	ConstantBuffer Handle
}

type Uint3 struct {
	X, Y, Z uint32
}
