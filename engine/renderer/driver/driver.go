// Package driver is the narrow native graphics interface the renderer
// core is written against. An implementation wraps one concrete API.
package driver

import "github.com/spaghettifunk/anima-hal/engine/renderer/metadata"

// Object is anything owning native memory.
type Object interface {
	Release()
}

type Texture interface {
	Object
	Desc() TextureDesc
}

type Buffer interface {
	Object
	Desc() BufferDesc
}

type (
	View              interface{ Object }
	Shader            interface{ Object }
	InputLayout       interface{ Object }
	Sampler           interface{ Object }
	RasterState       interface{ Object }
	BlendState        interface{ Object }
	DepthStencilState interface{ Object }
	Query             interface{ Object }
)

// Factory negotiates a device and a swapchain for the window it was built for.
type Factory interface {
	// CreateDevice returns core.ErrInvalidArgument when a listed level is not
	// known to the platform, so the caller can retry without it.
	CreateDevice(driverType DriverType, levels []FeatureLevel, debug bool) (Device, FeatureLevel, error)
	// SupportsModernSwapchain reports whether the device can use the
	// modern presentation path.
	SupportsModernSwapchain(dev Device) bool
	CreateSwapchain(dev Device, desc SwapchainDesc, modern bool) (Swapchain, error)
}

type Device interface {
	CreateBuffer(desc BufferDesc, data []byte) (Buffer, error)
	// CreateBufferView makes a structured view of count elements of stride bytes.
	CreateBufferView(buf Buffer, kind ViewKind, stride, count uint32) (View, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateView(tex Texture, desc ViewDesc) (View, error)
	CreateShader(stage metadata.ShaderType, byteCode []byte) (Shader, error)
	CreateStreamOutShader(byteCode []byte, decl []metadata.StreamOutEntry) (Shader, error)
	CreateInputLayout(params metadata.InputLayoutCreationParams) (InputLayout, error)
	CreateSampler(params metadata.SamplerCreationParams) (Sampler, error)
	CreateRasterState(params metadata.RasterStateCreationParams) (RasterState, error)
	CreateBlendState(params metadata.BlendCreationParams) (BlendState, error)
	CreateDepthStencilState(params metadata.DepthStencilCreationParams) (DepthStencilState, error)
	CreateQuery(kind QueryKind) (Query, error)

	Context() Context
	Info() metadata.RendererInfo
	Caps() metadata.Caps
	Release()
}

// Context records commands in submission order. It is single threaded.
type Context interface {
	// SetRenderTargets binds colours[i] to output slot i. A nil entry leaves
	// that slot unused.
	SetRenderTargets(colours []View, depth View)
	ClearRenderTarget(view View, rgba [4]float32)
	ClearDepthStencil(view View, flags metadata.ClearFlags, depth float32, stencil uint8)
	ClearStorage(view View, rgba [4]float32)

	SetViewport(vp metadata.Viewport)
	SetScissorRect(r metadata.Rect)
	SetShader(stage metadata.ShaderType, shader Shader)
	SetInputLayout(layout InputLayout)
	SetVertexBuffers(startSlot uint32, buffers []Buffer, strides, offsets []uint32)
	SetIndexBuffer(buffer Buffer, format metadata.IndexFormat, offset uint32)
	SetConstantBuffer(buffer Buffer, unit uint32, stages Stages)
	SetShaderResource(view View, unit uint32, stages Stages)
	SetSampler(sampler Sampler, unit uint32, stages Stages)
	// SetStorage binds a read-write view to the compute stage. nil unbinds.
	SetStorage(view View, unit uint32)
	SetRasterState(state RasterState)
	SetBlendState(state BlendState)
	SetDepthStencilState(state DepthStencilState, stencilRef uint8)
	SetStreamOutTarget(buffer Buffer)

	Draw(vertexCount, startVertex uint32, topology metadata.PrimitiveTopology)
	DrawIndexed(indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology)
	DrawIndexedInstanced(instanceCount, startInstance, indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology)
	DrawAuto()
	Dispatch(x, y, z uint32)

	UpdateBuffer(buffer Buffer, offset uint32, data []byte) error
	UpdateSubresource(tex Texture, mip, layer uint32, data []byte, rowPitch, slicePitch uint32) error
	GenerateMips(view View)
	// ResolveTexture averages the samples of src into dst. A single sampled
	// src is copied.
	ResolveTexture(dst, src Texture, format Format)
	CopyTexture(dst, src Texture)
	// Map blocks until the GPU is done with tex, which must have CPU read access.
	Map(tex Texture) (MappedSubresource, error)
	Unmap(tex Texture)

	Begin(q Query)
	End(q Query)
	// GetData never blocks. ok is false while the result is pending.
	GetData(q Query) (data QueryData, ok bool, err error)
}

type Swapchain interface {
	// Backbuffer is the colour surface the frame renders into. It stays
	// owned by the swapchain and releasing it is a no-op.
	Backbuffer() (Texture, error)
	Format() Format
	SampleCount() uint32
	Size() (width, height uint32)
	Resize(width, height uint32) error
	Present(vsync bool) error
	Release()
}
