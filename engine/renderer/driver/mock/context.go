package mock

import (
	"fmt"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type ColourClear struct {
	View *View
	RGBA [4]float32
}

type DepthClear struct {
	View    *View
	Flags   metadata.ClearFlags
	Depth   float32
	Stencil uint8
}

type DrawCall struct {
	Kind     string
	Count    uint32
	Topology metadata.PrimitiveTopology
}

// Context records what the core asked of it.
type Context struct {
	dev *Device

	Colours []*View
	Depth   *View

	ColourClears  []ColourClear
	DepthClears   []DepthClear
	StorageClears []ColourClear

	Viewport       metadata.Viewport
	Scissor        metadata.Rect
	Shaders        [metadata.SHADER_TYPE_CS + 1]*Shader
	InputLayout    driver.InputLayout
	VertexBuffers  []driver.Buffer
	VertexStrides  []uint32
	IndexBuffer    driver.Buffer
	IndexFormat    metadata.IndexFormat
	Resources      map[uint32]*View
	Samplers       map[uint32]driver.Sampler
	Storage        map[uint32]*View
	ConstantBuffer map[uint32]driver.Buffer
	Raster         driver.RasterState
	Blend          driver.BlendState
	DepthStencil   driver.DepthStencilState
	StencilRef     uint8
	StreamOut      driver.Buffer

	Draws    []DrawCall
	Resolves []Resolve
	Copies   int

	MipGenerations map[*View]int

	clock uint64
}

type Resolve struct {
	Dst, Src *Texture
	Format   driver.Format
}

func (c *Context) SetRenderTargets(colours []driver.View, depth driver.View) {
	c.Colours = c.Colours[:0]
	for _, v := range colours {
		mv, _ := v.(*View)
		c.Colours = append(c.Colours, mv)
	}
	c.Depth, _ = depth.(*View)
}

func (c *Context) ClearRenderTarget(view driver.View, rgba [4]float32) {
	c.ColourClears = append(c.ColourClears, ColourClear{View: view.(*View), RGBA: rgba})
}

func (c *Context) ClearDepthStencil(view driver.View, flags metadata.ClearFlags, depth float32, stencil uint8) {
	c.DepthClears = append(c.DepthClears, DepthClear{View: view.(*View), Flags: flags, Depth: depth, Stencil: stencil})
}

func (c *Context) ClearStorage(view driver.View, rgba [4]float32) {
	c.StorageClears = append(c.StorageClears, ColourClear{View: view.(*View), RGBA: rgba})
}

// ResetRecording forgets clears, draws and resolves.
func (c *Context) ResetRecording() {
	c.ColourClears = nil
	c.DepthClears = nil
	c.StorageClears = nil
	c.Draws = nil
	c.Resolves = nil
}

func (c *Context) SetViewport(vp metadata.Viewport) { c.Viewport = vp }

func (c *Context) SetScissorRect(r metadata.Rect) { c.Scissor = r }

func (c *Context) SetShader(stage metadata.ShaderType, shader driver.Shader) {
	s, _ := shader.(*Shader)
	c.Shaders[stage] = s
}

func (c *Context) SetInputLayout(layout driver.InputLayout) { c.InputLayout = layout }

func (c *Context) SetVertexBuffers(startSlot uint32, buffers []driver.Buffer, strides, offsets []uint32) {
	c.VertexBuffers = append([]driver.Buffer(nil), buffers...)
	c.VertexStrides = append([]uint32(nil), strides...)
}

func (c *Context) SetIndexBuffer(buffer driver.Buffer, format metadata.IndexFormat, offset uint32) {
	c.IndexBuffer = buffer
	c.IndexFormat = format
}

func (c *Context) SetConstantBuffer(buffer driver.Buffer, unit uint32, stages driver.Stages) {
	if c.ConstantBuffer == nil {
		c.ConstantBuffer = make(map[uint32]driver.Buffer)
	}
	c.ConstantBuffer[unit] = buffer
}

func (c *Context) SetShaderResource(view driver.View, unit uint32, stages driver.Stages) {
	if c.Resources == nil {
		c.Resources = make(map[uint32]*View)
	}
	v, _ := view.(*View)
	c.Resources[unit] = v
}

func (c *Context) SetSampler(sampler driver.Sampler, unit uint32, stages driver.Stages) {
	if c.Samplers == nil {
		c.Samplers = make(map[uint32]driver.Sampler)
	}
	c.Samplers[unit] = sampler
}

func (c *Context) SetStorage(view driver.View, unit uint32) {
	if c.Storage == nil {
		c.Storage = make(map[uint32]*View)
	}
	v, _ := view.(*View)
	c.Storage[unit] = v
}

func (c *Context) SetRasterState(state driver.RasterState) { c.Raster = state }

func (c *Context) SetBlendState(state driver.BlendState) { c.Blend = state }

func (c *Context) SetDepthStencilState(state driver.DepthStencilState, stencilRef uint8) {
	c.DepthStencil = state
	c.StencilRef = stencilRef
}

func (c *Context) SetStreamOutTarget(buffer driver.Buffer) { c.StreamOut = buffer }

func (c *Context) Draw(vertexCount, startVertex uint32, topology metadata.PrimitiveTopology) {
	c.Draws = append(c.Draws, DrawCall{Kind: "draw", Count: vertexCount, Topology: topology})
}

func (c *Context) DrawIndexed(indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology) {
	c.Draws = append(c.Draws, DrawCall{Kind: "draw_indexed", Count: indexCount, Topology: topology})
}

func (c *Context) DrawIndexedInstanced(instanceCount, startInstance, indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology) {
	c.Draws = append(c.Draws, DrawCall{Kind: "draw_indexed_instanced", Count: indexCount * instanceCount, Topology: topology})
}

func (c *Context) DrawAuto() {
	c.Draws = append(c.Draws, DrawCall{Kind: "draw_auto", Topology: metadata.PT_POINTLIST})
}

func (c *Context) Dispatch(x, y, z uint32) {
	c.Draws = append(c.Draws, DrawCall{Kind: "dispatch", Count: x * y * z})
}

func (c *Context) UpdateBuffer(buffer driver.Buffer, offset uint32, data []byte) error {
	b := buffer.(*Buffer)
	if int(offset)+len(data) > len(b.Data) {
		return fmt.Errorf("mock: update of %d bytes at %d overflows %d: %w", len(data), offset, len(b.Data), core.ErrInvalidArgument)
	}
	copy(b.Data[offset:], data)
	return nil
}

func (c *Context) UpdateSubresource(tex driver.Texture, mip, layer uint32, data []byte, rowPitch, slicePitch uint32) error {
	tex.(*Texture).Uploads++
	return nil
}

func (c *Context) GenerateMips(view driver.View) {
	c.MipGenerations[view.(*View)]++
}

// TotalMipGenerations sums every GenerateMips call.
func (c *Context) TotalMipGenerations() int {
	n := 0
	for _, v := range c.MipGenerations {
		n += v
	}
	return n
}

func (c *Context) ResolveTexture(dst, src driver.Texture, format driver.Format) {
	c.Resolves = append(c.Resolves, Resolve{Dst: dst.(*Texture), Src: src.(*Texture), Format: format})
}

func (c *Context) CopyTexture(dst, src driver.Texture) { c.Copies++ }

func (c *Context) Map(tex driver.Texture) (driver.MappedSubresource, error) {
	t := tex.(*Texture)
	if t.desc.CPUAccess&metadata.CPU_ACCESS_READ == 0 {
		return driver.MappedSubresource{}, fmt.Errorf("mock: map of a texture without cpu read: %w", core.ErrInvalidArgument)
	}
	t.Mapped = true
	row := t.desc.Width * 4
	return driver.MappedSubresource{
		Data:       make([]byte, row*t.desc.Height),
		RowPitch:   row,
		DepthPitch: row * t.desc.Height,
	}, nil
}

func (c *Context) Unmap(tex driver.Texture) { tex.(*Texture).Mapped = false }

func (c *Context) Begin(q driver.Query) {
	mq := q.(*Query)
	mq.begun, mq.ended = true, false
}

// End stamps the query with a monotonically increasing clock.
func (c *Context) End(q driver.Query) {
	mq := q.(*Query)
	c.clock += 10
	mq.Value = c.clock
	mq.ended = true
	mq.endFrame = c.dev.Frame
}

func (c *Context) GetData(q driver.Query) (driver.QueryData, bool, error) {
	mq := q.(*Query)
	if !mq.ended || c.dev.Frame-mq.endFrame < c.dev.Latency {
		return driver.QueryData{}, false, nil
	}
	if mq.Kind == driver.QueryTimestampDisjoint {
		return driver.QueryData{Frequency: 1_000_000_000, Disjoint: c.dev.Disjoint}, true, nil
	}
	return driver.QueryData{Timestamp: mq.Value}, true, nil
}
