// Package mock is an in-memory driver that counts every native object it
// creates and releases, and records the commands issued on its context.
package mock

import (
	"fmt"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

const (
	KindBuffer       = "buffer"
	KindTexture      = "texture"
	KindView         = "view"
	KindShader       = "shader"
	KindInputLayout  = "input_layout"
	KindSampler      = "sampler"
	KindRasterState  = "raster_state"
	KindBlendState   = "blend_state"
	KindDepthStencil = "depth_stencil_state"
	KindQuery        = "query"
)

type Counters struct {
	Created  map[string]int
	Released map[string]int
}

// Live is the number of objects of kind created and not yet released.
func (c *Counters) Live(kind string) int {
	return c.Created[kind] - c.Released[kind]
}

// TotalLive sums Live over every kind.
func (c *Counters) TotalLive() int {
	n := 0
	for k := range c.Created {
		n += c.Live(k)
	}
	return n
}

type object struct {
	kind     string
	counters *Counters
	released bool
}

func (o *object) Release() {
	if o.released {
		panic(fmt.Sprintf("mock: %s released twice", o.kind))
	}
	o.released = true
	o.counters.Released[o.kind]++
}

func (o *object) Released() bool { return o.released }

type Texture struct {
	object
	desc    driver.TextureDesc
	Mapped  bool
	Uploads int
	// Owned textures belong to the swapchain and are never released by callers.
	owned bool
}

func (t *Texture) Desc() driver.TextureDesc { return t.desc }

func (t *Texture) Release() {
	if t.owned {
		return
	}
	t.object.Release()
}

type Buffer struct {
	object
	desc driver.BufferDesc
	Data []byte
}

func (b *Buffer) Desc() driver.BufferDesc { return b.desc }

type View struct {
	object
	Texture *Texture
	Buffer  *Buffer
	Desc    driver.ViewDesc
}

type Shader struct {
	object
	Stage     metadata.ShaderType
	ByteCode  []byte
	StreamOut bool
}

type State struct {
	object
	Params interface{}
}

type Query struct {
	object
	Kind     driver.QueryKind
	Value    uint64
	begun    bool
	ended    bool
	endFrame uint64
}

type Device struct {
	*Counters
	ctx *Context
	// Views lists every view ever created, in creation order.
	Views []*View
	// Textures lists every texture ever created, in creation order.
	Textures []*Texture
	// Frame counts presents. Queries become readable once Frame - endFrame >= Latency.
	Frame   uint64
	Latency uint64
	// Disjoint is reported by every disjoint query read.
	Disjoint bool
	// FailCreate makes the next create call of that kind fail.
	FailCreate map[string]error
	caps       metadata.Caps
	released   bool
}

func NewDevice() *Device {
	d := &Device{
		Counters: &Counters{
			Created:  make(map[string]int),
			Released: make(map[string]int),
		},
		Latency:    1,
		FailCreate: make(map[string]error),
		caps: metadata.CAPS_TEX_FORMAT_BC1 | metadata.CAPS_TEX_FORMAT_BC2 | metadata.CAPS_TEX_FORMAT_BC3 |
			metadata.CAPS_GPU_TIMER | metadata.CAPS_COMPUTE | metadata.CAPS_TEXTURE_CUBE_ARRAY,
	}
	d.ctx = &Context{dev: d, MipGenerations: make(map[*View]int)}
	return d
}

func (d *Device) newObject(kind string) (object, error) {
	if err, ok := d.FailCreate[kind]; ok {
		delete(d.FailCreate, kind)
		return object{}, err
	}
	d.Created[kind]++
	return object{kind: kind, counters: d.Counters}, nil
}

func (d *Device) CreateBuffer(desc driver.BufferDesc, data []byte) (driver.Buffer, error) {
	o, err := d.newObject(KindBuffer)
	if err != nil {
		return nil, err
	}
	b := &Buffer{object: o, desc: desc, Data: make([]byte, desc.Size)}
	copy(b.Data, data)
	return b, nil
}

func (d *Device) CreateBufferView(buf driver.Buffer, kind driver.ViewKind, stride, count uint32) (driver.View, error) {
	o, err := d.newObject(KindView)
	if err != nil {
		return nil, err
	}
	v := &View{object: o, Buffer: buf.(*Buffer), Desc: driver.ViewDesc{Kind: kind, ArraySize: count}}
	d.Views = append(d.Views, v)
	return v, nil
}

func (d *Device) CreateTexture(desc driver.TextureDesc) (driver.Texture, error) {
	o, err := d.newObject(KindTexture)
	if err != nil {
		return nil, err
	}
	t := &Texture{object: o, desc: desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateView(tex driver.Texture, desc driver.ViewDesc) (driver.View, error) {
	core.Assert(tex != nil, "mock: view of a nil texture")
	o, err := d.newObject(KindView)
	if err != nil {
		return nil, err
	}
	v := &View{object: o, Texture: tex.(*Texture), Desc: desc}
	d.Views = append(d.Views, v)
	return v, nil
}

func (d *Device) CreateShader(stage metadata.ShaderType, byteCode []byte) (driver.Shader, error) {
	o, err := d.newObject(KindShader)
	if err != nil {
		return nil, err
	}
	return &Shader{object: o, Stage: stage, ByteCode: byteCode}, nil
}

func (d *Device) CreateStreamOutShader(byteCode []byte, decl []metadata.StreamOutEntry) (driver.Shader, error) {
	o, err := d.newObject(KindShader)
	if err != nil {
		return nil, err
	}
	return &Shader{object: o, Stage: metadata.SHADER_TYPE_GS, ByteCode: byteCode, StreamOut: true}, nil
}

func (d *Device) newState(kind string, params interface{}) (*State, error) {
	o, err := d.newObject(kind)
	if err != nil {
		return nil, err
	}
	return &State{object: o, Params: params}, nil
}

func (d *Device) CreateInputLayout(params metadata.InputLayoutCreationParams) (driver.InputLayout, error) {
	return d.newState(KindInputLayout, params)
}

func (d *Device) CreateSampler(params metadata.SamplerCreationParams) (driver.Sampler, error) {
	return d.newState(KindSampler, params)
}

func (d *Device) CreateRasterState(params metadata.RasterStateCreationParams) (driver.RasterState, error) {
	return d.newState(KindRasterState, params)
}

func (d *Device) CreateBlendState(params metadata.BlendCreationParams) (driver.BlendState, error) {
	return d.newState(KindBlendState, params)
}

func (d *Device) CreateDepthStencilState(params metadata.DepthStencilCreationParams) (driver.DepthStencilState, error) {
	return d.newState(KindDepthStencil, params)
}

func (d *Device) CreateQuery(kind driver.QueryKind) (driver.Query, error) {
	o, err := d.newObject(KindQuery)
	if err != nil {
		return nil, err
	}
	return &Query{object: o, Kind: kind}, nil
}

func (d *Device) Context() driver.Context { return d.ctx }

// MockContext exposes the recording context with its concrete type.
func (d *Device) MockContext() *Context { return d.ctx }

func (d *Device) Info() metadata.RendererInfo {
	return metadata.RendererInfo{
		APIVersion:     "mock 1.0",
		Renderer:       "mock device",
		Vendor:         "mock",
		ShaderPlatform: "spirv",
		DepthMax:       1,
	}
}

func (d *Device) Caps() metadata.Caps { return d.caps }

func (d *Device) Release() { d.released = true }

func (d *Device) IsReleased() bool { return d.released }

// ViewsOf returns the views created on tex, in creation order.
func (d *Device) ViewsOf(tex driver.Texture, kind driver.ViewKind) []*View {
	var out []*View
	for _, v := range d.Views {
		if v.Texture != nil && driver.Texture(v.Texture) == tex && v.Desc.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}
