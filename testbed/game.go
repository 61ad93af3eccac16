package testbed

import (
	"fmt"
	stdmath "math"
	"path/filepath"

	"github.com/spaghettifunk/anima-hal/engine"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer"
	"github.com/spaghettifunk/anima-hal/engine/renderer/hal"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// resources holds the handles the testbed acquires from the engine.
type resources struct {
	quadVB          metadata.Handle
	quadIB          metadata.Handle
	quadCB          metadata.Handle
	hudCB           metadata.Handle
	quadVS          metadata.Handle
	quadPS          metadata.Handle
	quadLayout      metadata.Handle
	quadProgram     metadata.Handle
	linearSampler   metadata.Handle
	checkerTexture  metadata.Handle
	sceneTarget     metadata.Handle
	sceneDepth      metadata.Handle
	rasterState     metadata.Handle
	blendState      metadata.Handle
	depthState      metadata.Handle
	sceneClear      metadata.Handle
	backbufferClear metadata.Handle
}

const (
	vertexStride  = 24
	checkerSize   = 256
	checkerSquare = 32
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine   *engine.Engine
	renderer *renderer.Renderer

	res           resources
	width, height uint32
	sampleCount   uint32
	elapsed       float64
}

func NewTestGame(appConfig *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: appConfig,
			State:             &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	st := g.state()
	st.engine = e
	st.renderer = e.Renderer()
	st.width, st.height = e.GetFramebufferSize()

	st.res = resources{
		quadVB:          e.AcquireHandle(),
		quadIB:          e.AcquireHandle(),
		quadCB:          e.AcquireHandle(),
		hudCB:           e.AcquireHandle(),
		quadVS:          e.AcquireHandle(),
		quadPS:          e.AcquireHandle(),
		quadLayout:      e.AcquireHandle(),
		quadProgram:     e.AcquireHandle(),
		linearSampler:   e.AcquireHandle(),
		checkerTexture:  e.AcquireHandle(),
		sceneTarget:     e.AcquireHandle(),
		sceneDepth:      e.AcquireHandle(),
		rasterState:     e.AcquireHandle(),
		blendState:      e.AcquireHandle(),
		depthState:      e.AcquireHandle(),
		sceneClear:      e.AcquireHandle(),
		backbufferClear: e.AcquireHandle(),
	}

	cfg := g.ApplicationConfig.Config
	st.sampleCount = cfg.Application.SampleCount

	for name, handle := range map[string]metadata.Handle{
		"quad.vert.spv": st.res.quadVS,
		"quad.frag.spv": st.res.quadPS,
	} {
		path, err := filepath.Abs(filepath.Join(cfg.Renderer.ShaderDir, name))
		if err != nil {
			return err
		}
		if err := st.renderer.LoadShader(path, handle); err != nil {
			return fmt.Errorf("testbed shaders, run `mage build:shaders`: %w", err)
		}
	}

	st.renderer.Do(func(h *hal.HAL) {
		createGeometry(h, &st.res)
		createStates(h, &st.res, st.sampleCount)
		h.CreateTexture(st.res.checkerTexture, checkerboard())
	})
	return nil
}

func createGeometry(h *hal.HAL, res *resources) {
	// float4 position, float2 uv
	vertices := math.Float32Bytes(
		-1, -1, 0, 1, 0, 1,
		1, -1, 0, 1, 1, 1,
		1, 1, 0, 1, 1, 0,
		-1, 1, 0, 1, 0, 0,
	)
	h.CreateBuffer(res.quadVB, metadata.BufferCreationParams{
		Usage:     metadata.USAGE_IMMUTABLE,
		BindFlags: metadata.BIND_VERTEX_BUFFER,
		Size:      uint32(len(vertices)),
		Data:      vertices,
	})
	indices := []byte{0, 0, 1, 0, 2, 0, 2, 0, 3, 0, 0, 0}
	h.CreateBuffer(res.quadIB, metadata.BufferCreationParams{
		Usage:     metadata.USAGE_IMMUTABLE,
		BindFlags: metadata.BIND_INDEX_BUFFER,
		Size:      uint32(len(indices)),
		Data:      indices,
	})
	for _, cb := range []metadata.Handle{res.quadCB, res.hudCB} {
		h.CreateBuffer(cb, metadata.BufferCreationParams{
			Usage:     metadata.USAGE_DYNAMIC,
			BindFlags: metadata.BIND_CONSTANT_BUFFER,
			CPUAccess: metadata.CPU_ACCESS_WRITE,
			Size:      16,
			Data:      math.Float32Bytes(0, 0, 1, 1),
		})
	}

	h.CreateInputLayout(res.quadLayout, metadata.InputLayoutCreationParams{
		Elements: []metadata.InputElement{
			{SemanticName: "POSITION", Format: metadata.VERTEX_FORMAT_FLOAT4},
			{SemanticName: "TEXCOORD", Format: metadata.VERTEX_FORMAT_FLOAT2, AlignedByteOffset: 16},
		},
	})
	h.LinkShaderProgram(res.quadProgram, metadata.ShaderLinkParams{
		VertexShader: res.quadVS,
		PixelShader:  res.quadPS,
		InputLayout:  res.quadLayout,
	})
}

func createStates(h *hal.HAL, res *resources, sampleCount uint32) {
	h.CreateSampler(res.linearSampler, metadata.SamplerCreationParams{
		Filter:   metadata.FILTER_MIN_MAG_MIP_LINEAR,
		AddressU: metadata.TEXTURE_ADDRESS_WRAP,
		AddressV: metadata.TEXTURE_ADDRESS_WRAP,
		AddressW: metadata.TEXTURE_ADDRESS_WRAP,
		MaxLOD:   1000,
	})
	h.CreateRasterState(res.rasterState, metadata.RasterStateCreationParams{
		FillMode:          metadata.FILL_SOLID,
		CullMode:          metadata.CULL_NONE,
		DepthClipEnable:   true,
		MultisampleEnable: sampleCount > 1,
	})
	h.CreateBlendState(res.blendState, metadata.BlendCreationParams{
		RenderTargets: []metadata.RenderTargetBlend{{
			BlendEnable:    true,
			SrcBlend:       metadata.BLEND_SRC_ALPHA,
			DestBlend:      metadata.BLEND_INV_SRC_ALPHA,
			BlendOp:        metadata.BLEND_OP_ADD,
			SrcBlendAlpha:  metadata.BLEND_ONE,
			DestBlendAlpha: metadata.BLEND_ZERO,
			BlendOpAlpha:   metadata.BLEND_OP_ADD,
			WriteMask:      0xf,
		}},
	})
	h.CreateDepthStencilState(res.depthState, metadata.DepthStencilCreationParams{
		DepthEnable: false,
		DepthFunc:   metadata.COMPARISON_ALWAYS,
	})
	h.CreateClearState(res.sceneClear, metadata.ClearState{
		R: 0.1, G: 0.1, B: 0.15, A: 1,
		Depth: 1,
		Flags: metadata.CLEAR_COLOUR_BUFFER | metadata.CLEAR_DEPTH_BUFFER,
	})
	h.CreateClearState(res.backbufferClear, metadata.ClearState{
		A:     1,
		Depth: 1,
		Flags: metadata.CLEAR_COLOUR_BUFFER | metadata.CLEAR_DEPTH_BUFFER,
	})

	// The scene follows the backbuffer size, so it is created by ratio and
	// rebuilt by the HAL on every resize.
	h.CreateRenderTarget(res.sceneTarget, metadata.TextureCreationParams{
		RatioDivisor: 1,
		NumMips:      1,
		NumArrays:    1,
		SampleCount:  sampleCount,
		Format:       metadata.TEX_FORMAT_RGBA8_UNORM,
		BindFlags:    metadata.BIND_RENDER_TARGET | metadata.BIND_SHADER_RESOURCE,
	})
	h.CreateRenderTarget(res.sceneDepth, metadata.TextureCreationParams{
		RatioDivisor: 1,
		NumMips:      1,
		NumArrays:    1,
		SampleCount:  sampleCount,
		Format:       metadata.TEX_FORMAT_D24_UNORM_S8_UINT,
		BindFlags:    metadata.BIND_DEPTH_STENCIL,
	})
}

// checkerboard is a two tone RGBA8 texture with a full mip chain.
func checkerboard() metadata.TextureCreationParams {
	numMips := math.NumMips(uint32(checkerSize), uint32(checkerSize))
	var data []byte
	for mip := uint32(0); mip < numMips; mip++ {
		size := math.MipExtent(uint32(checkerSize), mip)
		square := math.Max(uint32(checkerSquare)>>mip, 1)
		for y := uint32(0); y < size; y++ {
			for x := uint32(0); x < size; x++ {
				v := byte(0x30)
				if (x/square+y/square)%2 == 0 {
					v = 0xe0
				}
				data = append(data, v, v, v, 0xff)
			}
		}
	}
	return metadata.TextureCreationParams{
		Width:     checkerSize,
		Height:    checkerSize,
		NumMips:   int32(numMips),
		NumArrays: 1,
		Format:    metadata.TEX_FORMAT_RGBA8_UNORM,
		Usage:     metadata.USAGE_IMMUTABLE,
		BindFlags: metadata.BIND_SHADER_RESOURCE,
		Data:      data,
	}
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().elapsed += deltaTime
	return nil
}

func (g *TestGame) Render(h *hal.HAL, deltaTime float64) error {
	st := g.state()
	res := &st.res
	width, height := h.BackbufferSize()

	h.PushPerfMarker("scene")
	h.SetTargets([]metadata.Handle{res.sceneTarget}, res.sceneDepth, 0, 0)
	h.Clear(res.sceneClear, 0, 0)
	fullscreen(h, width, height)
	scale := float32(0.5 + 0.25*stdmath.Sin(st.elapsed))
	h.UpdateBuffer(res.quadCB, math.Float32Bytes(0, 0, scale, scale), 0)
	drawQuad(h, res, res.checkerTexture, res.quadCB)
	h.PopPerfMarker()

	if st.sampleCount > 1 {
		h.PushPerfMarker("resolve")
		h.ResolveTarget(res.sceneTarget, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
		h.PopPerfMarker()
	}

	h.PushPerfMarker("present")
	h.SetTargets([]metadata.Handle{metadata.BackbufferColour}, metadata.BackbufferDepth, 0, 0)
	h.Clear(res.backbufferClear, 0, 0)
	fullscreen(h, width, height)
	h.UpdateBuffer(res.quadCB, math.Float32Bytes(0, 0, 1, 1), 0)
	drawQuad(h, res, res.sceneTarget, res.quadCB)

	if hud, ok := st.renderer.HUD(); ok && h.Frame() > 0 {
		// top left corner, 320x200 pixels
		sx, sy := 320/float32(width), 200/float32(height)
		h.UpdateBuffer(res.hudCB, math.Float32Bytes(-1+sx, 1-sy, sx, sy), 0)
		drawQuad(h, res, hud, res.hudCB)
	}
	h.PopPerfMarker()
	return nil
}

func fullscreen(h *hal.HAL, width, height uint32) {
	h.SetViewport(metadata.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1})
	h.SetScissorRect(metadata.Rect{Right: float32(width), Bottom: float32(height)})
}

func drawQuad(h *hal.HAL, res *resources, texture, constants metadata.Handle) {
	h.SetRasterState(res.rasterState)
	h.SetBlendState(res.blendState)
	h.SetDepthStencilState(res.depthState)
	h.SetShaderProgram(res.quadProgram)
	h.SetVertexBuffers([]metadata.Handle{res.quadVB}, 0, []uint32{vertexStride}, []uint32{0})
	h.SetIndexBuffer(res.quadIB, metadata.FORMAT_R16_UINT, 0)
	h.SetConstantBuffer(constants, 0, metadata.CBUFFER_BIND_VS)
	h.SetTexture(texture, res.linearSampler, 0, metadata.TEXTURE_BIND_PS)
	h.DrawIndexed(6, 0, 0, metadata.PT_TRIANGLELIST)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	st := g.state()
	st.width, st.height = width, height
	return nil
}

func (g *TestGame) Shutdown(h *hal.HAL) error {
	st := g.state()
	res := &st.res
	for _, r := range st.renderer.PerfResults() {
		core.LogInfo("last frame %-8s %8.3f ms", r.Name, float64(r.Elapsed)/1e6)
	}
	if files := st.renderer.Captures(); len(files) > 0 {
		core.LogInfo("captured %v", files)
	}
	h.ReleaseTexture(res.checkerTexture)
	return st.engine.ReleaseHandle(res.checkerTexture)
}
