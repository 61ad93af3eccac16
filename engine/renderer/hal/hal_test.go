package hal

import (
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func withPanickingFatal(t *testing.T) {
	t.Helper()
	prev := core.SetFatalHandler(func(msg string) { panic(msg) })
	t.Cleanup(func() { core.SetFatalHandler(prev) })
}

func newTestHAL(t *testing.T, f *mock.Factory, sampleCount uint32) *HAL {
	t.Helper()
	withPanickingFatal(t)
	h, err := Initialise(Params{
		Factory:          f,
		Width:            640,
		Height:           480,
		SampleCount:      sampleCount,
		InitialResources: 8,
	})
	if err != nil {
		t.Fatalf("Initialise() error = %v", err)
	}
	return h
}

func expectFatal(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a fatal assertion")
		}
	}()
	fn()
}

func colourTarget(w, ht uint32) metadata.TextureCreationParams {
	return metadata.TextureCreationParams{
		Width:       w,
		Height:      ht,
		NumMips:     1,
		NumArrays:   1,
		SampleCount: 1,
		Format:      metadata.TEX_FORMAT_RGBA8_UNORM,
		BindFlags:   metadata.BIND_RENDER_TARGET | metadata.BIND_SHADER_RESOURCE,
	}
}

func depthTarget(w, ht uint32) metadata.TextureCreationParams {
	return metadata.TextureCreationParams{
		Width:       w,
		Height:      ht,
		NumMips:     1,
		NumArrays:   1,
		SampleCount: 1,
		Format:      metadata.TEX_FORMAT_D24_UNORM_S8_UINT,
		BindFlags:   metadata.BIND_DEPTH_STENCIL | metadata.BIND_SHADER_RESOURCE,
	}
}

func TestInitialiseCreatesBackbuffer(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 4)

	colour := h.res.lookup(metadata.BackbufferColour, slotRenderTarget)
	depth := h.res.lookup(metadata.BackbufferDepth, slotRenderTarget)
	if colour == nil || depth == nil {
		t.Fatal("backbuffer handles are not render targets")
	}
	if !colour.target.msaaResolveReadback {
		t.Error("backbuffer colour must resolve before read back")
	}
	if got := depth.target.tex.tex.Desc().SampleCount; got != 4 {
		t.Errorf("backbuffer depth sample count = %d, want 4", got)
	}
	if got := depth.target.tex.tex.Desc().Format; got != driver.FormatD24UnormS8Uint {
		t.Errorf("backbuffer depth format = %s", got)
	}
	ctx := f.Device.MockContext()
	if len(ctx.Colours) != 1 || ctx.Colours[0] == nil || ctx.Colours[0].Desc.Dimension != driver.ViewDimension2DMS {
		t.Errorf("backbuffer colour view not bound as 2DMS: %+v", ctx.Colours)
	}
	if h.cs.colours[0] != metadata.BackbufferColour || h.cs.depth != metadata.BackbufferDepth || h.cs.numColours != 1 {
		t.Errorf("context state = %+v, want the backbuffer bound", h.cs)
	}
	if h.Info().ShaderPlatform != "spirv" || !h.Caps().Has(metadata.CAPS_GPU_TIMER) {
		t.Errorf("info %+v caps %b", h.Info(), h.Caps())
	}
}

func TestInitialiseRejectsBadParams(t *testing.T) {
	if _, err := Initialise(Params{Width: 1, Height: 1}); err == nil {
		t.Error("expected an error without a factory")
	}
	if _, err := Initialise(Params{Factory: mock.NewFactory()}); err == nil {
		t.Error("expected an error for a zero sized window")
	}
}

func TestCreateReleaseRecreateDoesNotLeak(t *testing.T) {
	cube := colourTarget(64, 64)
	cube.Collection = metadata.TEXTURE_COLLECTION_CUBE_ARRAY
	cube.NumArrays = 12

	msaaDepth := depthTarget(128, 128)
	msaaDepth.SampleCount = 4

	readable := colourTarget(32, 32)
	readable.CPUAccess = metadata.CPU_ACCESS_READ

	tests := []struct {
		name    string
		create  func(h *HAL, handle metadata.Handle)
		release func(h *HAL, handle metadata.Handle)
	}{
		{
			"colour target",
			func(h *HAL, handle metadata.Handle) { h.CreateRenderTarget(handle, colourTarget(256, 256)) },
			(*HAL).ReleaseRenderTarget,
		},
		{
			"cube array target",
			func(h *HAL, handle metadata.Handle) { h.CreateRenderTarget(handle, cube) },
			(*HAL).ReleaseRenderTarget,
		},
		{
			"resolved msaa depth target",
			func(h *HAL, handle metadata.Handle) {
				h.CreateRenderTarget(handle, msaaDepth)
				h.ResolveTarget(handle, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
			},
			(*HAL).ReleaseRenderTarget,
		},
		{
			"readable target",
			func(h *HAL, handle metadata.Handle) { h.CreateRenderTarget(handle, readable) },
			(*HAL).ReleaseRenderTarget,
		},
		{
			"structured buffer",
			func(h *HAL, handle metadata.Handle) {
				h.CreateBuffer(handle, metadata.BufferCreationParams{
					Size:      256,
					Stride:    16,
					BindFlags: metadata.BIND_SHADER_WRITE | metadata.BIND_SHADER_RESOURCE,
				})
			},
			(*HAL).ReleaseBuffer,
		},
		{
			"writable texture",
			func(h *HAL, handle metadata.Handle) {
				h.CreateTexture(handle, metadata.TextureCreationParams{
					Width: 16, Height: 16, NumMips: 1, NumArrays: 1,
					Format:    metadata.TEX_FORMAT_R32_FLOAT,
					BindFlags: metadata.BIND_SHADER_RESOURCE | metadata.BIND_SHADER_WRITE,
				})
			},
			(*HAL).ReleaseTexture,
		},
		{
			"sampler",
			func(h *HAL, handle metadata.Handle) { h.CreateSampler(handle, metadata.SamplerCreationParams{}) },
			(*HAL).ReleaseSampler,
		},
		{
			"stream out shader",
			func(h *HAL, handle metadata.Handle) {
				h.LoadShader(handle, metadata.ShaderLoadParams{Type: metadata.SHADER_TYPE_SO, ByteCode: []byte{1}})
			},
			func(h *HAL, handle metadata.Handle) { h.ReleaseShader(handle, metadata.SHADER_TYPE_SO) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mock.NewFactory()
			h := newTestHAL(t, f, 1)
			baseline := f.Device.TotalLive()

			// the handle is past the initial capacity so the table has to grow
			handle := metadata.Handle(37)
			tt.create(h, handle)
			if f.Device.TotalLive() == baseline {
				t.Fatal("create made no native objects")
			}
			tt.release(h, handle)
			if got := f.Device.TotalLive(); got != baseline {
				t.Fatalf("after release live = %d, want %d", got, baseline)
			}
			if s := h.res.at(handle); s.kind != slotEmpty {
				t.Fatalf("released slot still holds a %s", s.kind)
			}

			tt.create(h, handle)
			once := f.Device.TotalLive()
			// creating over a live slot releases what was there
			tt.create(h, handle)
			if got := f.Device.TotalLive(); got != once {
				t.Fatalf("re-create over a live slot: live = %d, want %d", got, once)
			}
			tt.release(h, handle)
			if got := f.Device.TotalLive(); got != baseline {
				t.Fatalf("after second release live = %d, want %d", got, baseline)
			}
		})
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.CreateRenderTarget(10, colourTarget(64, 64))
	h.CreateBuffer(11, metadata.BufferCreationParams{Size: 64, BindFlags: metadata.BIND_VERTEX_BUFFER})
	h.LoadShader(12, metadata.ShaderLoadParams{Type: metadata.SHADER_TYPE_VS, ByteCode: []byte{1, 2}})
	for i := 0; i < 3; i++ {
		h.NewFrame()
		h.Present()
	}

	h.Shutdown()
	if live := f.Device.TotalLive(); live != 0 {
		t.Errorf("live objects after shutdown = %d, want 0", live)
	}
	if !f.Device.IsReleased() {
		t.Error("device not released")
	}
}

func TestReplaceResourceMovesSource(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	tcp := metadata.TextureCreationParams{Width: 8, Height: 8, NumMips: 1, Format: metadata.TEX_FORMAT_RGBA8_UNORM, BindFlags: metadata.BIND_SHADER_RESOURCE}

	h.CreateTexture(20, tcp)
	baseline := f.Device.TotalLive()
	h.CreateTexture(21, tcp)
	replacement := h.res.at(21).texture

	h.ReplaceResource(20, 21, metadata.RESOURCE_TEXTURE)

	if got := h.res.at(20); got.kind != slotTexture || got.texture != replacement {
		t.Errorf("dest does not hold the source texture")
	}
	if got := h.res.at(21); got.kind != slotEmpty {
		t.Errorf("source slot still holds a %s", got.kind)
	}
	if got := f.Device.TotalLive(); got != baseline {
		t.Errorf("live = %d, want %d", got, baseline)
	}
}

func TestReplaceResourceMovesManagedTarget(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	tcp := colourTarget(0, 0)
	tcp.RatioDivisor = 2

	h.CreateRenderTarget(20, colourTarget(8, 8))
	h.CreateRenderTarget(21, tcp)
	h.ReplaceResource(20, 21, metadata.RESOURCE_RENDER_TARGET)

	if _, ok := h.managed[20]; !ok {
		t.Error("ratio tracking did not follow the moved target")
	}
	if _, ok := h.managed[21]; ok {
		t.Error("ratio tracking left on the emptied handle")
	}
}

func TestShaders(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.LoadShader(10, metadata.ShaderLoadParams{Type: metadata.SHADER_TYPE_VS, ByteCode: []byte{1}})
	h.LoadShader(11, metadata.ShaderLoadParams{Type: metadata.SHADER_TYPE_PS})
	h.CreateInputLayout(12, metadata.InputLayoutCreationParams{Elements: []metadata.InputElement{{SemanticName: "POSITION", Format: metadata.VERTEX_FORMAT_FLOAT4}}})
	h.LinkShaderProgram(13, metadata.ShaderLinkParams{VertexShader: 10, PixelShader: 11, InputLayout: 12})

	if s := h.res.lookup(11, slotShader); s == nil || s.shader.native != nil {
		t.Fatal("a pixel shader without bytecode must load as a null shader")
	}

	h.SetShaderProgram(13)
	if ctx.Shaders[metadata.SHADER_TYPE_VS] == nil {
		t.Error("program did not bind its vertex shader")
	}
	if ctx.Shaders[metadata.SHADER_TYPE_PS] != nil {
		t.Error("null pixel shader bound something")
	}
	if ctx.InputLayout == nil {
		t.Error("program did not bind its input layout")
	}

	h.LoadShader(14, metadata.ShaderLoadParams{Type: metadata.SHADER_TYPE_SO, ByteCode: []byte{1}})
	h.SetShader(14, metadata.SHADER_TYPE_SO)
	if gs := ctx.Shaders[metadata.SHADER_TYPE_GS]; gs == nil || !gs.StreamOut {
		t.Error("stream out geometry stage not bound")
	}
	if ctx.DepthStencil == nil {
		t.Error("stream out must bind a depth disabled state")
	}

	f.Device.FailCreate[mock.KindShader] = core.ErrUnsupported
	h.LoadShader(15, metadata.ShaderLoadParams{Type: metadata.SHADER_TYPE_SO, ByteCode: []byte{1}})
	if s := h.res.at(15); s.kind != slotEmpty {
		t.Errorf("unsupported stream out shader left a %s", s.kind)
	}
}

func TestStructuredBufferBinding(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.CreateBuffer(10, metadata.BufferCreationParams{
		Size:      1024,
		Stride:    16,
		BindFlags: metadata.BIND_SHADER_WRITE | metadata.BIND_SHADER_RESOURCE,
	})
	b := h.res.at(10).buffer
	if b.uav == nil || b.srv == nil {
		t.Fatal("shader write buffer needs a storage and a shader view")
	}
	if got := b.uav.(*mock.View).Desc.ArraySize; got != 64 {
		t.Errorf("element count = %d, want 64", got)
	}

	h.SetStructuredBuffer(10, 2, metadata.SBUFFER_BIND_CS|metadata.SBUFFER_BIND_WRITE)
	if ctx.Storage[2] != b.uav.(*mock.View) {
		t.Error("compute write did not bind the storage view")
	}
	h.SetStructuredBuffer(10, 3, metadata.SBUFFER_BIND_PS|metadata.SBUFFER_BIND_READ)
	if ctx.Resources[3] != b.srv.(*mock.View) {
		t.Error("pixel read did not bind the shader view")
	}
}

func TestUpdateBuffer(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.CreateBuffer(10, metadata.BufferCreationParams{Size: 8, Usage: metadata.USAGE_DYNAMIC, BindFlags: metadata.BIND_CONSTANT_BUFFER, Data: []byte{1, 2}})
	h.UpdateBuffer(10, []byte{9, 9}, 4)

	got := h.res.at(10).buffer.buf.(*mock.Buffer).Data
	want := []byte{1, 2, 0, 0, 9, 9, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buffer = %v, want %v", got, want)
		}
	}
}

func TestCreateTextureUploadsEveryArrayAndMip(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	// 4x4 rgba8 with 3 mips is 64 + 16 + 4 bytes, two arrays
	tcp := metadata.TextureCreationParams{
		Width: 4, Height: 4, NumMips: metadata.AutoMips, NumArrays: 2,
		Format:     metadata.TEX_FORMAT_RGBA8_UNORM,
		BindFlags:  metadata.BIND_SHADER_RESOURCE,
		Collection: metadata.TEXTURE_COLLECTION_ARRAY,
		Data:       make([]byte, 2*(64+16+4)),
	}
	h.CreateTexture(10, tcp)

	tex := h.res.at(10).texture.tex.(*mock.Texture)
	if tex.Uploads != 6 {
		t.Errorf("uploads = %d, want 6", tex.Uploads)
	}
	srv := h.res.at(10).texture.srv.(*mock.View)
	if srv.Desc.Dimension != driver.ViewDimension2DArray || srv.Desc.ArraySize != 2 || srv.Desc.MipLevels != 3 {
		t.Errorf("shader view = %+v", srv.Desc)
	}
}

func TestSetTextureBindings(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.CreateTexture(10, metadata.TextureCreationParams{
		Width: 16, Height: 16, NumMips: 1,
		Format:    metadata.TEX_FORMAT_R32_FLOAT,
		BindFlags: metadata.BIND_SHADER_RESOURCE | metadata.BIND_SHADER_WRITE,
	})
	h.CreateSampler(11, metadata.SamplerCreationParams{Filter: metadata.FILTER_POINT})

	h.SetTexture(10, 11, 1, metadata.TEXTURE_BIND_CS)
	if ctx.Storage[1] == nil || ctx.Storage[1].Desc.Kind != driver.ViewStorage {
		t.Error("compute bind of a writable texture must bind its storage view")
	}
	h.SetTexture(10, 11, 2, metadata.TEXTURE_BIND_PS)
	if ctx.Resources[2] == nil || ctx.Samplers[2] == nil {
		t.Error("pixel bind must bind the shader view and sampler")
	}

	msaa := colourTarget(32, 32)
	msaa.SampleCount = 4
	h.CreateRenderTarget(12, msaa)
	h.SetTexture(12, 0, 3, metadata.TEXTURE_BIND_PS|metadata.TEXTURE_BIND_MSAA)
	if ctx.Resources[3] == nil || ctx.Resources[3].Desc.Dimension != driver.ViewDimension2DMS {
		t.Error("msaa bind must use the multisampled shader view")
	}

	h.SetTexture(metadata.NullHandle, 0, 2, metadata.TEXTURE_BIND_PS)
	if ctx.Resources[2] != nil {
		t.Error("null handle did not unbind")
	}
}

func TestClearTexture(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.CreateClearState(5, metadata.ClearState{R: 1, A: 1, Flags: metadata.CLEAR_COLOUR_BUFFER})
	h.CreateTexture(10, metadata.TextureCreationParams{
		Width: 16, Height: 16, NumMips: 1,
		Format:    metadata.TEX_FORMAT_RGBA8_UNORM,
		BindFlags: metadata.BIND_SHADER_RESOURCE | metadata.BIND_SHADER_WRITE,
	})
	cube := colourTarget(16, 16)
	cube.Collection = metadata.TEXTURE_COLLECTION_CUBE
	cube.NumArrays = 6
	h.CreateRenderTarget(11, cube)

	h.ClearTexture(10, 5)
	h.ClearTexture(11, 5)
	if len(ctx.StorageClears) != 1 {
		t.Errorf("storage clears = %d, want 1", len(ctx.StorageClears))
	}
	if len(ctx.ColourClears) != 6 {
		t.Errorf("cube face clears = %d, want 6", len(ctx.ColourClears))
	}
}

func TestBlendStateClampsWriteMask(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.CreateBlendState(10, metadata.BlendCreationParams{
		RenderTargets: []metadata.RenderTargetBlend{{BlendEnable: true, WriteMask: 0xff}},
	})
	params := h.res.at(10).blend.(*mock.State).Params.(metadata.BlendCreationParams)
	if got := params.RenderTargets[0].WriteMask; got != 0x0f {
		t.Errorf("write mask = %#x, want 0xf", got)
	}
}

func TestDrawCalls(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.CreateBuffer(10, metadata.BufferCreationParams{Size: 96, BindFlags: metadata.BIND_VERTEX_BUFFER})
	h.CreateBuffer(11, metadata.BufferCreationParams{Size: 12, BindFlags: metadata.BIND_INDEX_BUFFER})
	h.SetVertexBuffers([]metadata.Handle{10}, 0, []uint32{24}, []uint32{0})
	h.SetIndexBuffer(11, metadata.FORMAT_R16_UINT, 0)
	h.DrawIndexed(6, 0, 0, metadata.PT_TRIANGLELIST)
	h.DrawIndexedInstanced(4, 0, 6, 0, 0, metadata.PT_TRIANGLELIST)
	h.Draw(3, 0, metadata.PT_TRIANGLELIST)
	h.DrawAuto()
	h.Dispatch(metadata.Uint3{X: 2, Y: 2, Z: 1}, metadata.Uint3{X: 8, Y: 8, Z: 1})

	want := []mock.DrawCall{
		{Kind: "draw_indexed", Count: 6, Topology: metadata.PT_TRIANGLELIST},
		{Kind: "draw_indexed_instanced", Count: 24, Topology: metadata.PT_TRIANGLELIST},
		{Kind: "draw", Count: 3, Topology: metadata.PT_TRIANGLELIST},
		{Kind: "draw_auto", Topology: metadata.PT_POINTLIST},
		{Kind: "dispatch", Count: 4},
	}
	if len(ctx.Draws) != len(want) {
		t.Fatalf("draws = %+v", ctx.Draws)
	}
	for i := range want {
		if ctx.Draws[i] != want[i] {
			t.Errorf("draw %d = %+v, want %+v", i, ctx.Draws[i], want[i])
		}
	}
	if ctx.IndexBuffer == nil || len(ctx.VertexBuffers) != 1 || ctx.VertexStrides[0] != 24 {
		t.Error("geometry buffers not bound")
	}
}
