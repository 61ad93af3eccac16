package hal

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func TestRenderTargetViews(t *testing.T) {
	tests := []struct {
		name       string
		collection metadata.CollectionType
		arrays     uint32
		depth      bool
		wantWrite  int
		wantDim    driver.ViewDimension
		wantArray  uint32
	}{
		{"plain colour", metadata.TEXTURE_COLLECTION_NONE, 1, false, 1, driver.ViewDimension2D, 0},
		{"plain depth", metadata.TEXTURE_COLLECTION_NONE, 1, true, 1, driver.ViewDimension2D, 0},
		{"array", metadata.TEXTURE_COLLECTION_ARRAY, 4, false, 4, driver.ViewDimension2DArray, 4},
		{"cube", metadata.TEXTURE_COLLECTION_CUBE, 6, false, 6, driver.ViewDimensionCube, 1},
		{"cube array", metadata.TEXTURE_COLLECTION_CUBE_ARRAY, 12, false, 12, driver.ViewDimensionCubeArray, 2},
		{"cube array depth", metadata.TEXTURE_COLLECTION_CUBE_ARRAY, 18, true, 18, driver.ViewDimensionCubeArray, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mock.NewFactory()
			h := newTestHAL(t, f, 1)

			tcp := colourTarget(128, 128)
			writeKind := driver.ViewRenderTarget
			if tt.depth {
				tcp = depthTarget(128, 128)
				writeKind = driver.ViewDepthStencil
			}
			tcp.Collection = tt.collection
			tcp.NumArrays = tt.arrays
			h.CreateRenderTarget(10, tcp)

			rt := h.res.lookup(10, slotRenderTarget).target
			if len(rt.views) != tt.wantWrite {
				t.Fatalf("write views = %d, want %d", len(rt.views), tt.wantWrite)
			}
			if got := f.Device.ViewsOf(rt.tex.tex, writeKind); len(got) != tt.wantWrite {
				t.Fatalf("device made %d write views, want %d", len(got), tt.wantWrite)
			}
			for i, v := range rt.views {
				d := v.(*mock.View).Desc
				if tt.wantWrite > 1 && (d.FirstSlice != uint32(i) || d.ArraySize != 1 || d.Dimension != driver.ViewDimension2DArray) {
					t.Errorf("write view %d = %+v, want slice %d of a 2d array", i, d, i)
				}
			}

			srvs := f.Device.ViewsOf(rt.tex.tex, driver.ViewShaderResource)
			if len(srvs) != 1 {
				t.Fatalf("shader views = %d, want 1", len(srvs))
			}
			if srvs[0].Desc.Dimension != tt.wantDim || srvs[0].Desc.ArraySize != tt.wantArray {
				t.Errorf("shader view = %+v, want %v with array size %d", srvs[0].Desc, tt.wantDim, tt.wantArray)
			}
			if got := rt.tex.tex.Desc().Cube; got != srvs[0].Desc.Dimension.IsCube() {
				t.Errorf("texture cube flag = %v", got)
			}
		})
	}
}

func TestDepthTargetUsesTypelessStorage(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.CreateRenderTarget(10, depthTarget(64, 64))
	rt := h.res.lookup(10, slotRenderTarget).target

	if got := rt.tex.tex.Desc().Format; got != driver.FormatR24G8Typeless {
		t.Errorf("storage = %s, want r24g8_typeless", got)
	}
	if got := rt.views[0].(*mock.View).Desc.Format; got != driver.FormatD24UnormS8Uint {
		t.Errorf("depth view = %s", got)
	}
	if got := rt.tex.srv.(*mock.View).Desc.Format; got != driver.FormatR24UnormX8Typeless {
		t.Errorf("read view = %s", got)
	}
}

func TestArrayMSAATargetIsFatal(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	tcp := colourTarget(64, 64)
	tcp.Collection = metadata.TEXTURE_COLLECTION_ARRAY
	tcp.NumArrays = 2
	tcp.SampleCount = 4
	expectFatal(t, func() { h.CreateRenderTarget(10, tcp) })
}

func TestNeitherColourNorDepthIsFatal(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	tcp := colourTarget(64, 64)
	tcp.BindFlags = metadata.BIND_SHADER_RESOURCE
	expectFatal(t, func() { h.CreateRenderTarget(10, tcp) })
}

func TestVolumeTargetIsATexture(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	tcp := metadata.TextureCreationParams{
		Width: 16, Height: 16, NumArrays: 16, NumMips: metadata.AutoMips,
		Format:     metadata.TEX_FORMAT_RGBA8_UNORM,
		BindFlags:  metadata.BIND_SHADER_RESOURCE | metadata.BIND_SHADER_WRITE,
		Collection: metadata.TEXTURE_COLLECTION_VOLUME,
	}
	h.CreateRenderTarget(10, tcp)

	s := h.res.lookup(10, slotTexture)
	if s == nil || !s.texture.volume {
		t.Fatal("volume render target must be created as a volume texture")
	}
	if d := s.texture.tex.Desc(); d.Dimension != driver.Texture3D || !d.GenerateMips {
		t.Errorf("volume texture desc = %+v", d)
	}

	h.ResolveTarget(10, metadata.RESOLVE_GENERATE_MIPS, metadata.ResolveResources{})
	if got := ctx.TotalMipGenerations(); got != 1 {
		t.Errorf("mip generations = %d, want 1", got)
	}
}

func TestMipsRegenerateOncePerInvalidate(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	tcp := colourTarget(256, 256)
	tcp.NumMips = metadata.AutoMips
	h.CreateRenderTarget(10, tcp)

	rt := h.res.lookup(10, slotRenderTarget).target
	if !rt.hasMips || rt.numMips != 9 {
		t.Fatalf("hasMips = %v numMips = %d, want a 9 level chain", rt.hasMips, rt.numMips)
	}
	if !rt.tex.tex.Desc().GenerateMips {
		t.Error("texture not created for mip generation")
	}

	h.SetTexture(10, 0, 0, metadata.TEXTURE_BIND_PS)
	if got := ctx.TotalMipGenerations(); got != 0 {
		t.Fatalf("mips generated before the target was rendered to: %d", got)
	}

	h.SetTargets([]metadata.Handle{10}, metadata.NullHandle, 0, 0)
	if !rt.invalidate {
		t.Fatal("binding as a target must invalidate the mips")
	}
	h.SetTexture(10, 0, 0, metadata.TEXTURE_BIND_PS)
	h.SetTexture(10, 0, 1, metadata.TEXTURE_BIND_PS)
	if got := ctx.TotalMipGenerations(); got != 1 {
		t.Errorf("mip generations = %d, want 1", got)
	}
	if rt.invalidate {
		t.Error("invalidate not cleared after regenerating")
	}

	h.SetTargets([]metadata.Handle{10}, metadata.NullHandle, 0, 0)
	h.SetTexture(10, 0, 0, metadata.TEXTURE_BIND_PS)
	if got := ctx.TotalMipGenerations(); got != 2 {
		t.Errorf("mip generations = %d, want 2", got)
	}
}

func TestMSAATargetResolve(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	tcp := colourTarget(64, 32)
	tcp.SampleCount = 4
	h.CreateRenderTarget(10, tcp)

	rt := h.res.lookup(10, slotRenderTarget).target
	if rt.tex.tex != nil || len(rt.views) != 0 {
		t.Fatal("msaa target created a resolve surface up front")
	}
	if rt.texMSAA.tex == nil || len(rt.viewsMSAA) != 1 || rt.tcp == nil {
		t.Fatal("msaa target missing its multisampled set")
	}

	h.ResolveTarget(10, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
	if rt.tex.tex == nil || rt.tex.tex.Desc().SampleCount != 1 {
		t.Fatal("resolve did not create a single sampled surface")
	}
	if len(ctx.Resolves) != 1 || ctx.Resolves[0].Src != rt.texMSAA.tex.(*mock.Texture) {
		t.Errorf("resolves = %+v", ctx.Resolves)
	}

	// the surface is created once
	surface := rt.tex.tex
	h.ResolveTarget(10, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
	if rt.tex.tex != surface {
		t.Error("second resolve recreated the surface")
	}
}

func TestResolveOfPlainTargetIsSkipped(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	var out bytes.Buffer
	core.SetLogOutput(&out)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })

	h.CreateRenderTarget(10, colourTarget(64, 64))
	h.ResolveTarget(10, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
	h.ResolveTarget(metadata.BackbufferDepth, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
	if len(ctx.Resolves) != 0 || len(ctx.Draws) != 0 {
		t.Errorf("non msaa targets were resolved: %+v %+v", ctx.Resolves, ctx.Draws)
	}
	if got := strings.Count(out.String(), "no multisample data to resolve"); got != 2 {
		t.Errorf("skipped resolves logged %d warnings, want 2:\n%s", got, out.String())
	}
}

func TestDepthResolve(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	tcp := depthTarget(64, 32)
	tcp.SampleCount = 4
	h.CreateRenderTarget(10, tcp)

	h.ResolveTarget(10, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
	rt := h.res.lookup(10, slotRenderTarget).target
	if len(ctx.Resolves) != 0 {
		t.Error("a depth target must not be hardware resolved")
	}
	if rt.tex.tex == nil || rt.tex.tex.Desc().Format != driver.FormatR32Float {
		t.Fatal("depth resolves into an r32 float colour surface")
	}

	h.CreateBuffer(20, metadata.BufferCreationParams{Size: 4 * 24, BindFlags: metadata.BIND_VERTEX_BUFFER})
	h.CreateBuffer(21, metadata.BufferCreationParams{Size: 12, BindFlags: metadata.BIND_INDEX_BUFFER})
	h.CreateBuffer(22, metadata.BufferCreationParams{Size: 16, Usage: metadata.USAGE_DYNAMIC, BindFlags: metadata.BIND_CONSTANT_BUFFER})
	h.ResolveTarget(10, metadata.RESOLVE_CUSTOM, metadata.ResolveResources{VertexBuffer: 20, IndexBuffer: 21, ConstantBuffer: 22})

	if len(ctx.Draws) != 1 || ctx.Draws[0].Count != 6 || ctx.Draws[0].Topology != metadata.PT_TRIANGLELIST {
		t.Fatalf("custom resolve draws = %+v", ctx.Draws)
	}
	if len(ctx.Colours) != 1 || ctx.Colours[0] != rt.views[0].(*mock.View) || ctx.Depth != nil {
		t.Error("custom resolve must render into the resolve surface alone")
	}
	if ctx.Resources[0] != rt.texMSAA.srv.(*mock.View) {
		t.Error("custom resolve must sample the msaa surface")
	}
	if ctx.Viewport.Width != 64 || ctx.Viewport.Height != 32 || ctx.Viewport.MaxDepth != 1 {
		t.Errorf("viewport = %+v", ctx.Viewport)
	}
	cb := h.res.at(22).buffer.buf.(*mock.Buffer).Data
	if cb[0] != 0 || cb[3] != 0x42 || cb[4] != 0 || cb[7] != 0x42 {
		t.Errorf("constant buffer = %v, want {64, 32, 0, 0}", cb)
	}
}

func TestRatioTargetsFollowResize(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	tcp := colourTarget(0, 0)
	tcp.RatioDivisor = 2
	h.CreateRenderTarget(10, tcp)

	rt := h.res.lookup(10, slotRenderTarget).target
	if d := rt.tex.tex.Desc(); d.Width != 320 || d.Height != 240 {
		t.Fatalf("ratio target = %dx%d, want 320x240", d.Width, d.Height)
	}

	live := f.Device.TotalLive()
	h.ResizeBackbuffer(1000, 500)
	h.NewFrame()

	rt = h.res.lookup(10, slotRenderTarget).target
	if d := rt.tex.tex.Desc(); d.Width != 500 || d.Height != 250 {
		t.Errorf("ratio target after resize = %dx%d, want 500x250", d.Width, d.Height)
	}
	if got := f.Device.TotalLive(); got != live {
		t.Errorf("resize leaked: live %d, want %d", got, live)
	}
	if w, ht := h.BackbufferSize(); w != 1000 || ht != 500 || f.Swapchain.Resizes != 1 {
		t.Errorf("backbuffer = %dx%d after %d resizes", w, ht, f.Swapchain.Resizes)
	}
	depth := h.res.lookup(metadata.BackbufferDepth, slotRenderTarget).target
	if d := depth.tex.tex.Desc(); d.Width != 1000 || d.Height != 500 {
		t.Errorf("backbuffer depth = %dx%d", d.Width, d.Height)
	}

	h.ReleaseRenderTarget(10)
	if len(h.managed) != 0 {
		t.Error("released ratio target is still tracked")
	}
}

func TestReadBack(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	var calls int
	var gotPitch, gotBlock uint32
	cb := func(data []byte, rowPitch, depthPitch, blockSize uint32) {
		calls++
		gotPitch, gotBlock = rowPitch, blockSize
	}

	h.ReadBack(metadata.ResourceReadBackParams{Resource: metadata.BackbufferColour, BlockSize: 4, Callback: cb})
	if calls != 1 || gotPitch != 640*4 || gotBlock != 4 {
		t.Errorf("backbuffer read back: calls %d pitch %d block %d", calls, gotPitch, gotBlock)
	}
	if len(ctx.Resolves) != 1 || ctx.Copies != 1 {
		t.Errorf("backbuffer read back must resolve then copy: %d resolves %d copies", len(ctx.Resolves), ctx.Copies)
	}

	tcp := colourTarget(16, 16)
	tcp.CPUAccess = metadata.CPU_ACCESS_READ
	h.CreateRenderTarget(10, tcp)
	h.ReadBack(metadata.ResourceReadBackParams{Resource: 10, BlockSize: 4, Callback: cb})
	if calls != 2 || ctx.Copies != 2 {
		t.Errorf("target read back: calls %d copies %d", calls, ctx.Copies)
	}

	h.CreateRenderTarget(11, colourTarget(16, 16))
	h.ReadBack(metadata.ResourceReadBackParams{Resource: 11, BlockSize: 4, Callback: cb})
	if calls != 2 {
		t.Error("target without cpu access must not be read back")
	}

	h.CreateTexture(12, metadata.TextureCreationParams{
		Width: 4, Height: 4, NumMips: 1,
		Format:    metadata.TEX_FORMAT_RGBA8_UNORM,
		Usage:     metadata.USAGE_STAGING,
		CPUAccess: metadata.CPU_ACCESS_READ,
	})
	h.ReadBack(metadata.ResourceReadBackParams{Resource: 12, BlockSize: 4, Callback: cb})
	if calls != 3 || ctx.Copies != 2 {
		t.Errorf("staging texture read back: calls %d copies %d", calls, ctx.Copies)
	}
}
