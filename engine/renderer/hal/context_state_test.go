package hal

import (
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func TestClear(t *testing.T) {
	red := [4]float32{1, 0, 0, 1}
	tests := []struct {
		name        string
		colours     []metadata.Handle
		depth       metadata.Handle
		state       metadata.ClearState
		wantColours [][4]float32
		wantDepth   int
	}{
		{
			name:        "uniform colour and depth",
			colours:     []metadata.Handle{10, 11, 12},
			depth:       metadata.BackbufferDepth,
			state:       metadata.ClearState{R: 1, A: 1, Depth: 1, Flags: metadata.CLEAR_COLOUR_BUFFER | metadata.CLEAR_DEPTH_BUFFER},
			wantColours: [][4]float32{red, red, red},
			wantDepth:   1,
		},
		{
			name:        "uniform skips unbound slots",
			colours:     []metadata.Handle{10, metadata.NullHandle, 12},
			state:       metadata.ClearState{R: 1, A: 1, Flags: metadata.CLEAR_COLOUR_BUFFER},
			wantColours: [][4]float32{red, red},
		},
		{
			name:    "per target colours",
			colours: []metadata.Handle{10, 11, 12},
			state: metadata.ClearState{
				Flags: metadata.CLEAR_COLOUR_BUFFER,
				MRT: []metadata.MRTClear{
					{Type: metadata.CLEAR_F32, F: [4]float32{0, 1, 0, 1}},
					{Type: metadata.CLEAR_U32, U: [4]uint32{7, 0, 0, 1}},
				},
			},
			wantColours: [][4]float32{{0, 1, 0, 1}, {7, 0, 0, 1}},
		},
		{
			name:        "depth needs a bound depth target",
			colours:     []metadata.Handle{10},
			state:       metadata.ClearState{Flags: metadata.CLEAR_DEPTH_BUFFER | metadata.CLEAR_STENCIL_BUFFER},
			wantColours: nil,
			wantDepth:   0,
		},
		{
			name:      "stencil only",
			depth:     metadata.BackbufferDepth,
			state:     metadata.ClearState{Stencil: 3, Flags: metadata.CLEAR_STENCIL_BUFFER},
			wantDepth: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mock.NewFactory()
			h := newTestHAL(t, f, 1)
			ctx := f.Device.MockContext()

			for _, c := range []metadata.Handle{10, 11, 12} {
				h.CreateRenderTarget(c, colourTarget(32, 32))
			}
			h.CreateClearState(5, tt.state)
			h.SetTargets(tt.colours, tt.depth, 0, 0)
			ctx.ResetRecording()

			h.Clear(5, 0, 0)

			if len(ctx.ColourClears) != len(tt.wantColours) {
				t.Fatalf("colour clears = %d, want %d", len(ctx.ColourClears), len(tt.wantColours))
			}
			for i, want := range tt.wantColours {
				if ctx.ColourClears[i].RGBA != want {
					t.Errorf("clear %d = %v, want %v", i, ctx.ColourClears[i].RGBA, want)
				}
			}
			if len(ctx.DepthClears) != tt.wantDepth {
				t.Fatalf("depth clears = %d, want %d", len(ctx.DepthClears), tt.wantDepth)
			}
			if tt.wantDepth > 0 {
				want := tt.state.Flags & (metadata.CLEAR_DEPTH_BUFFER | metadata.CLEAR_STENCIL_BUFFER)
				if got := ctx.DepthClears[0]; got.Flags != want || got.Stencil != tt.state.Stencil {
					t.Errorf("depth clear = %+v", got)
				}
			}
		})
	}
}

func TestClearUsesMSAAViews(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	tcp := colourTarget(32, 32)
	tcp.SampleCount = 4
	h.CreateRenderTarget(10, tcp)
	h.CreateClearState(5, metadata.ClearState{Flags: metadata.CLEAR_COLOUR_BUFFER})

	h.SetTargets([]metadata.Handle{10}, metadata.InvalidHandle, 0, 0)
	h.Clear(5, 0, 0)

	msaa := h.res.at(10).target.viewsMSAA[0].(*mock.View)
	if len(ctx.Colours) != 1 || ctx.Colours[0] != msaa {
		t.Error("msaa target not bound through its msaa view")
	}
	if len(ctx.ColourClears) != 1 || ctx.ColourClears[0].View != msaa {
		t.Error("msaa target not cleared through its msaa view")
	}
	if h.cs.depth != metadata.NullHandle {
		t.Errorf("invalid depth handle recorded as %d", h.cs.depth)
	}
}

func TestSetTargetsFaces(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	cube := depthTarget(32, 32)
	cube.Collection = metadata.TEXTURE_COLLECTION_CUBE
	cube.NumArrays = 6
	h.CreateRenderTarget(10, cube)

	h.SetTargets(nil, 10, 0, 4)
	if ctx.Depth == nil || ctx.Depth.Desc.FirstSlice != 4 {
		t.Errorf("depth face 4 not bound: %+v", ctx.Depth)
	}
	if len(ctx.Colours) != 0 {
		t.Errorf("colours bound for a depth only pass: %d", len(ctx.Colours))
	}

	// out of range faces log and bind nothing
	h.SetTargets(nil, 10, 0, 9)
	if ctx.Depth != nil {
		t.Error("face past the array bound something")
	}
}

func TestStencilRef(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.SetStencilRef(3)
	if ctx.DepthStencil != nil || ctx.StencilRef != 0 {
		t.Error("stencil ref applied without a depth stencil state")
	}

	h.CreateDepthStencilState(10, metadata.DepthStencilCreationParams{StencilEnable: true, StencilReadMask: 0xff})
	h.SetDepthStencilState(10)
	if ctx.DepthStencil == nil || ctx.StencilRef != 3 {
		t.Errorf("state %v ref %d, want the state with ref 3", ctx.DepthStencil, ctx.StencilRef)
	}

	h.SetStencilRef(7)
	if ctx.StencilRef != 7 {
		t.Errorf("stencil ref = %d, want 7", ctx.StencilRef)
	}

	h.ReleaseDepthStencilState(10)
	if h.cs.depthStencil != metadata.NullHandle {
		t.Error("released state still recorded as bound")
	}
}

func TestTooManyTargetsIsFatal(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	expectFatal(t, func() {
		h.SetTargets(make([]metadata.Handle, metadata.MaxMRT+1), metadata.NullHandle, 0, 0)
	})
}

func TestSetTargetsKeepsSlots(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	ctx := f.Device.MockContext()

	h.CreateRenderTarget(10, colourTarget(32, 32))
	h.CreateRenderTarget(11, colourTarget(32, 32))
	view := func(handle metadata.Handle) *mock.View {
		return h.res.lookup(handle, slotRenderTarget).target.writeView(0).(*mock.View)
	}

	tests := []struct {
		name    string
		colours []metadata.Handle
		want    []*mock.View
	}{
		{"null then target", []metadata.Handle{metadata.NullHandle, 10}, []*mock.View{nil, view(10)}},
		{"invalid in the middle", []metadata.Handle{10, metadata.InvalidHandle, 11}, []*mock.View{view(10), nil, view(11)}},
		{"not a render target", []metadata.Handle{99, 11}, []*mock.View{nil, view(11)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.SetTargets(tt.colours, metadata.NullHandle, 0, 0)
			if len(ctx.Colours) != len(tt.want) {
				t.Fatalf("bound %d colour views, want %d", len(ctx.Colours), len(tt.want))
			}
			for i, want := range tt.want {
				if ctx.Colours[i] != want {
					t.Errorf("slot %d = %v, want %v", i, ctx.Colours[i], want)
				}
			}
			if h.cs.numColours != uint32(len(tt.colours)) {
				t.Errorf("tracked %d colours, want %d", h.cs.numColours, len(tt.colours))
			}
		})
	}
}
