// Package hal executes platform neutral resource, state and draw commands
// against a driver.Device. Callers choose the handle of every resource they
// create; the HAL stores them in a growable table indexed by handle.
//
// A HAL is not safe for concurrent use. Commands run synchronously in the
// order they are issued.
package hal

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-hal/engine/containers"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

const (
	DefaultMarkerBuffers    = 5
	DefaultInitialResources = 2048
	defaultResultCapacity   = 256
)

type Params struct {
	Factory     driver.Factory
	Width       uint32
	Height      uint32
	SampleCount uint32
	VSync       bool
	// Debug asks the driver for its validation layer.
	Debug bool
	// MarkerBuffers is the number of frames perf markers can stay in flight.
	MarkerBuffers    int
	InitialResources uint32
	// ResultCapacity bounds the perf results kept for PerfResults.
	ResultCapacity int
}

type HAL struct {
	factory      driver.Factory
	dev          driver.Device
	ctx          driver.Context
	sc           driver.Swapchain
	driverType   driver.DriverType
	featureLevel driver.FeatureLevel

	res  resourceTable
	cs   contextState
	perf *perfMarkerSet

	frame       uint64
	width       uint32
	height      uint32
	sampleCount uint32
	vsync       bool
	resize      struct {
		pending       bool
		width, height uint32
	}

	// managed ratio targets are rebuilt whenever the backbuffer changes size.
	managed map[metadata.Handle]metadata.TextureCreationParams

	results  *containers.RingQueue[metadata.GPUPerfResult]
	gpuTotal atomic.Uint64

	info metadata.RendererInfo
	caps metadata.Caps

	// depth disabled state forced while a stream out shader is bound
	soDepthState driver.DepthStencilState
}

// Initialise negotiates a device and swapchain and creates the backbuffer
// targets at BackbufferColour and BackbufferDepth.
func Initialise(params Params) (*HAL, error) {
	if params.Factory == nil {
		return nil, fmt.Errorf("hal: no driver factory: %w", core.ErrInvalidArgument)
	}
	if params.Width == 0 || params.Height == 0 {
		return nil, fmt.Errorf("hal: window size %dx%d: %w", params.Width, params.Height, core.ErrInvalidArgument)
	}
	if params.SampleCount == 0 {
		params.SampleCount = 1
	}
	if params.MarkerBuffers <= 0 {
		params.MarkerBuffers = DefaultMarkerBuffers
	}
	if params.InitialResources == 0 {
		params.InitialResources = DefaultInitialResources
	}
	if params.ResultCapacity <= 0 {
		params.ResultCapacity = defaultResultCapacity
	}

	if err := core.MetricsInitialize(); err != nil {
		return nil, err
	}

	h := &HAL{
		factory:     params.Factory,
		res:         newResourceTable(params.InitialResources),
		width:       params.Width,
		height:      params.Height,
		sampleCount: params.SampleCount,
		vsync:       params.VSync,
		managed:     make(map[metadata.Handle]metadata.TextureCreationParams),
		results:     containers.NewRingQueue[metadata.GPUPerfResult](params.ResultCapacity),
	}

	if err := h.createDevice(params.Debug); err != nil {
		return nil, err
	}
	if err := h.createSwapchain(); err != nil {
		h.dev.Release()
		return nil, err
	}

	h.createRTVs(metadata.BackbufferColour, metadata.BackbufferDepth)
	h.perf = newPerfMarkerSet(h.dev, h.ctx, params.MarkerBuffers, h.publishPerfResult)

	h.caps = h.dev.Caps()
	h.info = h.dev.Info()
	h.info.Caps = h.caps

	core.LogInfo("renderer initialised: %s (%s) api %s, %d.%d, %dx%d x%d",
		h.info.Renderer, h.driverType, h.info.APIVersion,
		h.featureLevel.Major(), h.featureLevel.Minor(), h.width, h.height, h.sampleCount)
	return h, nil
}

// Shutdown releases every resource still in the table and the device.
func (h *HAL) Shutdown() {
	h.ctx.SetRenderTargets(nil, nil)
	h.perf.release()
	h.res.releaseAll()
	releaseObject(&h.soDepthState)
	h.managed = make(map[metadata.Handle]metadata.TextureCreationParams)
	if h.sc != nil {
		h.sc.Release()
		h.sc = nil
	}
	h.dev.Release()
	core.LogInfo("renderer shutdown after %d frames", h.frame)
}

// NewFrame applies a pending resize and binds the backbuffer.
func (h *HAL) NewFrame() {
	if h.resize.pending {
		h.resizeBackbuffer(h.resize.width, h.resize.height)
		h.resize.pending = false
	}
	h.cs.bindBackbuffer()
	h.SetTargets([]metadata.Handle{h.cs.backbufferColour}, h.cs.backbufferDepth, 0, 0)
}

// Present shows the backbuffer and closes the frame's perf markers.
func (h *HAL) Present() {
	err := h.sc.Present(h.vsync)
	core.CheckCall(err, "present frame %d", h.frame)

	if h.frame > 0 {
		h.PopPerfMarker()
	}
	h.perf.gather(h.frame)
	h.frame++
	h.PushPerfMarker("frame")
}

// ResizeBackbuffer takes effect at the start of the next frame.
func (h *HAL) ResizeBackbuffer(width, height uint32) {
	if width == 0 || height == 0 {
		core.LogWarn("ignoring backbuffer resize to %dx%d", width, height)
		return
	}
	h.resize.pending = true
	h.resize.width = width
	h.resize.height = height
}

func (h *HAL) resizeBackbuffer(width, height uint32) {
	h.ctx.SetRenderTargets(nil, nil)
	h.cs.unbind()

	for _, bb := range []metadata.Handle{h.cs.backbufferColour, h.cs.backbufferDepth} {
		if s := h.res.at(bb); s != nil {
			s.release()
		}
	}

	if !core.CheckCall(h.sc.Resize(width, height), "resize swapchain to %dx%d", width, height) {
		return
	}
	h.width, h.height = h.sc.Size()
	h.createRTVs(h.cs.backbufferColour, h.cs.backbufferDepth)
	h.rebuildManagedTargets()
	core.LogDebug("backbuffer resized to %dx%d", h.width, h.height)
}

func (h *HAL) PushPerfMarker(name string) {
	h.perf.push(h.frame, name)
}

func (h *HAL) PopPerfMarker() {
	h.perf.pop(h.frame)
}

func (h *HAL) publishPerfResult(index int, r metadata.GPUPerfResult) {
	if index == 0 {
		h.gpuTotal.Store(r.Elapsed)
	}
	core.MetricsGPUUpdate(r.Name, r.Depth, r.Elapsed)
	h.results.Push(r)
}

// PerfResults drains the completed perf intervals, oldest first.
func (h *HAL) PerfResults() []metadata.GPUPerfResult {
	out := make([]metadata.GPUPerfResult, 0, h.results.Len())
	for !h.results.IsEmpty() {
		r, err := h.results.Dequeue()
		if err != nil {
			break
		}
		out = append(out, r)
	}
	return out
}

// GPUTotal is the gpu time in nanoseconds of the last frame read back.
func (h *HAL) GPUTotal() uint64 {
	return h.gpuTotal.Load()
}

func (h *HAL) Info() metadata.RendererInfo { return h.info }

func (h *HAL) Caps() metadata.Caps { return h.caps }

// Frame is the number of frames presented.
func (h *HAL) Frame() uint64 { return h.frame }

// BackbufferSize is the current size of the presentation surface.
func (h *HAL) BackbufferSize() (uint32, uint32) { return h.width, h.height }

// BackbufferFormat is the format read backs of BackbufferColour arrive in.
func (h *HAL) BackbufferFormat() metadata.TextureFormat {
	if s := h.res.at(metadata.BackbufferColour); s != nil && s.kind == slotRenderTarget {
		return s.target.format
	}
	return metadata.TEX_FORMAT_RGBA8_UNORM
}
