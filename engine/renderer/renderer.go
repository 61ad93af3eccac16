package renderer

import (
	"fmt"
	"sync"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/jobs"
	"github.com/spaghettifunk/anima-hal/engine/renderer/capture"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/hal"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-hal/engine/renderer/overlay"
)

// ShaderSource loads compiled shaders by asset name. The asset manager
// satisfies it.
type ShaderSource interface {
	Path(name string) string
	LoadAsset(name string, params interface{}) (*metadata.Resource, error)
}

type Options struct {
	// Shaders enables hot reload of watched shaders.
	Shaders ShaderSource
	// Scratch is a handle the renderer may overwrite while reloading.
	Scratch metadata.Handle
	// Font enables the GPU timing HUD, uploaded to HUD each frame.
	Font *bmfont.BitmapFont
	HUD  metadata.Handle
	// HUDWidth and HUDHeight size the HUD texture, defaulting to 320x200.
	HUDWidth, HUDHeight int
}

type watchedShader struct {
	name       string
	handle     metadata.Handle
	shaderType metadata.ShaderType
}

// Renderer owns a HAL and serialises access to it. Events from the asset
// watcher arrive on another goroutine, so every HAL call goes through the
// renderer's mutex.
type Renderer struct {
	mutex sync.Mutex

	hal      *hal.HAL
	opts     Options
	jobs     *jobs.JobSystem
	recorder *capture.Recorder
	hud      *overlay.HUD

	shaders map[string]watchedShader
	results []metadata.GPUPerfResult
	closed  bool
}

func New(cfg *core.Config, factory driver.Factory, opts Options) (*Renderer, error) {
	h, err := hal.Initialise(hal.Params{
		Factory:          factory,
		Width:            cfg.Application.Width,
		Height:           cfg.Application.Height,
		SampleCount:      cfg.Application.SampleCount,
		VSync:            cfg.Application.VSync,
		Debug:            cfg.Renderer.Validation,
		MarkerBuffers:    int(cfg.Renderer.MarkerBuffers),
		InitialResources: cfg.Renderer.InitialResources,
	})
	if err != nil {
		return nil, err
	}

	js, err := jobs.NewJobSystem(2, 8)
	if err != nil {
		h.Shutdown()
		return nil, err
	}

	r := &Renderer{
		hal:      h,
		opts:     opts,
		jobs:     js,
		recorder: capture.NewRecorder(cfg.Capture.Dir, cfg.Capture.Frame),
		shaders:  make(map[string]watchedShader),
	}
	r.recorder.SetJobs(js)
	if opts.Font != nil {
		w, ht := opts.HUDWidth, opts.HUDHeight
		if w <= 0 || ht <= 0 {
			w, ht = 320, 200
		}
		r.hud = overlay.NewHUD(opts.Font, w, ht)
	}

	core.EventRegister(core.EVENT_CODE_RESIZED, r, r.onResized)
	if opts.Shaders != nil {
		core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, r, r.onAssetChanged)
	}

	info := h.Info()
	core.LogInfo("renderer %s by %s, capture session %s", info.Renderer, info.Vendor, r.recorder.Session())
	return r, nil
}

// Shutdown waits for pending captures and releases the HAL. Calling it
// again does nothing.
func (r *Renderer) Shutdown() {
	core.EventUnregister(core.EVENT_CODE_RESIZED, r, r.onResized)
	if r.opts.Shaders != nil {
		core.EventUnregister(core.EVENT_CODE_ASSET_CHANGED, r, r.onAssetChanged)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.jobs.Shutdown()
	r.hal.Shutdown()
}

// Do runs fn with exclusive use of the HAL.
func (r *Renderer) Do(fn func(h *hal.HAL)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	fn(r.hal)
}

func (r *Renderer) BeginFrame() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hal.NewFrame()
}

// EndFrame collects the perf results, refreshes the HUD, writes a capture
// when one is due and presents.
func (r *Renderer) EndFrame() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.results = append(r.results[:0], r.hal.PerfResults()...)
	if r.hud != nil {
		if len(r.results) > 0 {
			r.hud.Update(r.results, r.hal.GPUTotal())
		}
		r.hud.Upload(r.hal, r.opts.HUD)
	}

	var err error
	if frame := r.hal.Frame(); r.recorder.Due(frame) {
		_, err = r.recorder.Capture(r.hal, frame, r.hal.BackbufferFormat())
	}

	r.hal.Present()
	return err
}

func (r *Renderer) OnResize(width, height uint32) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hal.ResizeBackbuffer(width, height)
}

// PerfResults are the intervals gathered at the last EndFrame.
func (r *Renderer) PerfResults() []metadata.GPUPerfResult {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]metadata.GPUPerfResult(nil), r.results...)
}

// HUD is the texture handle the timing HUD is uploaded to, once at least
// one frame has ended.
func (r *Renderer) HUD() (metadata.Handle, bool) {
	return r.opts.HUD, r.hud != nil
}

// Captures lists the files frame capture has finished writing.
func (r *Renderer) Captures() []string {
	return r.recorder.Written()
}

// LoadShader loads the named shader asset into handle and watches it.
func (r *Renderer) LoadShader(name string, handle metadata.Handle) error {
	if r.opts.Shaders == nil {
		return fmt.Errorf("load shader %s without a shader source: %w", name, core.ErrInvalidArgument)
	}
	params, err := r.loadShader(name)
	if err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hal.LoadShader(handle, params)
	r.shaders[r.opts.Shaders.Path(name)] = watchedShader{name: name, handle: handle, shaderType: params.Type}
	return nil
}

func (r *Renderer) loadShader(name string) (metadata.ShaderLoadParams, error) {
	res, err := r.opts.Shaders.LoadAsset(name, nil)
	if err != nil {
		return metadata.ShaderLoadParams{}, err
	}
	params, ok := res.Data.(metadata.ShaderLoadParams)
	if !ok {
		return metadata.ShaderLoadParams{}, fmt.Errorf("%s is a %T, not a shader: %w", name, res.Data, core.ErrInvalidArgument)
	}
	return params, nil
}

func shaderResourceKind(t metadata.ShaderType) (metadata.ResourceKind, bool) {
	switch t {
	case metadata.SHADER_TYPE_VS:
		return metadata.RESOURCE_VERTEX_SHADER, true
	case metadata.SHADER_TYPE_PS:
		return metadata.RESOURCE_PIXEL_SHADER, true
	case metadata.SHADER_TYPE_CS:
		return metadata.RESOURCE_COMPUTE_SHADER, true
	}
	return 0, false
}

// reload builds the new shader at the scratch handle and swaps it in, so a
// shader that fails to load leaves the old one bound. Programs refer to
// shaders by handle and pick the new one up on their next bind.
func (r *Renderer) reload(path string) bool {
	r.mutex.Lock()
	w, ok := r.shaders[path]
	closed := r.closed
	r.mutex.Unlock()
	if !ok || closed {
		return false
	}
	kind, ok := shaderResourceKind(w.shaderType)
	if !ok {
		core.LogWarn("cannot hot reload %s shader %s", w.shaderType, path)
		return true
	}
	params, err := r.loadShader(w.name)
	if err != nil {
		core.LogError("reload %s: %s", path, err)
		return true
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return false
	}
	r.hal.LoadShader(r.opts.Scratch, params)
	r.hal.ReplaceResource(w.handle, r.opts.Scratch, kind)
	core.LogInfo("reloaded %s into %d", path, w.handle)
	return true
}

func (r *Renderer) onAssetChanged(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	r.reload(data.Data.C[0])
	// Other listeners may care about the same file.
	return false
}

func (r *Renderer) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	r.OnResize(data.Data.U32[0], data.Data.U32[1])
	return false
}
