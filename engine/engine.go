package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/anima-hal/engine/assets"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/platform"
	"github.com/spaghettifunk/anima-hal/engine/renderer"
	"github.com/spaghettifunk/anima-hal/engine/renderer/hal"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-hal/engine/renderer/vulkan"
)

// Handles the engine keeps for itself. Games allocate from FirstGameHandle.
const (
	HUDTexture      = metadata.FirstUserHandle
	ReloadScratch   = metadata.FirstUserHandle + 1
	FirstGameHandle = metadata.FirstUserHandle + 2
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	width        uint32
	height       uint32
	handles      *core.HandleAllocator
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	appConfig := g.ApplicationConfig
	if appConfig.Config == nil {
		appConfig.Config = core.DefaultConfig()
	}
	if err := appConfig.Config.Validate(); err != nil {
		return nil, err
	}
	appConfig.Config.Apply()

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	var p *platform.Platform
	if appConfig.RendererType == renderer.Vulkan {
		if p, err = platform.New(); err != nil {
			return nil, err
		}
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		handles:      core.NewHandleAllocator(uint32(FirstGameHandle), 256),
		platform:     p,
		assetManager: am,
		isRunning:    true,
		width:        appConfig.Config.Application.Width,
		height:       appConfig.Config.Application.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	appConfig := e.gameInstance.ApplicationConfig
	cfg := appConfig.Config

	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	// the surface source stays a nil interface for the null backend
	var window vulkan.SurfaceSource
	if e.platform != nil {
		if err := e.platform.Startup(cfg.Application.Name, appConfig.StartPosX, appConfig.StartPosY, e.width, e.height); err != nil {
			return err
		}
		window = e.platform
	}

	assetDir := appConfig.AssetDir
	if assetDir == "" {
		assetDir = "assets"
	}
	if !filepath.IsAbs(assetDir) {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		assetDir = filepath.Join(wd, assetDir)
	}
	if err := e.assetManager.Initialize(assetDir); err != nil {
		return err
	}

	opts := renderer.Options{
		Shaders: e.assetManager,
		Scratch: ReloadScratch,
		HUD:     HUDTexture,
	}
	if cfg.Renderer.FontFile != "" {
		font, err := e.loadFont(cfg.Renderer.FontFile)
		if err != nil {
			core.LogWarn("gpu timing hud disabled: %s", err)
		} else {
			opts.Font = font
		}
	}

	factory, err := renderer.NewFactory(appConfig.RendererType, cfg.Application.Name, window)
	if err != nil {
		return err
	}
	if e.renderer, err = renderer.New(cfg, factory, opts); err != nil {
		return err
	}

	if err := e.gameInstance.FnInitialize(e); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) loadFont(name string) (*bmfont.BitmapFont, error) {
	res, err := e.assetManager.LoadAsset(name, nil)
	if err != nil {
		return nil, err
	}
	font, ok := res.Data.(*bmfont.BitmapFont)
	if !ok {
		return nil, fmt.Errorf("%s is not a bitmap font: %w", name, core.ErrInvalidArgument)
	}
	return font, nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames
	var frames uint64

	for e.isRunning {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}

		e.renderer.BeginFrame()
		var renderErr error
		e.renderer.Do(func(h *hal.HAL) {
			renderErr = e.gameInstance.FnRender(h, delta)
		})
		if renderErr != nil {
			core.LogError("game render failed, shutting down: %s", renderErr)
			return renderErr
		}
		if err := e.renderer.EndFrame(); err != nil {
			core.LogWarn("end of frame: %s", err)
		}

		core.MetricsUpdate(delta)
		e.lastTime = currentTime
		frames++
		if frames%600 == 0 {
			core.LogDebug("%.0f fps, cpu %.2f ms, gpu %.2f ms", core.MetricsFPS(), core.MetricsFrameTime(), core.MetricsGPUFrameTime())
		}
		if maxFrames != 0 && frames >= maxFrames {
			e.isRunning = false
		}
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.renderer != nil {
		if fn := e.gameInstance.FnShutdown; fn != nil {
			e.renderer.Do(func(h *hal.HAL) {
				errs = append(errs, fn(h))
			})
		}
		e.renderer.Shutdown()
	}
	e.assetManager.Shutdown()
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	errs = append(errs, core.EventShutdown())
	return errors.Join(errs...)
}

// Renderer is available to the game from FnInitialize on.
func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

// AcquireHandle reserves a resource handle for the game.
func (e *Engine) AcquireHandle() metadata.Handle {
	return metadata.Handle(e.handles.Acquire())
}

func (e *Engine) ReleaseHandle(h metadata.Handle) error {
	return e.handles.Release(uint32(h))
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	core.LogDebug("key %d pressed", data.Data.U16[0])
	return false
}

// onResized suspends the loop while the window is minimised. The renderer
// listens for the same event and resizes the backbuffer itself.
func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if fn := e.gameInstance.FnOnResize; fn != nil {
		if err := fn(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}
