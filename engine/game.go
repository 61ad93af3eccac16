package engine

import (
	"github.com/spaghettifunk/anima-hal/engine/renderer/hal"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error
type Update func(deltaTime float64) error

// Render records the frame. It runs between the renderer's BeginFrame and
// EndFrame with exclusive use of the HAL.
type Render func(h *hal.HAL, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func(h *hal.HAL) error
