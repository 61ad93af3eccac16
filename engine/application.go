package engine

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Config holds the window size, renderer and capture settings.
	Config       *core.Config
	RendererType renderer.RendererType
	// AssetDir is watched for shader changes. Relative to the working directory.
	AssetDir string
	// MaxFrames stops the loop after that many frames, 0 runs until quit.
	MaxFrames uint64
}
