/*
Testbed for the HAL: draws a textured quad into an offscreen target and
presents it with the GPU timing HUD on top.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-hal/engine"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer"
	"github.com/spaghettifunk/anima-hal/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "TOML configuration file")
	rendererName := flag.String("renderer", "vulkan", "backend: vulkan or null")
	frames := flag.Uint64("frames", 0, "stop after this many frames, 0 runs until the window closes")
	captureFrame := flag.Uint64("capture", 0, "write this frame to the capture directory")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("config: %s", err)
	}
	if *captureFrame != 0 {
		cfg.Capture.Frame = *captureFrame
	}
	rendererType, err := renderer.ParseRendererType(*rendererName)
	if err != nil {
		core.LogFatal(err.Error())
	}

	tb := testbed.NewTestGame(&engine.ApplicationConfig{
		StartPosX:    100,
		StartPosY:    100,
		Config:       cfg,
		RendererType: rendererType,
		MaxFrames:    *frames,
	})

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
