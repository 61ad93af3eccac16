package engine

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer"
	"github.com/spaghettifunk/anima-hal/engine/renderer/hal"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func writeSpirv(t *testing.T, path string) {
	t.Helper()
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, 0x07230203)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHeadlessRun(t *testing.T) {
	dir := t.TempDir()
	writeSpirv(t, filepath.Join(dir, "quad.vert.spv"))

	cfg := core.DefaultConfig()
	cfg.Application.Width, cfg.Application.Height = 64, 64
	cfg.Application.SampleCount = 1
	cfg.Capture.Dir = filepath.Join(dir, "captures")
	cfg.Capture.Frame = 1

	var rendered, updated int
	var vs metadata.Handle
	g := &Game{
		ApplicationConfig: &ApplicationConfig{
			Config:       cfg,
			RendererType: renderer.Null,
			AssetDir:     dir,
			MaxFrames:    3,
		},
		FnInitialize: func(e *Engine) error {
			vs = e.AcquireHandle()
			return e.Renderer().LoadShader("quad.vert.spv", vs)
		},
		FnUpdate: func(deltaTime float64) error {
			updated++
			return nil
		},
		FnRender: func(h *hal.HAL, deltaTime float64) error {
			rendered++
			h.PushPerfMarker("test")
			h.PopPerfMarker()
			return nil
		},
	}

	e, err := New(g)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if vs < FirstGameHandle {
		t.Errorf("game handle %d overlaps the engine's", vs)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r := e.Renderer()
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if rendered != 3 || updated != 3 {
		t.Errorf("rendered %d, updated %d frames, want 3", rendered, updated)
	}
	if files := r.Captures(); len(files) != 1 {
		t.Errorf("Captures() = %v, want one", files)
	}
}

func TestResizeSuspends(t *testing.T) {
	g := &Game{ApplicationConfig: &ApplicationConfig{Config: core.DefaultConfig(), RendererType: renderer.Null}}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	defer e.assetManager.Shutdown()

	var resized [2]uint32
	g.FnOnResize = func(width, height uint32) error {
		resized = [2]uint32{width, height}
		return nil
	}

	data := core.EventContext{}
	e.onResized(core.EVENT_CODE_RESIZED, nil, e, data)
	if !e.isSuspended {
		t.Error("a zero size did not suspend")
	}
	data.Data.U32[0], data.Data.U32[1] = 800, 600
	e.onResized(core.EVENT_CODE_RESIZED, nil, e, data)
	if e.isSuspended || resized != [2]uint32{800, 600} {
		t.Errorf("suspended %v, resized to %v", e.isSuspended, resized)
	}
}
