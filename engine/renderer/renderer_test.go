package renderer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/assets/loaders"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
	"github.com/spaghettifunk/anima-hal/engine/renderer/hal"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type fakeShaders struct {
	root string
	code map[string][]byte
}

func (f *fakeShaders) Path(name string) string { return filepath.Join(f.root, name) }

func (f *fakeShaders) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	code, ok := f.code[name]
	if !ok {
		return nil, fmt.Errorf("asset not found: %s", name)
	}
	stage, err := loaders.ShaderStageFromPath(name)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{Name: name, Data: metadata.ShaderLoadParams{Type: stage, ByteCode: code}}, nil
}

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Application.Width = 64
	cfg.Application.Height = 32
	cfg.Application.SampleCount = 1
	cfg.Capture.Dir = t.TempDir()
	return cfg
}

func newTestRenderer(t *testing.T, cfg *core.Config, f *mock.Factory, opts Options) *Renderer {
	t.Helper()
	core.EventInitialize()
	t.Cleanup(func() { core.EventShutdown() })
	prev := core.SetFatalHandler(func(msg string) { panic(msg) })
	t.Cleanup(func() { core.SetFatalHandler(prev) })

	r, err := New(cfg, f, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Shutdown)
	return r
}

func TestParseRendererType(t *testing.T) {
	tests := []struct {
		name    string
		want    RendererType
		wantErr bool
	}{
		{"", Vulkan, false},
		{"vulkan", Vulkan, false},
		{"null", Null, false},
		{"metal", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRendererType(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRendererType(%q) = %v, %v", tt.name, got, err)
		}
	}
}

func TestNewFactory(t *testing.T) {
	if _, err := NewFactory(Vulkan, "test", nil); err == nil {
		t.Error("vulkan factory without a window should fail")
	}
	f, err := NewFactory(Null, "test", nil)
	if err != nil {
		t.Fatalf("NewFactory(Null) error = %v", err)
	}
	if _, ok := f.(*mock.Factory); !ok {
		t.Errorf("NewFactory(Null) = %T", f)
	}
}

func TestCaptureOnConfiguredFrame(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capture.Frame = 2
	r := newTestRenderer(t, cfg, mock.NewFactory(), Options{})

	for i := 0; i < 4; i++ {
		r.BeginFrame()
		if err := r.EndFrame(); err != nil {
			t.Fatalf("EndFrame() error = %v", err)
		}
	}
	// waits for the capture job
	r.Shutdown()

	captures := r.Captures()
	if len(captures) != 1 {
		t.Fatalf("Captures() = %v, want one file", captures)
	}
	if _, err := os.Stat(captures[0]); err != nil {
		t.Errorf("capture not written: %v", err)
	}
	if filepath.Dir(captures[0]) != cfg.Capture.Dir {
		t.Errorf("capture written to %s", captures[0])
	}
}

func TestResizeEvent(t *testing.T) {
	r := newTestRenderer(t, testConfig(t), mock.NewFactory(), Options{})

	data := core.EventContext{}
	data.Data.U32[0], data.Data.U32[1] = 100, 50
	core.EventFire(core.EVENT_CODE_RESIZED, nil, data)
	r.BeginFrame()

	var w, h uint32
	r.Do(func(hl *hal.HAL) { w, h = hl.BackbufferSize() })
	if w != 100 || h != 50 {
		t.Errorf("backbuffer = %dx%d after resize event, want 100x50", w, h)
	}
}

func TestShaderHotReload(t *testing.T) {
	f := mock.NewFactory()
	src := &fakeShaders{
		root: t.TempDir(),
		code: map[string][]byte{
			"quad.vert.spv": {1},
			"quad.frag.spv": {2},
		},
	}
	r := newTestRenderer(t, testConfig(t), f, Options{Shaders: src, Scratch: 100})

	if err := r.LoadShader("quad.vert.spv", 10); err != nil {
		t.Fatalf("LoadShader() error = %v", err)
	}
	if err := r.LoadShader("quad.frag.spv", 11); err != nil {
		t.Fatalf("LoadShader() error = %v", err)
	}
	r.Do(func(h *hal.HAL) {
		h.CreateInputLayout(12, metadata.InputLayoutCreationParams{Elements: []metadata.InputElement{{SemanticName: "POSITION", Format: metadata.VERTEX_FORMAT_FLOAT4}}})
		h.LinkShaderProgram(13, metadata.ShaderLinkParams{VertexShader: 10, PixelShader: 11, InputLayout: 12})
	})

	if err := r.LoadShader("missing.vert.spv", 14); err == nil {
		t.Error("loading a missing shader should fail")
	}

	src.code["quad.vert.spv"] = []byte{9, 9}
	data := core.EventContext{}
	data.Data.C[0] = src.Path("quad.vert.spv")
	core.EventFire(core.EVENT_CODE_ASSET_CHANGED, nil, data)

	ctx := f.Device.MockContext()
	r.Do(func(h *hal.HAL) { h.SetShaderProgram(13) })
	vs := ctx.Shaders[metadata.SHADER_TYPE_VS]
	if vs == nil || !bytes.Equal(vs.ByteCode, []byte{9, 9}) {
		t.Fatalf("program still binds the old vertex shader: %+v", vs)
	}

	// A broken reload keeps the shader that was there.
	delete(src.code, "quad.vert.spv")
	core.EventFire(core.EVENT_CODE_ASSET_CHANGED, nil, data)
	r.Do(func(h *hal.HAL) { h.SetShaderProgram(13) })
	if vs := ctx.Shaders[metadata.SHADER_TYPE_VS]; vs == nil || !bytes.Equal(vs.ByteCode, []byte{9, 9}) {
		t.Error("failed reload replaced the vertex shader")
	}
}

func TestUnwatchedAssetIgnored(t *testing.T) {
	src := &fakeShaders{root: t.TempDir(), code: map[string][]byte{}}
	r := newTestRenderer(t, testConfig(t), mock.NewFactory(), Options{Shaders: src, Scratch: 100})
	if r.reload(src.Path("other.frag.spv")) {
		t.Error("reload of an unwatched path reported handled")
	}
}
