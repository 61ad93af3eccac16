package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`
[application]
name = "demo"
width = 640
height = 480
sample_count = 1

[renderer]
diagnostic_level = 1
marker_buffers = 3

[capture]
frame = 60
`)
	cfg := DefaultConfig()
	if err := ParseConfig(data, cfg); err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Application.Name != "demo" || cfg.Application.Width != 640 || cfg.Application.Height != 480 {
		t.Errorf("application = %+v", cfg.Application)
	}
	if cfg.Renderer.MarkerBuffers != 3 {
		t.Errorf("marker_buffers = %d, want 3", cfg.Renderer.MarkerBuffers)
	}
	// untouched keys keep their defaults
	if cfg.Renderer.ShaderDir != "assets/shaders" {
		t.Errorf("shader_dir = %q, want default", cfg.Renderer.ShaderDir)
	}
	if cfg.Capture.Frame != 60 || cfg.Capture.Dir != "captures" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
}

func TestParseConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero width", "[application]\nwidth = 0"},
		{"odd samples", "[application]\nsample_count = 3"},
		{"diagnostic level", "[renderer]\ndiagnostic_level = 9"},
		{"single marker buffer", "[renderer]\nmarker_buffers = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseConfig([]byte(tt.data), DefaultConfig())
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseConfig() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}
