package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationConfig struct {
	Name        string `toml:"name"`
	Width       uint32 `toml:"width"`
	Height      uint32 `toml:"height"`
	VSync       bool   `toml:"vsync"`
	SampleCount uint32 `toml:"sample_count"`
}

type RendererConfig struct {
	// DiagnosticLevel is 0 (silent), 1 (log) or 2 (fatal).
	DiagnosticLevel  int    `toml:"diagnostic_level"`
	Validation       bool   `toml:"validation"`
	MarkerBuffers    uint32 `toml:"marker_buffers"`
	InitialResources uint32 `toml:"initial_resources"`
	ShaderDir        string `toml:"shader_dir"`
	FontFile         string `toml:"font_file"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type CaptureConfig struct {
	Dir string `toml:"dir"`
	// Frame is the frame index to capture, 0 disables capture.
	Frame uint64 `toml:"frame"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	Log         LogConfig         `toml:"log"`
	Capture     CaptureConfig     `toml:"capture"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "anima-hal",
			Width:       1280,
			Height:      720,
			VSync:       true,
			SampleCount: 4,
		},
		Renderer: RendererConfig{
			DiagnosticLevel:  int(DiagnosticFatal),
			Validation:       false,
			MarkerBuffers:    5,
			InitialResources: 2048,
			ShaderDir:        "assets/shaders",
		},
		Log: LogConfig{
			Level: "info",
		},
		Capture: CaptureConfig{
			Dir: "captures",
		},
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			LogDebug("no config at %s, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("window size %dx%d: %w", c.Application.Width, c.Application.Height, ErrInvalidArgument)
	}
	switch c.Application.SampleCount {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("sample_count %d: %w", c.Application.SampleCount, ErrInvalidArgument)
	}
	if c.Renderer.DiagnosticLevel < int(DiagnosticSilent) || c.Renderer.DiagnosticLevel > int(DiagnosticFatal) {
		return fmt.Errorf("diagnostic_level %d: %w", c.Renderer.DiagnosticLevel, ErrInvalidArgument)
	}
	if c.Renderer.MarkerBuffers < 2 {
		return fmt.Errorf("marker_buffers %d: %w", c.Renderer.MarkerBuffers, ErrInvalidArgument)
	}
	return nil
}

// Apply pushes the logging and diagnostic settings into the core package.
func (c *Config) Apply() {
	SetLogLevel(ParseLogLevel(c.Log.Level))
	SetDiagnosticLevel(DiagnosticLevel(c.Renderer.DiagnosticLevel))
}
