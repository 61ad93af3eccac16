package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
	"github.com/spaghettifunk/anima-hal/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
	// Null records commands without a GPU. Used headless and in tests.
	Null
)

func (t RendererType) String() string {
	switch t {
	case Vulkan:
		return "vulkan"
	case Null:
		return "null"
	}
	return fmt.Sprintf("RendererType(%d)", t)
}

// ParseRendererType maps a config or command line name to a backend.
func ParseRendererType(name string) (RendererType, error) {
	switch name {
	case "", "vulkan":
		return Vulkan, nil
	case "null":
		return Null, nil
	}
	return 0, fmt.Errorf("renderer %q: %w", name, core.ErrUnsupported)
}

// NewFactory returns the driver factory for t. The window is only used by
// backends that present to a surface and may be nil for Null.
func NewFactory(t RendererType, appName string, window vulkan.SurfaceSource) (driver.Factory, error) {
	switch t {
	case Vulkan:
		if window == nil {
			return nil, fmt.Errorf("vulkan renderer without a window: %w", core.ErrInvalidArgument)
		}
		return vulkan.NewFactory(appName, window), nil
	case Null:
		return mock.NewFactory(), nil
	}
	return nil, fmt.Errorf("renderer %s: %w", t, core.ErrUnsupported)
}
