package mock

import (
	"fmt"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
)

type Attempt struct {
	Type   driver.DriverType
	Levels []driver.FeatureLevel
}

// Factory hands out a single Device. Availability is scripted per driver type.
type Factory struct {
	Device *Device
	// Available lists the driver types that can create a device.
	Available map[driver.DriverType]bool
	// MaxLevel rejects any level list containing a level above it with
	// core.ErrInvalidArgument. Zero accepts everything.
	MaxLevel  driver.FeatureLevel
	Modern    bool
	Attempts  []Attempt
	Swapchain *Swapchain
}

func NewFactory() *Factory {
	return &Factory{
		Device:    NewDevice(),
		Available: map[driver.DriverType]bool{driver.DriverHardware: true},
		Modern:    true,
	}
}

func (f *Factory) CreateDevice(driverType driver.DriverType, levels []driver.FeatureLevel, debug bool) (driver.Device, driver.FeatureLevel, error) {
	f.Attempts = append(f.Attempts, Attempt{Type: driverType, Levels: append([]driver.FeatureLevel(nil), levels...)})
	if f.MaxLevel != 0 {
		for _, l := range levels {
			if l > f.MaxLevel {
				return nil, 0, fmt.Errorf("mock: level %d.%d: %w", l.Major(), l.Minor(), core.ErrInvalidArgument)
			}
		}
	}
	if !f.Available[driverType] {
		return nil, 0, fmt.Errorf("mock: %s: %w", driverType, core.ErrNoDevice)
	}
	return f.Device, levels[0], nil
}

func (f *Factory) SupportsModernSwapchain(dev driver.Device) bool { return f.Modern }

func (f *Factory) CreateSwapchain(dev driver.Device, desc driver.SwapchainDesc, modern bool) (driver.Swapchain, error) {
	f.Swapchain = &Swapchain{dev: f.Device, Desc: desc, Modern: modern}
	return f.Swapchain, nil
}
