package vulkan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
)

// SurfaceSource is the window the swapchain presents to.
type SurfaceSource interface {
	GetRequiredExtensionNames() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (width, height uint32)
}

// Factory implements driver.Factory on top of the Vulkan loader glfw found.
type Factory struct {
	appName string
	window  SurfaceSource

	once    sync.Once
	initErr error
}

func NewFactory(appName string, window SurfaceSource) *Factory {
	return &Factory{appName: appName, window: window}
}

func (f *Factory) init() error {
	f.once.Do(func() {
		procAddr := glfw.GetVulkanGetInstanceProcAddress()
		if procAddr == nil {
			f.initErr = fmt.Errorf("vulkan loader not found: %w", core.ErrNoDevice)
			return
		}
		vk.SetGetInstanceProcAddr(procAddr)
		if err := vk.Init(); err != nil {
			f.initErr = fmt.Errorf("initialize vulkan: %w", errors.Join(core.ErrNoDevice, err))
		}
	})
	return f.initErr
}

// CreateDevice tries levels highest first on a fresh instance each. A loader
// that does not know the first level makes the whole call fail with
// core.ErrInvalidArgument.
func (f *Factory) CreateDevice(driverType driver.DriverType, levels []driver.FeatureLevel, debug bool) (driver.Device, driver.FeatureLevel, error) {
	if err := f.init(); err != nil {
		return nil, 0, err
	}
	if len(levels) == 0 {
		return nil, 0, fmt.Errorf("no feature levels requested: %w", core.ErrInvalidArgument)
	}

	var lastErr error
	for i, level := range levels {
		dev, err := f.createDevice(driverType, level, debug)
		if err == nil {
			core.LogInfo("Vulkan %s device created at feature level %d.%d.", driverType, level.Major(), level.Minor())
			return dev, level, nil
		}
		if i == 0 && errors.Is(err, core.ErrInvalidArgument) {
			return nil, 0, err
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

func (f *Factory) createDevice(driverType driver.DriverType, level driver.FeatureLevel, debug bool) (*VulkanDevice, error) {
	apiVersion := toApiVersion(level)
	instance, err := NewVulkanInstance(f.appName, apiVersion, f.window.GetRequiredExtensionNames(), debug)
	if err != nil {
		return nil, err
	}
	if instance.Surface, err = f.window.CreateSurface(instance.Instance); err != nil {
		instance.Destroy()
		return nil, err
	}

	pd, err := SelectPhysicalDevice(instance.Instance, instance.Surface, driverType)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	if pd.properties.ApiVersion < apiVersion {
		instance.Destroy()
		return nil, fmt.Errorf("device api %d.%d below feature level %d.%d: %w",
			vk.Version(pd.properties.ApiVersion).Major(), vk.Version(pd.properties.ApiVersion).Minor(),
			level.Major(), level.Minor(), core.ErrNoDevice)
	}
	// The device owns the instance from here on.
	return DeviceCreate(instance, pd, level)
}

// SupportsModernSwapchain is true when the surface can present without
// waiting for vertical blank.
func (f *Factory) SupportsModernSwapchain(dev driver.Device) bool {
	device, ok := dev.(*VulkanDevice)
	if !ok {
		return false
	}
	for _, mode := range device.SwapchainSupport.PresentModes {
		if mode == vk.PresentModeMailbox || mode == vk.PresentModeImmediate {
			return true
		}
	}
	return false
}

func (f *Factory) CreateSwapchain(dev driver.Device, desc driver.SwapchainDesc, modern bool) (driver.Swapchain, error) {
	device, ok := dev.(*VulkanDevice)
	if !ok {
		return nil, fmt.Errorf("swapchain for %T: %w", dev, core.ErrInvalidArgument)
	}
	if w, h := f.window.FramebufferSize(); w > 0 && h > 0 {
		desc.Width, desc.Height = w, h
	}
	return newSwapchain(device, desc, modern)
}
