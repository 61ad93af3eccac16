package hal

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

var driverTypes = []driver.DriverType{
	driver.DriverHardware,
	driver.DriverWarp,
	driver.DriverReference,
}

// createDevice walks the driver types in order. A type that does not know
// the highest feature level is retried without it.
func (h *HAL) createDevice(debug bool) error {
	var lastErr error
	for _, dt := range driverTypes {
		levels := driver.FeatureLevels
		dev, level, err := h.factory.CreateDevice(dt, levels, debug)
		if errors.Is(err, core.ErrInvalidArgument) {
			core.LogDebug("%s driver rejected feature level %d.%d, retrying without it", dt, levels[0].Major(), levels[0].Minor())
			dev, level, err = h.factory.CreateDevice(dt, levels[1:], debug)
		}
		if err != nil {
			lastErr = err
			core.LogDebug("%s driver unavailable: %s", dt, err)
			continue
		}
		h.dev = dev
		h.ctx = dev.Context()
		h.driverType = dt
		h.featureLevel = level
		return nil
	}
	return fmt.Errorf("hal: no driver type could create a device: %w", errors.Join(core.ErrNoDevice, lastErr))
}

func (h *HAL) createSwapchain() error {
	desc := driver.SwapchainDesc{
		Width:       h.width,
		Height:      h.height,
		Format:      driver.FormatRGBA8Unorm,
		SampleCount: h.sampleCount,
		BufferCount: 2,
		VSync:       h.vsync,
	}
	modern := h.factory.SupportsModernSwapchain(h.dev)
	if !modern {
		desc.BufferCount = 1
		desc.RefreshRate = 60
	}
	sc, err := h.factory.CreateSwapchain(h.dev, desc, modern)
	if err != nil {
		return fmt.Errorf("hal: create swapchain: %w", err)
	}
	h.sc = sc
	h.width, h.height = sc.Size()
	return nil
}

// createRTVs makes the backbuffer colour and depth targets and binds them.
func (h *HAL) createRTVs(colour, depth metadata.Handle) {
	core.Assert(colour == metadata.BackbufferColour, "backbuffer colour must be handle %d, got %d", metadata.BackbufferColour, colour)
	core.Assert(depth == metadata.BackbufferDepth, "backbuffer depth must be handle %d, got %d", metadata.BackbufferDepth, depth)

	h.res.grow(depth)
	ms := h.sc.SampleCount() > 1
	w, ht := h.sc.Size()
	format := h.sc.Format()

	crt := &renderTarget{
		nativeFormat:        format,
		format:              metadata.TEX_FORMAT_RGBA8_UNORM,
		msaaResolveReadback: true,
		numArrays:           1,
		numMips:             1,
	}
	if format == driver.FormatBGRA8Unorm {
		crt.format = metadata.TEX_FORMAT_BGRA8_UNORM
	}
	s := h.res.at(colour)
	s.release()
	s.kind = slotRenderTarget
	s.target = crt

	bb, err := h.sc.Backbuffer()
	if core.CheckCall(err, "get swapchain backbuffer") {
		crt.tex.tex = bb
		dim := driver.ViewDimension2D
		if ms {
			dim = driver.ViewDimension2DMS
		}
		v, err := h.dev.CreateView(bb, driver.ViewDesc{Kind: driver.ViewRenderTarget, Format: format, Dimension: dim, MipLevels: 1})
		if core.CheckCall(err, "create backbuffer view") {
			crt.views = []driver.View{v}
		}
	}

	rb := driver.TextureDesc{
		Dimension:        driver.Texture2D,
		Width:            w,
		Height:           ht,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleCount:      1,
		Format:           format,
		Usage:            metadata.USAGE_DEFAULT,
	}
	crt.texResolve, err = h.dev.CreateTexture(rb)
	core.CheckCall(err, "create backbuffer resolve texture")

	rb.Usage = metadata.USAGE_STAGING
	rb.CPUAccess = metadata.CPU_ACCESS_READ
	crt.texReadBack, err = h.dev.CreateTexture(rb)
	core.CheckCall(err, "create backbuffer read back texture")

	drt := &renderTarget{
		depth:        true,
		format:       metadata.TEX_FORMAT_D24_UNORM_S8_UINT,
		nativeFormat: driver.FormatD24UnormS8Uint,
		numArrays:    1,
		numMips:      1,
	}
	s = h.res.at(depth)
	s.release()
	s.kind = slotRenderTarget
	s.target = drt

	dtex, err := h.dev.CreateTexture(driver.TextureDesc{
		Dimension:        driver.Texture2D,
		Width:            w,
		Height:           ht,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleCount:      h.sc.SampleCount(),
		Format:           driver.FormatD24UnormS8Uint,
		Usage:            metadata.USAGE_DEFAULT,
		BindFlags:        metadata.BIND_DEPTH_STENCIL,
	})
	if core.CheckCall(err, "create backbuffer depth texture") {
		drt.tex.tex = dtex
		dim := driver.ViewDimension2D
		if ms {
			dim = driver.ViewDimension2DMS
		}
		v, err := h.dev.CreateView(dtex, driver.ViewDesc{Kind: driver.ViewDepthStencil, Format: driver.FormatD24UnormS8Uint, Dimension: dim, MipLevels: 1})
		if core.CheckCall(err, "create backbuffer depth view") {
			drt.views = []driver.View{v}
		}
	}

	h.cs.backbufferColour = colour
	h.cs.backbufferDepth = depth
	h.cs.bindBackbuffer()
	h.ctx.SetRenderTargets(crt.views, nil)
}
