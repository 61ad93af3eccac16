package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func (h *HAL) CreateSampler(handle metadata.Handle, params metadata.SamplerCreationParams) {
	smp, err := h.dev.CreateSampler(params)
	if !core.CheckCall(err, "create sampler %d", handle) {
		return
	}
	h.res.prepare(handle, slotSampler).sampler = smp
}

func (h *HAL) ReleaseSampler(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotSampler); s != nil {
		s.release()
	}
}

func (h *HAL) CreateRasterState(handle metadata.Handle, params metadata.RasterStateCreationParams) {
	rs, err := h.dev.CreateRasterState(params)
	if !core.CheckCall(err, "create raster state %d", handle) {
		return
	}
	h.res.prepare(handle, slotRasterState).raster = rs
}

func (h *HAL) SetRasterState(handle metadata.Handle) {
	var rs driver.RasterState
	if s := h.res.lookup(handle, slotRasterState); s != nil {
		rs = s.raster
	}
	h.ctx.SetRasterState(rs)
}

func (h *HAL) ReleaseRasterState(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotRasterState); s != nil {
		s.release()
	}
}

// CreateBlendState clamps every write mask to the four colour channels.
func (h *HAL) CreateBlendState(handle metadata.Handle, params metadata.BlendCreationParams) {
	core.Assert(len(params.RenderTargets) <= metadata.MaxMRT, "blend state %d has %d targets", handle, len(params.RenderTargets))

	targets := make([]metadata.RenderTargetBlend, len(params.RenderTargets))
	for i, rt := range params.RenderTargets {
		rt.WriteMask &= 0x0f
		targets[i] = rt
	}
	params.RenderTargets = targets

	bs, err := h.dev.CreateBlendState(params)
	if !core.CheckCall(err, "create blend state %d", handle) {
		return
	}
	h.res.prepare(handle, slotBlendState).blend = bs
}

func (h *HAL) SetBlendState(handle metadata.Handle) {
	var bs driver.BlendState
	if s := h.res.lookup(handle, slotBlendState); s != nil {
		bs = s.blend
	}
	h.ctx.SetBlendState(bs)
}

func (h *HAL) ReleaseBlendState(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotBlendState); s != nil {
		s.release()
	}
}

func (h *HAL) CreateDepthStencilState(handle metadata.Handle, params metadata.DepthStencilCreationParams) {
	dss, err := h.dev.CreateDepthStencilState(params)
	if !core.CheckCall(err, "create depth stencil state %d", handle) {
		return
	}
	h.res.prepare(handle, slotDepthStencilState).depthStencil = dss
}

func (h *HAL) ReleaseDepthStencilState(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotDepthStencilState); s != nil {
		s.release()
	}
	if h.cs.depthStencil == handle {
		h.cs.depthStencil = metadata.NullHandle
	}
}

func (h *HAL) SetViewport(vp metadata.Viewport) {
	h.ctx.SetViewport(vp)
}

func (h *HAL) SetScissorRect(r metadata.Rect) {
	h.ctx.SetScissorRect(r)
}
