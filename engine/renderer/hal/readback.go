package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// ReadBack copies a render target, or maps a cpu readable texture, and
// hands the mapped data to the callback. It blocks until the gpu is done.
func (h *HAL) ReadBack(params metadata.ResourceReadBackParams) {
	core.Assert(params.Callback != nil, "read back of %d without a callback", params.Resource)

	s := h.res.at(params.Resource)
	switch {
	case s != nil && s.kind == slotRenderTarget:
		h.readBackTarget(params, s.target)
	case s != nil && s.kind == slotTexture:
		h.mapAndCall(s.texture.tex, params)
	default:
		core.LogError("handle %d cannot be read back", params.Resource)
	}
}

func (h *HAL) readBackTarget(params metadata.ResourceReadBackParams, rt *renderTarget) {
	if rt.texReadBack == nil {
		core.LogError("render target %d was not created with cpu read access", params.Resource)
		return
	}

	switch {
	case rt.msaaResolveReadback:
		if rt.tex.tex == nil || rt.texResolve == nil {
			core.LogError("render target %d has no surface to resolve", params.Resource)
			return
		}
		h.ctx.ResolveTexture(rt.texResolve, rt.tex.tex, rt.nativeFormat)
		h.ctx.CopyTexture(rt.texReadBack, rt.texResolve)
	case rt.tex.tex == nil && rt.texMSAA.tex != nil:
		h.ResolveTarget(params.Resource, metadata.RESOLVE_AVERAGE, metadata.ResolveResources{})
		if rt.tex.tex == nil {
			return
		}
		h.ctx.CopyTexture(rt.texReadBack, rt.tex.tex)
	default:
		h.ctx.CopyTexture(rt.texReadBack, rt.tex.tex)
	}
	h.mapAndCall(rt.texReadBack, params)
}

func (h *HAL) mapAndCall(tex driver.Texture, params metadata.ResourceReadBackParams) {
	mapped, err := h.ctx.Map(tex)
	if !core.CheckCall(err, "map %d for read back", params.Resource) {
		return
	}
	params.Callback(mapped.Data, mapped.RowPitch, mapped.DepthPitch, params.BlockSize)
	h.ctx.Unmap(tex)
}
