package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// resolveVertexStride is a float4 position and a float2 uv.
const resolveVertexStride = 24

// ResolveTarget resolves a multisampled target into its single sample
// surface, creating that surface on first use. Depth targets can only be
// resolved with RESOLVE_CUSTOM, which draws res into an r32 float target.
func (h *HAL) ResolveTarget(target metadata.Handle, resolveType metadata.ResolveType, res metadata.ResolveResources) {
	if resolveType == metadata.RESOLVE_GENERATE_MIPS {
		if s := h.res.lookup(target, slotTexture); s != nil && s.texture.volume && s.texture.srv != nil {
			h.ctx.GenerateMips(s.texture.srv)
		}
		return
	}

	s := h.res.lookup(target, slotRenderTarget)
	if s == nil {
		core.LogError("handle %d resolved as a render target is not a render target", target)
		return
	}
	rt := s.target
	if rt.tcp == nil {
		core.LogWarn("render target %d has no multisample data to resolve", target)
		return
	}

	sized := h.resolveRatio(*rt.tcp)
	w, ht := sized.Width, sized.Height

	if rt.tex.tex == nil {
		resolveTCP := sized
		resolveTCP.SampleCount = 1
		resolveTCP.CPUAccess = 0
		if rt.format == metadata.TEX_FORMAT_D24_UNORM_S8_UINT {
			resolveTCP.BindFlags &^= metadata.BIND_DEPTH_STENCIL
			resolveTCP.BindFlags |= metadata.BIND_RENDER_TARGET
			resolveTCP.Format = metadata.TEX_FORMAT_R32_FLOAT
		}
		rt.tex, rt.views = h.createTargetViews(resolveTCP, rt.numMips, rt.hasMips)
	}

	if rt.texMSAA.tex == nil {
		core.LogError("render target %d is not an msaa target", target)
		return
	}

	if resolveType == metadata.RESOLVE_CUSTOM {
		if len(rt.views) == 0 || rt.views[0] == nil {
			core.LogError("render target %d has no resolve surface", target)
			return
		}
		h.ctx.SetRenderTargets([]driver.View{rt.views[0]}, nil)

		h.UpdateBuffer(res.ConstantBuffer, math.Float32Bytes(float32(w), float32(ht), 0, 0), 0)
		h.SetConstantBuffer(res.ConstantBuffer, 0, metadata.CBUFFER_BIND_PS)
		h.SetViewport(metadata.Viewport{Width: float32(w), Height: float32(ht), MaxDepth: 1})
		h.SetVertexBuffers([]metadata.Handle{res.VertexBuffer}, 0, []uint32{resolveVertexStride}, []uint32{0})
		h.SetIndexBuffer(res.IndexBuffer, metadata.FORMAT_R16_UINT, 0)
		h.SetTexture(target, metadata.NullHandle, 0, metadata.TEXTURE_BIND_MSAA|metadata.TEXTURE_BIND_PS)
		h.DrawIndexed(6, 0, 0, metadata.PT_TRIANGLELIST)
		return
	}

	if rt.format == metadata.TEX_FORMAT_D24_UNORM_S8_UINT {
		core.LogError("render target %d cannot be resolved as it is a depth target", target)
		return
	}
	h.ctx.ResolveTexture(rt.tex.tex, rt.texMSAA.tex, rt.nativeFormat)
}
