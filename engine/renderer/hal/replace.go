package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// ReplaceResource releases dest and moves src into its place, leaving src
// empty. Bound state that refers to dest picks up the new resource the
// next time it is set.
func (h *HAL) ReplaceResource(dest, src metadata.Handle, kind metadata.ResourceKind) {
	core.Assert(dest.Valid() && src.Valid(), "cannot replace %d with %d", dest, src)
	if dest == src {
		return
	}

	switch kind {
	case metadata.RESOURCE_TEXTURE:
		h.ReleaseTexture(dest)
	case metadata.RESOURCE_BUFFER:
		h.ReleaseBuffer(dest)
	case metadata.RESOURCE_VERTEX_SHADER:
		h.ReleaseShader(dest, metadata.SHADER_TYPE_VS)
	case metadata.RESOURCE_PIXEL_SHADER:
		h.ReleaseShader(dest, metadata.SHADER_TYPE_PS)
	case metadata.RESOURCE_COMPUTE_SHADER:
		h.ReleaseShader(dest, metadata.SHADER_TYPE_CS)
	case metadata.RESOURCE_RENDER_TARGET:
		h.ReleaseRenderTarget(dest)
	}

	h.res.grow(max(dest, src))
	d, s := h.res.at(dest), h.res.at(src)
	if d.kind != slotEmpty {
		core.LogWarn("replacing handle %d still holding a %s", dest, d.kind)
		d.release()
	}
	*d = *s
	*s = slot{}

	if tcp, ok := h.managed[src]; ok {
		delete(h.managed, src)
		h.managed[dest] = tcp
	}
}
