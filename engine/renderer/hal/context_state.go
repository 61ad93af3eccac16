package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// contextState is what the command context currently has bound.
type contextState struct {
	colours    [metadata.MaxMRT]metadata.Handle
	numColours uint32
	depth      metadata.Handle

	depthStencil metadata.Handle
	stencilRef   uint8

	backbufferColour metadata.Handle
	backbufferDepth  metadata.Handle
}

func (c *contextState) bindBackbuffer() {
	c.colours = [metadata.MaxMRT]metadata.Handle{c.backbufferColour}
	c.numColours = 1
	c.depth = c.backbufferDepth
}

func (c *contextState) unbind() {
	c.colours = [metadata.MaxMRT]metadata.Handle{}
	c.numColours = 0
	c.depth = metadata.NullHandle
}

func nullIfInvalid(h metadata.Handle) metadata.Handle {
	if h == metadata.InvalidHandle {
		return metadata.NullHandle
	}
	return h
}

// SetTargets binds up to MaxMRT colour targets and a depth target. Handle 0
// or InvalidHandle leaves a slot unbound. Targets with mips are marked for
// regeneration the next time they are bound as a texture.
func (h *HAL) SetTargets(colours []metadata.Handle, depth metadata.Handle, colourFace, depthFace uint32) {
	core.Assert(len(colours) <= metadata.MaxMRT, "%d colour targets bound, the maximum is %d", len(colours), metadata.MaxMRT)

	depth = nullIfInvalid(depth)
	h.cs.depth = depth
	h.cs.numColours = uint32(len(colours))
	h.cs.colours = [metadata.MaxMRT]metadata.Handle{}

	views := make([]driver.View, len(colours))
	for i, c := range colours {
		c = nullIfInvalid(c)
		h.cs.colours[i] = c
		if c == metadata.NullHandle {
			continue
		}
		s := h.res.lookup(c, slotRenderTarget)
		if s == nil {
			core.LogError("handle %d bound as a colour target is not a render target", c)
			continue
		}
		if v := s.target.writeView(colourFace); v != nil {
			views[i] = v
		} else {
			core.LogError("render target %d has no face %d", c, colourFace)
		}
		if s.target.hasMips {
			s.target.invalidate = true
		}
	}

	var dsv driver.View
	if depth != metadata.NullHandle {
		if s := h.res.lookup(depth, slotRenderTarget); s != nil {
			dsv = s.target.writeView(depthFace)
			if dsv == nil {
				core.LogError("depth target %d has no face %d", depth, depthFace)
			}
			if s.target.hasMips {
				s.target.invalidate = true
			}
		} else {
			core.LogError("handle %d bound as a depth target is not a render target", depth)
		}
	}

	h.ctx.SetRenderTargets(views, dsv)
}

func (h *HAL) CreateClearState(handle metadata.Handle, cs metadata.ClearState) {
	s := h.res.prepare(handle, slotClearState)
	core.Assert(len(cs.MRT) <= metadata.MaxMRT, "clear state has %d mrt colours, the maximum is %d", len(cs.MRT), metadata.MaxMRT)

	internal := cs
	internal.MRT = make([]metadata.MRTClear, len(cs.MRT))
	for i, m := range cs.MRT {
		if m.Type == metadata.CLEAR_U32 {
			m.F = [4]float32{float32(m.U[0]), float32(m.U[1]), float32(m.U[2]), float32(m.U[3])}
		}
		internal.MRT[i] = m
	}
	s.clear = &internal
}

func (h *HAL) ReleaseClearState(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotClearState); s != nil {
		s.release()
	}
}

func (h *HAL) boundColourView(i int, face uint32) driver.View {
	ct := h.cs.colours[i]
	if ct == metadata.NullHandle {
		return nil
	}
	s := h.res.lookup(ct, slotRenderTarget)
	if s == nil {
		return nil
	}
	return s.target.writeView(face)
}

// Clear clears the bound targets with a clear state. Without mrt colours
// every bound colour target gets the same colour, otherwise the first k
// bound targets get their own.
func (h *HAL) Clear(handle metadata.Handle, colourFace, depthFace uint32) {
	s := h.res.lookup(handle, slotClearState)
	if s == nil {
		core.LogError("handle %d is not a clear state", handle)
		return
	}
	cs := s.clear

	if cs.Flags&metadata.CLEAR_COLOUR_BUFFER != 0 && len(cs.MRT) == 0 {
		rgba := [4]float32{cs.R, cs.G, cs.B, cs.A}
		for i := 0; i < int(h.cs.numColours); i++ {
			if v := h.boundColourView(i, colourFace); v != nil {
				h.ctx.ClearRenderTarget(v, rgba)
			}
		}
	}

	for i := 0; i < len(cs.MRT) && i < int(h.cs.numColours); i++ {
		if v := h.boundColourView(i, colourFace); v != nil {
			h.ctx.ClearRenderTarget(v, cs.MRT[i].F)
		}
	}

	flags := cs.Flags & (metadata.CLEAR_DEPTH_BUFFER | metadata.CLEAR_STENCIL_BUFFER)
	if flags == 0 || h.cs.depth == metadata.NullHandle {
		return
	}
	if ds := h.res.lookup(h.cs.depth, slotRenderTarget); ds != nil {
		if v := ds.target.writeView(depthFace); v != nil {
			h.ctx.ClearDepthStencil(v, flags, cs.Depth, cs.Stencil)
		}
	}
}

func (h *HAL) SetDepthStencilState(handle metadata.Handle) {
	h.cs.depthStencil = handle
	h.applyDepthStencilState()
}

// SetStencilRef only reaches the device when a depth stencil state is bound.
func (h *HAL) SetStencilRef(ref uint8) {
	h.cs.stencilRef = ref
	if h.cs.depthStencil != metadata.NullHandle {
		h.applyDepthStencilState()
	}
}

func (h *HAL) applyDepthStencilState() {
	var state driver.DepthStencilState
	if s := h.res.lookup(h.cs.depthStencil, slotDepthStencilState); s != nil {
		state = s.depthStencil
	}
	h.ctx.SetDepthStencilState(state, h.cs.stencilRef)
}
