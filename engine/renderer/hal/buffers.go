package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// CreateBuffer creates a vertex, index, constant or structured buffer.
// Shader writable buffers also get a storage view and a shader read view.
func (h *HAL) CreateBuffer(handle metadata.Handle, params metadata.BufferCreationParams) {
	if len(params.Data) > int(params.Size) {
		core.LogWarn("buffer %d initial data is %d bytes, truncating to %d", handle, len(params.Data), params.Size)
		params.Data = params.Data[:params.Size]
	}

	buf, err := h.dev.CreateBuffer(driver.BufferDesc{
		Size:      params.Size,
		Stride:    params.Stride,
		Usage:     params.Usage,
		BindFlags: params.BindFlags,
		CPUAccess: params.CPUAccess,
	}, params.Data)
	if !core.CheckCall(err, "create buffer %d (%d bytes)", handle, params.Size) {
		return
	}

	s := h.res.prepare(handle, slotBuffer)
	res := &bufferResource{buf: buf, stride: params.Stride}
	s.buffer = res

	structured := params.BindFlags&(metadata.BIND_SHADER_WRITE|metadata.BIND_SHADER_RESOURCE) != 0
	if !structured {
		return
	}
	core.Assert(params.Stride > 0, "structured buffer %d needs a stride", handle)
	count := params.Size / params.Stride

	if params.BindFlags&metadata.BIND_SHADER_WRITE != 0 {
		res.uav, err = h.dev.CreateBufferView(buf, driver.ViewStorage, params.Stride, count)
		core.CheckCall(err, "create buffer %d storage view", handle)
	}
	res.srv, err = h.dev.CreateBufferView(buf, driver.ViewShaderResource, params.Stride, count)
	core.CheckCall(err, "create buffer %d shader view", handle)
}

func (h *HAL) buffer(handle metadata.Handle) *bufferResource {
	s := h.res.lookup(handle, slotBuffer)
	if s == nil {
		return nil
	}
	return s.buffer
}

func (h *HAL) SetVertexBuffers(handles []metadata.Handle, startSlot uint32, strides, offsets []uint32) {
	bufs := make([]driver.Buffer, len(handles))
	for i, vb := range handles {
		if b := h.buffer(vb); b != nil {
			bufs[i] = b.buf
		} else if vb.Valid() {
			core.LogError("handle %d bound as a vertex buffer is not a buffer", vb)
		}
	}
	h.ctx.SetVertexBuffers(startSlot, bufs, strides, offsets)
}

func (h *HAL) SetIndexBuffer(handle metadata.Handle, format metadata.IndexFormat, offset uint32) {
	var buf driver.Buffer
	if b := h.buffer(handle); b != nil {
		buf = b.buf
	}
	h.ctx.SetIndexBuffer(buf, format, offset)
}

func (h *HAL) SetConstantBuffer(handle metadata.Handle, unit uint32, flags metadata.CBufferBindFlags) {
	var buf driver.Buffer
	if b := h.buffer(handle); b != nil {
		buf = b.buf
	}
	stages := toStages(flags&metadata.CBUFFER_BIND_PS != 0, flags&metadata.CBUFFER_BIND_VS != 0, flags&metadata.CBUFFER_BIND_CS != 0)
	h.ctx.SetConstantBuffer(buf, unit, stages)
}

// SetStructuredBuffer binds a buffer for compute writes when bound to the
// compute stage with SBUFFER_BIND_WRITE, and for shader reads otherwise.
func (h *HAL) SetStructuredBuffer(handle metadata.Handle, unit uint32, flags metadata.SBufferBindFlags) {
	stages := toStages(flags&metadata.SBUFFER_BIND_PS != 0, flags&metadata.SBUFFER_BIND_VS != 0, flags&metadata.SBUFFER_BIND_CS != 0)
	write := flags&metadata.SBUFFER_BIND_CS != 0 && flags&metadata.SBUFFER_BIND_WRITE != 0

	b := h.buffer(handle)
	if b == nil {
		if write {
			h.ctx.SetStorage(nil, unit)
		} else {
			h.ctx.SetShaderResource(nil, unit, stages)
		}
		return
	}

	if write {
		if b.uav == nil {
			core.LogError("buffer %d is not shader writable", handle)
			return
		}
		h.ctx.SetStorage(b.uav, unit)
		return
	}
	h.ctx.SetShaderResource(b.srv, unit, stages)
}

func (h *HAL) UpdateBuffer(handle metadata.Handle, data []byte, offset uint32) {
	b := h.buffer(handle)
	if b == nil {
		core.LogError("handle %d updated as a buffer is not a buffer", handle)
		return
	}
	core.CheckCall(h.ctx.UpdateBuffer(b.buf, offset, data), "update buffer %d", handle)
}

func (h *HAL) ReleaseBuffer(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotBuffer); s != nil {
		s.release()
	}
}
