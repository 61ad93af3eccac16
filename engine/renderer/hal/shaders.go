package hal

import (
	"errors"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// LoadShader creates a shader from opaque bytecode. A pixel shader without
// bytecode is valid and disables the pixel stage when bound.
func (h *HAL) LoadShader(handle metadata.Handle, params metadata.ShaderLoadParams) {
	if params.Type == metadata.SHADER_TYPE_SO {
		h.loadStreamOutShader(handle, params)
		return
	}

	var native driver.Shader
	if len(params.ByteCode) > 0 || params.Type != metadata.SHADER_TYPE_PS {
		var err error
		native, err = h.dev.CreateShader(params.Type, params.ByteCode)
		if !core.CheckCall(err, "create %s shader %d", params.Type, handle) {
			return
		}
	}

	s := h.res.prepare(handle, slotShader)
	s.shader = &shaderResource{stage: params.Type, native: native}
}

func (h *HAL) loadStreamOutShader(handle metadata.Handle, params metadata.ShaderLoadParams) {
	gs, err := h.dev.CreateStreamOutShader(params.ByteCode, params.SODecl)
	if errors.Is(err, core.ErrUnsupported) {
		core.LogError("stream out shader %d skipped: %s", handle, err)
		return
	}
	if !core.CheckCall(err, "create stream out shader %d", handle) {
		return
	}
	vs, err := h.dev.CreateShader(metadata.SHADER_TYPE_VS, params.ByteCode)
	if !core.CheckCall(err, "create stream out vertex shader %d", handle) {
		gs.Release()
		return
	}

	s := h.res.prepare(handle, slotStreamOut)
	s.streamOut = &streamOutResource{vs: vs, gs: gs}
}

// SetShader binds handle to the stage of shaderType. Binding a stream out
// shader disables the pixel stage and depth testing.
func (h *HAL) SetShader(handle metadata.Handle, shaderType metadata.ShaderType) {
	if shaderType == metadata.SHADER_TYPE_SO {
		h.setStreamOutShader(handle)
		return
	}

	var native driver.Shader
	if handle.Valid() {
		s := h.res.lookup(handle, slotShader)
		if s == nil {
			core.LogError("handle %d bound as a %s shader is not a shader", handle, shaderType)
			return
		}
		native = s.shader.native
	}
	h.ctx.SetShader(shaderType, native)
}

func (h *HAL) setStreamOutShader(handle metadata.Handle) {
	s := h.res.lookup(handle, slotStreamOut)
	if s == nil {
		h.ctx.SetShader(metadata.SHADER_TYPE_GS, nil)
		return
	}

	if h.soDepthState == nil {
		var err error
		h.soDepthState, err = h.dev.CreateDepthStencilState(metadata.DepthStencilCreationParams{
			DepthEnable: false,
			DepthFunc:   metadata.COMPARISON_ALWAYS,
		})
		core.CheckCall(err, "create stream out depth stencil state")
	}

	h.ctx.SetShader(metadata.SHADER_TYPE_VS, s.streamOut.vs)
	h.ctx.SetShader(metadata.SHADER_TYPE_GS, s.streamOut.gs)
	h.ctx.SetShader(metadata.SHADER_TYPE_PS, nil)
	if h.soDepthState != nil {
		h.ctx.SetDepthStencilState(h.soDepthState, 0)
	}
}

func (h *HAL) ReleaseShader(handle metadata.Handle, shaderType metadata.ShaderType) {
	kind := slotShader
	if shaderType == metadata.SHADER_TYPE_SO {
		kind = slotStreamOut
	}
	if s := h.res.lookup(handle, kind); s != nil {
		s.release()
	}
}

// LinkShaderProgram records a vertex, pixel and optional geometry shader
// with their input layout so they can be bound together.
func (h *HAL) LinkShaderProgram(handle metadata.Handle, params metadata.ShaderLinkParams) {
	for _, sh := range []metadata.Handle{params.VertexShader, params.PixelShader, params.GeometryShader} {
		if sh.Valid() && h.res.lookup(sh, slotShader) == nil {
			core.LogError("cannot link program %d, handle %d is not a shader", handle, sh)
			return
		}
	}
	s := h.res.prepare(handle, slotProgram)
	s.program = &shaderProgram{
		vs:          params.VertexShader,
		ps:          params.PixelShader,
		gs:          params.GeometryShader,
		inputLayout: params.InputLayout,
	}
}

func (h *HAL) SetShaderProgram(handle metadata.Handle) {
	s := h.res.lookup(handle, slotProgram)
	if s == nil {
		core.LogError("handle %d is not a shader program", handle)
		return
	}
	p := *s.program
	h.SetShader(p.vs, metadata.SHADER_TYPE_VS)
	h.SetShader(p.ps, metadata.SHADER_TYPE_PS)
	h.SetShader(p.gs, metadata.SHADER_TYPE_GS)
	if p.inputLayout.Valid() {
		h.SetInputLayout(p.inputLayout)
	}
}

func (h *HAL) ReleaseProgram(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotProgram); s != nil {
		s.release()
	}
}

func (h *HAL) CreateInputLayout(handle metadata.Handle, params metadata.InputLayoutCreationParams) {
	il, err := h.dev.CreateInputLayout(params)
	if !core.CheckCall(err, "create input layout %d", handle) {
		return
	}
	s := h.res.prepare(handle, slotInputLayout)
	s.inputLayout = il
}

func (h *HAL) SetInputLayout(handle metadata.Handle) {
	var il driver.InputLayout
	if s := h.res.lookup(handle, slotInputLayout); s != nil {
		il = s.inputLayout
	}
	h.ctx.SetInputLayout(il)
}

func (h *HAL) ReleaseInputLayout(handle metadata.Handle) {
	if s := h.res.lookup(handle, slotInputLayout); s != nil {
		s.release()
	}
}
