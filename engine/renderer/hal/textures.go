package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// CreateTexture creates a sampled texture at handle and uploads Data, laid
// out as every mip of array 0, then every mip of array 1 and so on.
func (h *HAL) CreateTexture(handle metadata.Handle, tcp metadata.TextureCreationParams) {
	volume := tcp.Collection == metadata.TEXTURE_COLLECTION_VOLUME
	size := arraySize(tcp)
	numMips := mipCount(tcp)
	format := toNativeFormat(tcp.Format)

	desc := driver.TextureDesc{
		Dimension:        driver.Texture2D,
		Width:            tcp.Width,
		Height:           tcp.Height,
		DepthOrArraySize: size,
		MipLevels:        numMips,
		SampleCount:      math.Max(tcp.SampleCount, 1),
		Format:           format,
		Usage:            tcp.Usage,
		BindFlags:        tcp.BindFlags,
		CPUAccess:        tcp.CPUAccess,
		Cube:             tcp.Collection == metadata.TEXTURE_COLLECTION_CUBE || tcp.Collection == metadata.TEXTURE_COLLECTION_CUBE_ARRAY,
		GenerateMips:     volume && numMips > 1,
	}
	if volume {
		desc.Dimension = driver.Texture3D
	}

	tex, err := h.dev.CreateTexture(desc)
	if !core.CheckCall(err, "create texture %d (%dx%dx%d %s)", handle, tcp.Width, tcp.Height, size, format) {
		return
	}

	s := h.res.prepare(handle, slotTexture)
	res := &textureResource{tex: tex, volume: volume}
	s.texture = res

	if len(tcp.Data) > 0 {
		h.uploadTexture(tex, tcp, size, numMips)
	}

	if tcp.Usage != metadata.USAGE_STAGING {
		dim := toViewDimension(tcp.Collection, desc.SampleCount > 1)
		srv := driver.ViewDesc{Kind: driver.ViewShaderResource, Format: format, Dimension: dim, MipLevels: numMips}
		switch {
		case dim.IsCube():
			srv.ArraySize = size / 6
		case dim == driver.ViewDimension2DArray || dim == driver.ViewDimension2DMSArray:
			srv.ArraySize = size
		}
		res.srv, err = h.dev.CreateView(tex, srv)
		core.CheckCall(err, "create texture %d shader view", handle)
	}

	if tcp.BindFlags&metadata.BIND_SHADER_WRITE != 0 {
		uav := driver.ViewDesc{Kind: driver.ViewStorage, Format: format, Dimension: driver.ViewDimension2D, MipLevels: 1}
		switch {
		case volume:
			uav.Dimension = driver.ViewDimension3D
			uav.ArraySize = size
		case size > 1:
			uav.Dimension = driver.ViewDimension2DArray
			uav.ArraySize = size
		}
		res.uav, err = h.dev.CreateView(tex, uav)
		core.CheckCall(err, "create texture %d storage view", handle)
	}
}

func (h *HAL) uploadTexture(tex driver.Texture, tcp metadata.TextureCreationParams, size, numMips uint32) {
	block := tcp.Format.BlockSize()
	ppb := tcp.Format.PixelsPerBlock()
	volume := tcp.Collection == metadata.TEXTURE_COLLECTION_VOLUME

	layers := size
	if volume {
		layers = 1
	}

	offset := uint32(0)
	for a := uint32(0); a < layers; a++ {
		for mip := uint32(0); mip < numMips; mip++ {
			w := math.MipExtent(tcp.Width, mip)
			ht := math.MipExtent(tcp.Height, mip)
			rowPitch := math.DivCeil(w, ppb) * block
			slicePitch := rowPitch * math.DivCeil(ht, ppb)
			depth := uint32(1)
			if volume {
				depth = math.MipExtent(size, mip)
			}
			end := offset + slicePitch*depth
			if end > uint32(len(tcp.Data)) {
				core.LogError("texture data is %d bytes, array %d mip %d needs %d", len(tcp.Data), a, mip, end)
				return
			}
			err := h.ctx.UpdateSubresource(tex, mip, a, tcp.Data[offset:end], rowPitch, slicePitch)
			core.CheckCall(err, "upload texture array %d mip %d", a, mip)
			offset = end
		}
	}
}

// SetTexture binds a texture or render target to a shader unit. Render
// targets with mips are regenerated first if they were rendered to since
// they were last sampled.
func (h *HAL) SetTexture(handle, sampler metadata.Handle, unit uint32, bindFlags metadata.TextureBindFlags) {
	stages := toStages(bindFlags&metadata.TEXTURE_BIND_PS != 0, bindFlags&metadata.TEXTURE_BIND_VS != 0, bindFlags&metadata.TEXTURE_BIND_CS != 0)

	if !handle.Valid() {
		if bindFlags&metadata.TEXTURE_BIND_CS != 0 {
			h.ctx.SetStorage(nil, unit)
		}
		h.ctx.SetShaderResource(nil, unit, stages)
		return
	}

	var srv, uav driver.View
	s := h.res.at(handle)
	switch {
	case s != nil && s.kind == slotTexture:
		srv, uav = s.texture.srv, s.texture.uav
	case s != nil && s.kind == slotRenderTarget:
		rt := s.target
		if bindFlags&metadata.TEXTURE_BIND_MSAA != 0 {
			srv = rt.texMSAA.srv
		} else {
			srv = rt.tex.srv
		}
		if rt.hasMips && rt.invalidate && srv != nil {
			h.ctx.GenerateMips(srv)
			rt.invalidate = false
		}
		uav = rt.tex.uav
	default:
		core.LogError("handle %d bound as a texture is not a texture", handle)
		return
	}

	if bindFlags&metadata.TEXTURE_BIND_CS != 0 && uav != nil {
		h.ctx.SetStorage(uav, unit)
	} else {
		h.ctx.SetShaderResource(srv, unit, stages)
	}

	if smp := h.res.lookup(sampler, slotSampler); smp != nil {
		h.ctx.SetSampler(smp.sampler, unit, stages)
	}
}

// ClearTexture fills a shader writable texture, or every face of a render
// target, with the colour of a clear state.
func (h *HAL) ClearTexture(handle, clearState metadata.Handle) {
	cs := h.res.lookup(clearState, slotClearState)
	if cs == nil {
		core.LogError("handle %d is not a clear state", clearState)
		return
	}
	rgba := [4]float32{cs.clear.R, cs.clear.G, cs.clear.B, cs.clear.A}

	s := h.res.at(handle)
	switch {
	case s != nil && s.kind == slotTexture && s.texture.uav != nil:
		h.ctx.ClearStorage(s.texture.uav, rgba)
	case s != nil && s.kind == slotRenderTarget && !s.target.depth:
		for face := uint32(0); face < s.target.numArrays; face++ {
			if v := s.target.writeView(face); v != nil {
				h.ctx.ClearRenderTarget(v, rgba)
			}
		}
	default:
		core.LogError("texture %d cannot be cleared, it is not writable", handle)
	}
}

func (h *HAL) ReleaseTexture(handle metadata.Handle) {
	s := h.res.at(handle)
	if s == nil {
		return
	}
	switch s.kind {
	case slotTexture:
		s.release()
	case slotRenderTarget:
		h.ReleaseRenderTarget(handle)
	}
}
