package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/math"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// renderTarget holds a colour or depth surface. Multisampled targets only
// own the msaa set until they are first resolved.
type renderTarget struct {
	depth bool

	tex   textureResource
	views []driver.View

	texMSAA   textureResource
	viewsMSAA []driver.View

	texReadBack driver.Texture
	texResolve  driver.Texture
	// msaaResolveReadback targets are resolved into texResolve before being copied for read back.
	msaaResolveReadback bool

	format       metadata.TextureFormat
	nativeFormat driver.Format
	/** @brief Creation params, kept for msaa targets so the resolve surface can be made later. */
	tcp *metadata.TextureCreationParams

	invalidate bool
	hasMips    bool
	numMips    uint32
	numArrays  uint32
}

func (rt *renderTarget) release() {
	for i := range rt.views {
		releaseObject(&rt.views[i])
	}
	for i := range rt.viewsMSAA {
		releaseObject(&rt.viewsMSAA[i])
	}
	rt.views = nil
	rt.viewsMSAA = nil
	rt.tex.release()
	rt.texMSAA.release()
	releaseObject(&rt.texReadBack)
	releaseObject(&rt.texResolve)
	rt.tcp = nil
}

// writeView returns the view a face is rendered through, preferring msaa.
func (rt *renderTarget) writeView(face uint32) driver.View {
	if int(face) < len(rt.viewsMSAA) && rt.viewsMSAA[face] != nil {
		return rt.viewsMSAA[face]
	}
	if int(face) < len(rt.views) {
		return rt.views[face]
	}
	return nil
}

// resolveRatio sizes ratio targets from the backbuffer.
func (h *HAL) resolveRatio(tcp metadata.TextureCreationParams) metadata.TextureCreationParams {
	if tcp.RatioDivisor == 0 {
		return tcp
	}
	tcp.Width = math.Max(h.width/tcp.RatioDivisor, 1)
	tcp.Height = math.Max(h.height/tcp.RatioDivisor, 1)
	return tcp
}

func mipCount(tcp metadata.TextureCreationParams) uint32 {
	switch {
	case tcp.NumMips == metadata.AutoMips:
		return math.NumMips(tcp.Width, tcp.Height)
	case tcp.NumMips > 1:
		return uint32(tcp.NumMips)
	}
	return 1
}

func arraySize(tcp metadata.TextureCreationParams) uint32 {
	n := tcp.NumArrays
	if n == 0 && tcp.Collection == metadata.TEXTURE_COLLECTION_CUBE {
		n = 6
	}
	return math.Max(n, 1)
}

// createTargetViews creates the texture of a colour or depth target with
// one write view per slice and a shader read view over the whole resource.
func (h *HAL) createTargetViews(tcp metadata.TextureCreationParams, numMips uint32, generateMips bool) (textureResource, []driver.View) {
	size := arraySize(tcp)
	ms := tcp.SampleCount > 1

	core.Assert(!(size > 1 && ms), "arrays and cubes do not support msaa")
	core.Assert(tcp.Collection != metadata.TEXTURE_COLLECTION_VOLUME, "volume render targets are created as writable textures")

	isDepth := tcp.BindFlags&metadata.BIND_DEPTH_STENCIL != 0
	core.Assert(isDepth || tcp.BindFlags&metadata.BIND_RENDER_TARGET != 0, "texture is neither a render target nor a depth target")

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
		GenerateMips:     generateMips,
	}

	kind := driver.ViewRenderTarget
	writeFormat, readFormat := format, format
	if isDepth {
		alias := depthAliasOf(format)
		desc.Format = alias.storage
		kind = driver.ViewDepthStencil
		writeFormat, readFormat = alias.dsv, alias.srv
	}

	tex, err := h.dev.CreateTexture(desc)
	if !core.CheckCall(err, "create render target texture %dx%d %s", tcp.Width, tcp.Height, format) {
		return textureResource{}, nil
	}

	dim := toViewDimension(tcp.Collection, ms)
	srv := driver.ViewDesc{
		Kind:      driver.ViewShaderResource,
		Format:    readFormat,
		Dimension: dim,
		MipLevels: numMips,
	}

	views := make([]driver.View, size)
	if !dim.IsArray() {
		wd := driver.ViewDimension2D
		if ms {
			wd = driver.ViewDimension2DMS
		}
		v, err := h.dev.CreateView(tex, driver.ViewDesc{Kind: kind, Format: writeFormat, Dimension: wd, MipLevels: 1})
		if core.CheckCall(err, "create %s target view", writeFormat) {
			views[0] = v
		}
	} else {
		for a := uint32(0); a < size; a++ {
			v, err := h.dev.CreateView(tex, driver.ViewDesc{
				Kind:       kind,
				Format:     writeFormat,
				Dimension:  driver.ViewDimension2DArray,
				MipLevels:  1,
				FirstSlice: a,
				ArraySize:  1,
			})
			if core.CheckCall(err, "create %s target view for slice %d", writeFormat, a) {
				views[a] = v
			}
		}
		if dim.IsCube() {
			srv.ArraySize = size / 6
		} else {
			srv.ArraySize = size
		}
	}

	res := textureResource{tex: tex}
	res.srv, err = h.dev.CreateView(tex, srv)
	core.CheckCall(err, "create render target shader view")
	return res, views
}

// CreateRenderTarget creates a colour or depth target at handle. Volume
// targets are plain writable textures.
func (h *HAL) CreateRenderTarget(handle metadata.Handle, tcp metadata.TextureCreationParams) {
	if tcp.Collection == metadata.TEXTURE_COLLECTION_VOLUME {
		h.CreateTexture(handle, tcp)
		return
	}
	h.createRenderTarget(handle, tcp, true)
}

func (h *HAL) createRenderTarget(handle metadata.Handle, tcp metadata.TextureCreationParams, track bool) {
	s := h.res.prepare(handle, slotRenderTarget)
	rt := &renderTarget{
		depth:        tcp.BindFlags&metadata.BIND_DEPTH_STENCIL != 0,
		format:       tcp.Format,
		nativeFormat: toNativeFormat(tcp.Format),
		numArrays:    arraySize(tcp),
	}
	s.target = rt

	if track {
		delete(h.managed, handle)
		if tcp.RatioDivisor > 0 {
			h.managed[handle] = tcp
		}
	}

	sized := h.resolveRatio(tcp)
	rt.numMips = mipCount(sized)
	rt.hasMips = rt.numMips > 1

	if sized.CPUAccess != 0 {
		var err error
		rt.texReadBack, err = h.dev.CreateTexture(driver.TextureDesc{
			Dimension:        driver.Texture2D,
			Width:            sized.Width,
			Height:           sized.Height,
			DepthOrArraySize: rt.numArrays,
			MipLevels:        rt.numMips,
			SampleCount:      1,
			Format:           rt.nativeFormat,
			Usage:            metadata.USAGE_STAGING,
			CPUAccess:        sized.CPUAccess,
		})
		core.CheckCall(err, "create read back texture for render target %d", handle)
		sized.CPUAccess = 0
	}

	if sized.SampleCount > 1 {
		rt.texMSAA, rt.viewsMSAA = h.createTargetViews(sized, rt.numMips, rt.hasMips)
		saved := tcp
		rt.tcp = &saved
		return
	}

	sized.SampleCount = 1
	rt.tex, rt.views = h.createTargetViews(sized, rt.numMips, rt.hasMips)
}

func (h *HAL) ReleaseRenderTarget(handle metadata.Handle) {
	delete(h.managed, handle)
	if s := h.res.lookup(handle, slotRenderTarget); s != nil {
		s.release()
	}
}

// rebuildManagedTargets recreates every ratio target after the backbuffer changed size.
func (h *HAL) rebuildManagedTargets() {
	for handle, tcp := range h.managed {
		if s := h.res.at(handle); s != nil {
			s.release()
		}
		h.createRenderTarget(handle, tcp, false)
	}
}
